// Package fgb exports shapefiles to FlatGeobuf. Attribute fields become
// typed FlatGeobuf columns and the spatial reference carried by the
// shapefile becomes the layer CRS. A small reader is included so exported
// files can be inspected.
package fgb

import (
	"errors"

	"github.com/go-kit/log"
)

// Errors returned by Export and Reader.
var (
	ErrNoFeatures       = errors.New("fgb: no features to export")
	ErrUnsupportedType  = errors.New("fgb: unsupported geometry type")
	ErrNoIndex          = errors.New("fgb: file has no spatial index")
	ErrInvalidColumn    = errors.New("fgb: invalid column type")
	ErrPropertyMismatch = errors.New("fgb: property type mismatch")
	ErrInvalidData      = errors.New("fgb: invalid data")
)

// CRS is the layer's coordinate reference system. Exports write WKT into the
// description when no description is set.
type CRS struct {
	Code        int // EPSG code
	Name        string
	Description string
	WKT         string
}

// WGS84 returns the standard WGS84 CRS (EPSG:4326).
func WGS84() *CRS {
	return &CRS{
		Code: 4326,
		Name: "WGS 84",
	}
}

// Options configures FlatGeobuf export.
type Options struct {
	Name         string // Layer name
	Description  string // Layer description
	IncludeIndex bool   // Include spatial index (default: true)
	CRS          *CRS   // Overrides the CRS taken from the shapefile
	Logger       log.Logger
}

// DefaultOptions returns default options for exporting FlatGeobuf files.
func DefaultOptions() *Options {
	return &Options{
		IncludeIndex: true,
		Logger:       log.NewNopLogger(),
	}
}

func (o *Options) withDefaults() *Options {
	if o == nil {
		return DefaultOptions()
	}
	out := *o
	if out.Logger == nil {
		out.Logger = log.NewNopLogger()
	}
	return &out
}

// ColumnInfo describes a property column in a FlatGeobuf file.
type ColumnInfo struct {
	Name        string // Column name
	Type        string // Column type ("Bool", "Long", "Double", "String", "DateTime")
	Title       string
	Description string
	Nullable    bool
}

// Header contains metadata about a FlatGeobuf file.
type Header struct {
	Name          string
	Description   string
	GeometryType  string     // "Point", "MultiPolygon", ...
	FeaturesCount uint64     // Number of features in the file
	Envelope      [4]float64 // minX, minY, maxX, maxY
	CRS           *CRS
	HasIndex      bool
	Columns       []ColumnInfo
}
