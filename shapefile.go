// Package shapefile reads and writes ESRI Shapefile datasets using orb
// geometries. It covers the .shp geometry file, the .shx offset index and,
// through the dbf package, the .dbf attribute table, merging geometry and
// attributes into single logical rows.
package shapefile

import (
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"golang.org/x/text/encoding"
)

// Common errors returned by this package.
var (
	ErrFormat               = errors.New("shapefile: invalid file format")
	ErrUnsupportedShapeType = errors.New("shapefile: unsupported shape type")
	ErrTypeMismatch         = errors.New("shapefile: record shape type does not match file shape type")
	ErrTruncated            = errors.New("shapefile: truncated input")
	ErrMissingGeometry      = errors.New("shapefile: null geometry values are not supported")
	ErrGeometryType         = errors.New("shapefile: geometry type not supported by shape type")
	ErrIllegalState         = errors.New("shapefile: illegal state")
	ErrClosed               = fmt.Errorf("%w: closed", ErrIllegalState)
	ErrCardinality          = errors.New("shapefile: geometry and attribute row counts differ")
	ErrFileTooLarge         = errors.New("shapefile: file exceeds the format size limit")
)

// RecordError reports a failure to decode or encode the record at Offset.
type RecordError struct {
	Offset int64 // byte offset of the record header in the .shp file
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record at offset %d: %v", e.Offset, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Options configures opening and creating shapefiles.
type Options struct {
	GeometryColumn int               // Position of the geometry in a logical row
	SRID           int               // Spatial reference identifier carried alongside the data
	PRJ            string            // WKT written to the .prj file on create (optional)
	Encoding       encoding.Encoding // DBF text encoding, overrides .cpg and the language driver
	Logger         log.Logger        // Structured logger (default: no-op)
	Metrics        *Metrics          // Codec metrics (optional)
}

// DefaultOptions returns default options: geometry in the first column,
// no SRID, encoding detected from the files.
func DefaultOptions() *Options {
	return &Options{
		Logger: log.NewNopLogger(),
	}
}

// withDefaults fills unset fields so callers can pass partial options.
func (o *Options) withDefaults() *Options {
	if o == nil {
		return DefaultOptions()
	}
	cp := *o
	if cp.Logger == nil {
		cp.Logger = log.NewNopLogger()
	}
	return &cp
}
