package fgb

import (
	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Reader reads back an exported FlatGeobuf file. Features are reached
// through the spatial index, so files written without one only expose
// their header.
type Reader struct {
	fgb *flatgeobuf.FlatGeoBuf
}

// NewReader memory-maps the file at path.
func NewReader(path string) (*Reader, error) {
	fgb, err := flatgeobuf.New(path)
	if err != nil {
		return nil, err
	}
	return &Reader{fgb: fgb}, nil
}

// NewReaderFromData reads a FlatGeobuf file held in memory.
func NewReaderFromData(data []byte) (*Reader, error) {
	fgb, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, err
	}
	return &Reader{fgb: fgb}, nil
}

// Header returns the layer metadata.
func (r *Reader) Header() *Header {
	h := r.fgb.Header()
	if h == nil {
		return nil
	}

	out := &Header{
		Name:          string(h.Name()),
		Description:   string(h.Description()),
		GeometryType:  flattypes.EnumNamesGeometryType[h.GeometryType()],
		FeaturesCount: h.FeaturesCount(),
		HasIndex:      h.IndexNodeSize() > 0,
		CRS:           crsOf(h),
		Columns:       columnsOf(h),
	}
	if h.EnvelopeLength() >= 4 {
		for i := range out.Envelope {
			out.Envelope[i] = h.Envelope(i)
		}
	}
	return out
}

func crsOf(h *flattypes.Header) *CRS {
	var c flattypes.Crs
	if h.Crs(&c) == nil {
		return nil
	}
	return &CRS{Code: int(c.Code()), Name: string(c.Name()), Description: string(c.Description())}
}

func columnsOf(h *flattypes.Header) []ColumnInfo {
	var cols []ColumnInfo
	var c flattypes.Column
	for i := 0; i < h.ColumnsLength(); i++ {
		if !h.Columns(&c, i) {
			continue
		}
		cols = append(cols, ColumnInfo{
			Name:        string(c.Name()),
			Type:        flattypes.EnumNamesColumnType[c.Type()],
			Title:       string(c.Title()),
			Description: string(c.Description()),
			Nullable:    c.Nullable(),
		})
	}
	return cols
}

// ReadAll reads every feature. Features come back in index order, which
// is not the order they were exported in.
func (r *Reader) ReadAll() (*geojson.FeatureCollection, error) {
	h := r.fgb.Header()
	if h.FeaturesCount() == 0 {
		return geojson.NewFeatureCollection(), nil
	}
	if h.EnvelopeLength() < 4 {
		return nil, ErrInvalidData
	}
	return r.Search(orb.Bound{
		Min: orb.Point{h.Envelope(0), h.Envelope(1)},
		Max: orb.Point{h.Envelope(2), h.Envelope(3)},
	})
}

// Search returns the features whose boxes intersect bounds.
func (r *Reader) Search(bounds orb.Bound) (*geojson.FeatureCollection, error) {
	h := r.fgb.Header()
	if h.IndexNodeSize() == 0 {
		return nil, ErrNoIndex
	}

	features, err := r.fgb.Search(bounds.Min[0], bounds.Min[1], bounds.Max[0], bounds.Max[1])
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		feature, err := convertFeature(f, h)
		if err != nil {
			return nil, err
		}
		if feature != nil {
			fc.Append(feature)
		}
	}
	return fc, nil
}

// Close drops the mapping. The library unmaps it when collected.
func (r *Reader) Close() error {
	r.fgb = nil
	return nil
}

func convertFeature(f *flattypes.Feature, header *flattypes.Header) (*geojson.Feature, error) {
	if f == nil {
		return nil, nil
	}
	var geomObj flattypes.Geometry
	geom := f.Geometry(&geomObj)
	if geom == nil {
		return nil, nil
	}
	feature := geojson.NewFeature(geometryFromFGB(geom))

	if n := f.PropertiesLength(); n > 0 && header.ColumnsLength() > 0 {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(f.Properties(i))
		}
		props, err := decodeProperties(data, header)
		if err != nil {
			return nil, err
		}
		feature.Properties = props
	}
	return feature, nil
}
