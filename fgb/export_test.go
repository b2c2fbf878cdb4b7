package fgb

import (
	"bytes"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	shapefile "github.com/tingold/orb-shapefile"
	"github.com/tingold/orb-shapefile/dbf"
)

var parkFields = []dbf.Field{
	dbf.CharField("name", 20),
	dbf.NumericField("visitors", 10, 0),
	dbf.NumericField("area_km2", 12, 3),
	dbf.LogicalField("staffed"),
	dbf.DateField("opened"),
}

func createParks(t *testing.T, opts *shapefile.Options, rows ...[]interface{}) *shapefile.Driver {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parks.shp")
	d, err := shapefile.Create(path, shapefile.Polygon, parkFields, opts)
	require.NoError(t, err)
	for _, row := range rows {
		require.NoError(t, d.InsertRow(row))
	}
	require.NoError(t, d.Close())

	r, err := shapefile.Open(path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func square(x0, y0, size float64) orb.Ring {
	return orb.Ring{{x0, y0}, {x0, y0 + size}, {x0 + size, y0 + size}, {x0 + size, y0}, {x0, y0}}
}

func export(t *testing.T, d *shapefile.Driver, opts *Options) *Reader {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, d, opts))
	require.Equal(t, []byte{0x66, 0x67, 0x62, 0x03, 0x66, 0x67, 0x62}, buf.Bytes()[:7])

	r, err := NewReaderFromData(buf.Bytes())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func byName(fc *geojson.FeatureCollection) []*geojson.Feature {
	features := append([]*geojson.Feature(nil), fc.Features...)
	sort.Slice(features, func(i, j int) bool {
		a, _ := features[i].Properties["name"].(string)
		b, _ := features[j].Properties["name"].(string)
		return a < b
	})
	return features
}

func TestExport_HeaderAndColumns(t *testing.T) {
	d := createParks(t, &shapefile.Options{SRID: 4326, PRJ: `GEOGCS["WGS 84"]`},
		[]interface{}{orb.Polygon{square(0, 0, 1)}, "Oak Hill", 1200, 3.5, true, time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)},
		[]interface{}{orb.Polygon{square(4, 2, 2)}, "Birch Vale", nil, nil, nil, nil},
	)

	r := export(t, d, &Options{Name: "parks", Description: "city parks", IncludeIndex: true})
	h := r.Header()
	require.NotNil(t, h)

	require.Equal(t, "parks", h.Name)
	require.Equal(t, "city parks", h.Description)
	require.Equal(t, "MultiPolygon", h.GeometryType)
	require.Equal(t, uint64(2), h.FeaturesCount)
	require.True(t, h.HasIndex)
	require.Equal(t, [4]float64{0, 0, 6, 4}, h.Envelope)

	require.NotNil(t, h.CRS)
	require.Equal(t, 4326, h.CRS.Code)
	require.Equal(t, `GEOGCS["WGS 84"]`, h.CRS.Description)

	require.Equal(t, []ColumnInfo{
		{Name: "name", Type: "String", Title: "name", Nullable: true},
		{Name: "visitors", Type: "Long", Title: "visitors", Nullable: true},
		{Name: "area_km2", Type: "Double", Title: "area_km2", Nullable: true},
		{Name: "staffed", Type: "Bool", Title: "staffed", Nullable: true},
		{Name: "opened", Type: "DateTime", Title: "opened", Nullable: true},
	}, h.Columns)
}

func TestExport_FeaturesRoundTrip(t *testing.T) {
	opened := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)
	holed := orb.Polygon{square(10, 10, 4), square(11, 11, 1)}
	holed[1].Reverse()

	d := createParks(t, nil,
		[]interface{}{orb.Polygon{square(0, 0, 1)}, "Oak Hill", 1200, 3.5, true, opened},
		[]interface{}{holed, "Birch Vale", nil, nil, false, nil},
	)

	r := export(t, d, nil)
	fc, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	features := byName(fc)

	birch := features[0]
	require.Equal(t, orb.MultiPolygon{holed}, birch.Geometry)
	require.Equal(t, geojson.Properties{"name": "Birch Vale", "staffed": false}, birch.Properties)

	oak := features[1]
	require.Equal(t, orb.MultiPolygon{{square(0, 0, 1)}}, oak.Geometry)
	require.Equal(t, geojson.Properties{
		"name":     "Oak Hill",
		"visitors": int64(1200),
		"area_km2": 3.5,
		"staffed":  true,
		"opened":   "1990-05-01T00:00:00Z",
	}, oak.Properties)

	h := r.Header()
	require.Nil(t, h.CRS)
}

func TestExport_SkipsNullRecords(t *testing.T) {
	base := filepath.Join(t.TempDir(), "stops")

	w, err := shapefile.CreateWriter(base, nil)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(shapefile.PointZ))
	require.NoError(t, w.WriteShape(&shapefile.Shape{Geometry: orb.Point{1, 2}, Z: []float64{30}}))
	require.NoError(t, w.WriteGeometry(nil))
	require.NoError(t, w.WriteGeometry(orb.Point{3, 4}))
	require.NoError(t, w.Close())

	table, err := dbf.CreateFile(base+".dbf", []dbf.Field{dbf.CharField("name", 8)}, nil)
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, table.InsertRow([]interface{}{name}))
	}
	require.NoError(t, table.Close())

	d, err := shapefile.Open(base, nil)
	require.NoError(t, err)
	defer d.Close()

	r := export(t, d, &Options{IncludeIndex: true, CRS: WGS84()})
	h := r.Header()
	require.Equal(t, "Point", h.GeometryType)
	require.Equal(t, uint64(2), h.FeaturesCount)
	require.Equal(t, "WGS 84", h.CRS.Name)

	fc, err := r.ReadAll()
	require.NoError(t, err)
	features := byName(fc)
	require.Len(t, features, 2)
	require.Equal(t, orb.Point{1, 2}, features[0].Geometry)
	require.Equal(t, "a", features[0].Properties["name"])
	require.Equal(t, orb.Point{3, 4}, features[1].Geometry)
	require.Equal(t, "c", features[1].Properties["name"])
}

func TestExport_LinesAndMultiPoints(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		st       shapefile.ShapeType
		geom     orb.Geometry
		want     orb.Geometry
		geomType string
	}{
		{
			name:     "polyline",
			st:       shapefile.PolyLine,
			geom:     orb.LineString{{0, 0}, {1, 1}, {2, 0}},
			want:     orb.MultiLineString{{{0, 0}, {1, 1}, {2, 0}}},
			geomType: "MultiLineString",
		},
		{
			name:     "multipoint",
			st:       shapefile.MultiPointM,
			geom:     orb.MultiPoint{{0, 0}, {5, 5}},
			want:     orb.MultiPoint{{0, 0}, {5, 5}},
			geomType: "MultiPoint",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			w, err := shapefile.Create(path, tt.st, []dbf.Field{dbf.NumericField("id", 4, 0)}, nil)
			require.NoError(t, err)
			require.NoError(t, w.InsertRow([]interface{}{tt.geom, 7}))
			require.NoError(t, w.Close())

			d, err := shapefile.Open(path, nil)
			require.NoError(t, err)
			defer d.Close()

			r := export(t, d, DefaultOptions())
			require.Equal(t, tt.geomType, r.Header().GeometryType)

			fc, err := r.ReadAll()
			require.NoError(t, err)
			require.Len(t, fc.Features, 1)
			require.Equal(t, tt.want, fc.Features[0].Geometry)
			require.Equal(t, int64(7), fc.Features[0].Properties["id"])
		})
	}
}

func TestExport_WithoutIndex(t *testing.T) {
	d := createParks(t, nil, []interface{}{orb.Polygon{square(0, 0, 1)}, "Oak Hill", 1, 1.0, true, nil})

	r := export(t, d, &Options{IncludeIndex: false})
	require.False(t, r.Header().HasIndex)

	_, err := r.Search(orb.Bound{Max: orb.Point{1, 1}})
	require.ErrorIs(t, err, ErrNoIndex)
}

func TestExport_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	w, err := shapefile.Create(path, shapefile.Point, []dbf.Field{dbf.CharField("a", 4)}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	d, err := shapefile.Open(path, nil)
	require.NoError(t, err)
	defer d.Close()

	require.ErrorIs(t, Export(&bytes.Buffer{}, d, nil), ErrNoFeatures)

	_, err = geometryTypeFor(shapefile.NullShape)
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestColumnTypeFor(t *testing.T) {
	tests := []struct {
		field dbf.Field
		want  flattypes.ColumnType
	}{
		{dbf.CharField("c", 10), flattypes.ColumnTypeString},
		{dbf.NumericField("n", 10, 0), flattypes.ColumnTypeLong},
		{dbf.NumericField("n", 10, 2), flattypes.ColumnTypeDouble},
		{dbf.FloatField("f", 10, 0), flattypes.ColumnTypeDouble},
		{dbf.LogicalField("l"), flattypes.ColumnTypeBool},
		{dbf.DateField("d"), flattypes.ColumnTypeDateTime},
	}
	for _, tt := range tests {
		t.Run(tt.field.Type.String(), func(t *testing.T) {
			got, err := columnTypeFor(tt.field)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := columnTypeFor(dbf.Field{Name: "memo", Type: 'M', Length: 10})
	require.ErrorIs(t, err, ErrInvalidColumn)
}
