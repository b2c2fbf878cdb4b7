package shapefile

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tingold/orb-shapefile/dbf"
)

// Features reads every row into a GeoJSON feature collection. Properties
// are keyed by attribute field name; rows with a null geometry record get a
// nil geometry.
func (d *Driver) Features() (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for i := 0; i < d.RowCount(); i++ {
		f, err := d.Feature(i)
		if err != nil {
			return nil, err
		}
		fc.Append(f)
	}
	return fc, nil
}

// Feature reads row i as a GeoJSON feature.
func (d *Driver) Feature(i int) (*geojson.Feature, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.reader == nil {
		return nil, fmt.Errorf("%w: driver opened for writing", ErrIllegalState)
	}
	attrs, err := d.table.Row(i)
	if err != nil {
		return nil, err
	}
	s, err := d.shapeAt(i)
	if err != nil {
		return nil, err
	}
	var g orb.Geometry
	if s != nil {
		g = s.Geometry
	}
	f := geojson.NewFeature(g)
	f.ID = i
	for j, v := range attrs {
		f.Properties[d.fieldName(j)] = v
	}
	return f, nil
}

func (d *Driver) fieldName(j int) string {
	if j < len(d.fields) {
		return d.fields[j].Name
	}
	return "field_" + strconv.Itoa(j)
}

// WriteFeatures writes a feature collection as a shapefile at path. The
// shape type follows the geometries, which must all belong to one family;
// attribute fields are inferred from the properties.
func WriteFeatures(path string, fc *geojson.FeatureCollection, opts *Options) (err error) {
	opts = opts.withDefaults()
	t, err := shapeTypeFor(fc)
	if err != nil {
		return err
	}
	names, fields := inferFields(fc)

	cp := *opts
	cp.GeometryColumn = 0
	d, err := Create(path, t, fields, &cp)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); err == nil {
			err = cerr
		}
	}()

	row := make([]interface{}, len(names)+1)
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return fmt.Errorf("feature %d: %w", i, ErrMissingGeometry)
		}
		row[0] = f.Geometry
		for j, name := range names {
			row[j+1] = f.Properties[name]
		}
		if err := d.InsertRow(row); err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
	}
	return nil
}

// shapeTypeFor picks the 2D shape type shared by every geometry of fc.
func shapeTypeFor(fc *geojson.FeatureCollection) (ShapeType, error) {
	family := FamilyNull
	for i, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		fam := familyOf(f.Geometry)
		if fam == FamilyNull {
			return 0, fmt.Errorf("feature %d: %w: %T", i, ErrGeometryType, f.Geometry)
		}
		if family == FamilyNull {
			family = fam
		} else if fam != family {
			return 0, fmt.Errorf("feature %d: %w: %v among %v geometries", i, ErrGeometryType, fam, family)
		}
	}
	if family == FamilyNull {
		return 0, fmt.Errorf("%w: no geometries", ErrMissingGeometry)
	}
	return ShapeTypeOf(family, DimXY)
}

func familyOf(g orb.Geometry) Family {
	switch g.(type) {
	case orb.Point:
		return FamilyPoint
	case orb.MultiPoint:
		return FamilyMultiPoint
	case orb.LineString, orb.MultiLineString:
		return FamilyPolyLine
	case orb.Polygon, orb.MultiPolygon, orb.Ring, orb.Bound:
		return FamilyPolygon
	}
	return FamilyNull
}

// inferFields returns the property names in first-seen order and a field
// per name. Names are made unique after truncation to the dBase limit.
func inferFields(fc *geojson.FeatureCollection) ([]string, []dbf.Field) {
	var names []string
	seen := make(map[string]bool)
	for _, f := range fc.Features {
		keys := make([]string, 0, len(f.Properties))
		for k := range f.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}

	used := make(map[string]bool)
	fields := make([]dbf.Field, len(names))
	values := make([]interface{}, len(fc.Features))
	for j, name := range names {
		for i, f := range fc.Features {
			values[i] = f.Properties[name]
		}
		field := dbf.InferField(name, values)
		field.Name = uniqueFieldName(name, used)
		fields[j] = field
	}
	return names, fields
}

func uniqueFieldName(name string, used map[string]bool) string {
	const limit = 10
	base := name
	if len(base) > limit {
		base = base[:limit]
	}
	candidate := base
	for n := 1; used[candidate]; n++ {
		suffix := "_" + strconv.Itoa(n)
		trimmed := base
		if len(trimmed)+len(suffix) > limit {
			trimmed = trimmed[:limit-len(suffix)]
		}
		candidate = trimmed + suffix
	}
	used[candidate] = true
	return candidate
}
