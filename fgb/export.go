package fgb

import (
	"fmt"
	"io"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	"github.com/go-kit/log/level"
	flatbuffers "github.com/google/flatbuffers/go"

	shapefile "github.com/tingold/orb-shapefile"
)

// Export writes every row of a read driver to w as a FlatGeobuf layer.
// Rows with a null geometry record are skipped, Z and M values are dropped.
// Without an explicit CRS in opts the layer takes the driver's SRID and
// projection WKT.
func Export(w io.Writer, d *shapefile.Driver, opts *Options) error {
	opts = opts.withDefaults()
	if d.RowCount() == 0 {
		return ErrNoFeatures
	}

	geomType, err := geometryTypeFor(d.ShapeType())
	if err != nil {
		return err
	}
	sch, err := newSchema(d.Fields())
	if err != nil {
		return err
	}

	builder := flatbuffers.NewBuilder(4096)

	header := writer.NewHeader(builder)
	header.SetGeometryType(geomType)
	if opts.Name != "" {
		header.SetName(opts.Name)
	}
	if opts.Description != "" {
		header.SetDescription(opts.Description)
	}
	if len(sch) > 0 {
		header.SetColumns(sch.build(builder))
	}
	if crs := crsFor(d, opts); crs != nil {
		c := writer.NewCrs(builder)
		c.SetOrg("EPSG")
		if crs.Code > 0 {
			c.SetCode(int32(crs.Code))
		}
		if crs.Name != "" {
			c.SetName(crs.Name)
		}
		switch {
		case crs.Description != "":
			c.SetDescription(crs.Description)
		case crs.WKT != "":
			c.SetDescription(crs.WKT)
		}
		header.SetCrs(c)
	}

	gen := &driverFeatureGenerator{driver: d, schema: sch}
	n, err := writer.NewWriter(header, opts.IncludeIndex, gen, nil).Write(w)
	if gen.err != nil {
		return gen.err
	}
	if err != nil {
		return fmt.Errorf("fgb: write: %w", err)
	}

	level.Debug(opts.Logger).Log("msg", "exported flatgeobuf", "features", gen.written, "skipped", gen.skipped, "bytes", n)
	return nil
}

func geometryTypeFor(t shapefile.ShapeType) (flattypes.GeometryType, error) {
	switch t.Family() {
	case shapefile.FamilyPoint:
		return flattypes.GeometryTypePoint, nil
	case shapefile.FamilyMultiPoint:
		return flattypes.GeometryTypeMultiPoint, nil
	case shapefile.FamilyPolyLine:
		return flattypes.GeometryTypeMultiLineString, nil
	case shapefile.FamilyPolygon:
		return flattypes.GeometryTypeMultiPolygon, nil
	}
	return flattypes.GeometryTypeUnknown, fmt.Errorf("%w: %v", ErrUnsupportedType, t)
}

func crsFor(d *shapefile.Driver, opts *Options) *CRS {
	if opts.CRS != nil {
		return opts.CRS
	}
	if d.SRID() <= 0 && d.PRJ() == "" {
		return nil
	}
	return &CRS{Code: d.SRID(), WKT: d.PRJ()}
}

// driverFeatureGenerator feeds driver rows to the FlatGeobuf writer. The
// writer's generator contract has no error channel, so the first failure
// ends the stream and is kept in err.
type driverFeatureGenerator struct {
	driver *shapefile.Driver
	schema schema
	next   int

	written int
	skipped int
	err     error
}

func (g *driverFeatureGenerator) Generate() *writer.Feature {
	for g.err == nil && g.next < g.driver.RowCount() {
		i := g.next
		g.next++

		s, err := g.driver.Shape(i)
		if err != nil {
			g.err = err
			return nil
		}
		if s == nil {
			g.skipped++
			continue
		}

		builder := flatbuffers.NewBuilder(1024)
		geom := geometryToFGB(s.Geometry, builder)
		if geom == nil {
			g.err = fmt.Errorf("%w: row %d holds %T", ErrUnsupportedType, i, s.Geometry)
			return nil
		}
		feature := writer.NewFeature(builder)
		feature.SetGeometry(geom)

		attrs, err := g.driver.Attributes(i)
		if err != nil {
			g.err = err
			return nil
		}
		props, err := g.schema.encode(attrs)
		if err != nil {
			g.err = fmt.Errorf("row %d: %w", i, err)
			return nil
		}
		if len(props) > 0 {
			feature.SetProperties(props)
		}

		g.written++
		return feature
	}
	return nil
}
