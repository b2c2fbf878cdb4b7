// Command shpinfo inspects shapefiles and converts them to GeoJSON or
// FlatGeobuf.
//
//	shpinfo info roads.shp
//	shpinfo dump -limit 10 roads.shp
//	shpinfo export -format fgb -o roads.fgb roads.shp
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/paulmach/orb/encoding/wkt"

	shapefile "github.com/tingold/orb-shapefile"
	"github.com/tingold/orb-shapefile/dbf"
	"github.com/tingold/orb-shapefile/fgb"
)

const usage = `usage: shpinfo <command> [flags] <file.shp>

commands:
  info     print the header, record count and attribute fields
  dump     print rows with geometries as WKT
  export   convert to GeoJSON or FlatGeobuf
`

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	if err := run(os.Args[1:], os.Stdout, logger); err != nil {
		level.Error(logger).Log("msg", "shpinfo failed", "err", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer, logger log.Logger) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	encName := fs.String("encoding", "", "attribute code page, overriding the .cpg file")
	debug := fs.Bool("debug", false, "log ring repairs and other decode details")

	var cmd func(d *shapefile.Driver) error
	switch args[0] {
	case "info":
		cmd = func(d *shapefile.Driver) error { return info(stdout, d) }
	case "dump":
		limit := fs.Int("limit", 0, "stop after this many rows")
		cmd = func(d *shapefile.Driver) error { return dump(stdout, d, *limit) }
	case "export":
		format := fs.String("format", "geojson", "output format: geojson or fgb")
		out := fs.String("o", "", "output file (default stdout)")
		name := fs.String("name", "", "FlatGeobuf layer name")
		cmd = func(d *shapefile.Driver) error {
			return export(stdout, d, *format, *out, *name, logger)
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}

	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("expected exactly one shapefile")
	}

	if *debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	opts := &shapefile.Options{Logger: logger}
	if *encName != "" {
		enc, err := dbf.EncodingFor(*encName)
		if err != nil {
			return err
		}
		opts.Encoding = enc
	}

	d, err := shapefile.Open(fs.Arg(0), opts)
	if err != nil {
		return err
	}
	defer d.Close()
	return cmd(d)
}

func info(w io.Writer, d *shapefile.Driver) error {
	h := d.Header()
	tw := bufio.NewWriter(w)
	fmt.Fprintf(tw, "shape type:  %v\n", h.ShapeType)
	fmt.Fprintf(tw, "records:     %d\n", d.RowCount())
	fmt.Fprintf(tw, "file length: %d bytes\n", h.FileBytes())
	fmt.Fprintf(tw, "bounds:      [%g %g] - [%g %g]\n", h.Bound.Min[0], h.Bound.Min[1], h.Bound.Max[0], h.Bound.Max[1])
	fmt.Fprintf(tw, "z: %t  m: %t\n", h.ShapeType.HasZ(), h.ShapeType.HasM())
	if prj := d.PRJ(); prj != "" {
		fmt.Fprintf(tw, "projection:  %s\n", prj)
	}
	fmt.Fprintf(tw, "fields:\n")
	for _, f := range d.Fields() {
		fmt.Fprintf(tw, "  %-10s %-9v %3d.%d\n", f.Name, f.Type, f.Length, f.Decimals)
	}
	return tw.Flush()
}

func dump(w io.Writer, d *shapefile.Driver, limit int) error {
	tw := bufio.NewWriter(w)
	names := make([]string, 0, len(d.Fields()))
	for _, f := range d.Fields() {
		names = append(names, f.Name)
	}
	fmt.Fprintf(tw, "#\tgeometry\t%s\n", strings.Join(names, "\t"))

	for i := 0; i < d.RowCount(); i++ {
		if limit > 0 && i >= limit {
			break
		}
		s, err := d.Shape(i)
		if err != nil {
			return err
		}
		attrs, err := d.Attributes(i)
		if err != nil {
			return err
		}

		geom := "NULL"
		if s != nil {
			geom = wkt.MarshalString(s.Geometry)
		}
		cols := make([]string, 0, len(attrs))
		for _, v := range attrs {
			cols = append(cols, formatValue(v))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, geom, strings.Join(cols, "\t"))
	}
	return tw.Flush()
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format("2006-01-02")
	}
	return fmt.Sprint(v)
}

func export(stdout io.Writer, d *shapefile.Driver, format, out, name string, logger log.Logger) (err error) {
	w := stdout
	if out != "" {
		var f *os.File
		if f, err = os.Create(out); err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	bw := bufio.NewWriter(w)
	switch format {
	case "geojson":
		fc, err := d.Features()
		if err != nil {
			return err
		}
		if err := json.NewEncoder(bw).Encode(fc); err != nil {
			return err
		}
	case "fgb":
		opts := fgb.DefaultOptions()
		opts.Name = name
		opts.Logger = logger
		if err := fgb.Export(bw, d, opts); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	level.Info(logger).Log("msg", "exported", "format", format, "rows", d.RowCount(), "out", out)
	return bw.Flush()
}
