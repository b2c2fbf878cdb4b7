package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	shapefile "github.com/tingold/orb-shapefile"
	"github.com/tingold/orb-shapefile/dbf"
	"github.com/tingold/orb-shapefile/fgb"
)

type City struct {
	Name       string
	Country    string
	Longitude  float64
	Latitude   float64
	Population int
	Capital    bool
}

var cities = []City{
	{"Tokyo", "Japan", 139.6917, 35.6895, 13960000, true},
	{"New York", "United States", -73.9857, 40.7484, 8336817, false},
	{"London", "United Kingdom", -0.1276, 51.5074, 8982000, true},
	{"Paris", "France", 2.3522, 48.8566, 2161000, true},
	{"Beijing", "China", 116.4074, 39.9042, 21540000, true},
	{"Moscow", "Russia", 37.6173, 55.7558, 12615000, true},
	{"São Paulo", "Brazil", -46.6333, -23.5505, 12300000, false},
	{"Mumbai", "India", 72.8777, 19.0760, 12400000, false},
	{"Los Angeles", "United States", -118.2437, 34.0522, 3971883, false},
	{"Shanghai", "China", 121.4737, 31.2304, 24870000, false},
	{"Istanbul", "Turkey", 28.9784, 41.0082, 15520000, false},
	{"Buenos Aires", "Argentina", -58.3816, -34.6037, 3075646, true},
	{"Cairo", "Egypt", 31.2357, 30.0444, 10230000, true},
	{"Sydney", "Australia", 151.2093, -33.8688, 5312000, false},
	{"Berlin", "Germany", 13.4050, 52.5200, 3669491, true},
}

const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

func main() {
	var (
		addr = flag.String("addr", ":8080", "listen address")
		shp  = flag.String("shp", "", "shapefile to serve; a world cities layer is generated when empty")
	)
	flag.Parse()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	reg := prometheus.NewRegistry()
	opts := &shapefile.Options{
		SRID:    4326,
		Logger:  logger,
		Metrics: shapefile.NewMetrics(reg),
	}

	path, tmpDir := *shp, ""
	if path == "" {
		dir, err := os.MkdirTemp("", "shapefile-demo")
		if err != nil {
			level.Error(logger).Log("msg", "failed to create temp dir", "err", err)
			os.Exit(1)
		}
		tmpDir = dir
		path = filepath.Join(dir, "world_cities.shp")
		if err := writeCities(path, opts); err != nil {
			level.Error(logger).Log("msg", "failed to write cities", "err", err)
			os.Exit(1)
		}
	}

	fgbData, geojsonData, err := load(path, opts)
	if tmpDir != "" {
		_ = os.RemoveAll(tmpDir)
	}
	if err != nil {
		level.Error(logger).Log("msg", "failed to load shapefile", "path", path, "err", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/data.fgb", serveBytes("application/octet-stream", fgbData))
	mux.HandleFunc("/data.geojson", serveBytes("application/geo+json", geojsonData))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	level.Info(logger).Log("msg", "server starting", "addr", *addr, "shapefile", path, "fgb_bytes", len(fgbData))
	if err := http.ListenAndServe(*addr, mux); err != nil {
		level.Error(logger).Log("msg", "server stopped", "err", err)
		os.Exit(1)
	}
}

func writeCities(path string, opts *shapefile.Options) error {
	o := *opts
	o.PRJ = wgs84PRJ

	d, err := shapefile.Create(path, shapefile.Point, []dbf.Field{
		dbf.CharField("name", 32),
		dbf.CharField("country", 32),
		dbf.NumericField("population", 10, 0),
		dbf.LogicalField("capital"),
	}, &o)
	if err != nil {
		return err
	}
	for _, c := range cities {
		row := []interface{}{orb.Point{c.Longitude, c.Latitude}, c.Name, c.Country, c.Population, c.Capital}
		if err := d.InsertRow(row); err != nil {
			_ = d.Close()
			return err
		}
	}
	return d.Close()
}

func load(path string, opts *shapefile.Options) (fgbData, geojsonData []byte, err error) {
	d, err := shapefile.Open(path, opts)
	if err != nil {
		return nil, nil, err
	}
	defer d.Close()

	var buf bytes.Buffer
	err = fgb.Export(&buf, d, &fgb.Options{
		Name:         "world_cities",
		Description:  "Major world cities",
		IncludeIndex: true,
		Logger:       opts.Logger,
	})
	if err != nil {
		return nil, nil, err
	}

	fc, err := d.Features()
	if err != nil {
		return nil, nil, err
	}
	geojsonData, err = json.Marshal(fc)
	if err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), geojsonData, nil
}

func serveBytes(contentType string, data []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_, _ = w.Write(data)
	}
}
