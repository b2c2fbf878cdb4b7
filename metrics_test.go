package shapefile

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	bin "github.com/tingold/orb-shapefile/internal/binary"
)

func TestMetrics_WriteAndRead(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	opts := &Options{Metrics: m}

	shp, shx := bin.NewMemFile(nil), bin.NewMemFile(nil)
	w := NewWriter(shp, shx, opts)
	require.NoError(t, w.WriteHeader(Point))
	require.NoError(t, w.WriteGeometry(orb.Point{1, 1}))
	require.NoError(t, w.WriteGeometry(nil))
	require.NoError(t, w.WriteGeometry(orb.Point{2, 2}))
	require.NoError(t, w.Close())

	require.Equal(t, float64(2), testutil.ToFloat64(m.RecordsWritten.WithLabelValues("Point")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.RecordsWritten.WithLabelValues("NullShape")))
	require.Equal(t, float64(len(shp.Bytes())), testutil.ToFloat64(m.BytesWritten))

	r, err := NewReader(shp, opts)
	require.NoError(t, err)
	sc := r.Records()
	for sc.Next() {
	}
	require.NoError(t, sc.Err())

	require.Equal(t, float64(2), testutil.ToFloat64(m.RecordsRead.WithLabelValues("Point")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.RecordsRead.WithLabelValues("NullShape")))
}

func TestMetrics_RingRepairs(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h, err := handlerFor(Polygon, &Options{Metrics: m})
	require.NoError(t, err)

	open := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}} // open and counter-clockwise
	_, err = h.flatten(NewShape(orb.Polygon{open}))
	require.NoError(t, err)

	require.Equal(t, float64(1), testutil.ToFloat64(m.RingsRepaired.WithLabelValues(RepairClosed)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.RingsRepaired.WithLabelValues(RepairReoriented)))

	content := rawMultiPart(Polygon,
		ccwSquare(0, 0, 10, 10),
		[]orb.Point{{1, 1}, {2, 2}, {1, 1}},
	)
	buf := bin.FromBytes(content)
	_, err = decodeContent(buf, Polygon, &Options{Metrics: m, Logger: DefaultOptions().Logger})
	require.NoError(t, err)

	require.Equal(t, float64(1), testutil.ToFloat64(m.RingsRepaired.WithLabelValues(RepairDegenerate)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.RingsRepaired.WithLabelValues(RepairOrphanHole)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.recordRead(Point)
		m.recordWritten(Point, 28)
		m.bytesWritten(100)
		m.ringRepaired(RepairClosed)
	})
}

func TestMetrics_Registration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordsRead.WithLabelValues("Point").Add(0)
	m.RecordsWritten.WithLabelValues("Point").Add(0)
	m.RingsRepaired.WithLabelValues(RepairClosed).Add(0)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, name := range []string{
		"shapefile_records_read_total",
		"shapefile_records_written_total",
		"shapefile_bytes_written_total",
		"shapefile_rings_repaired_total",
	} {
		require.True(t, names[name], name)
	}

	require.Panics(t, func() { NewMetrics(reg) })
}
