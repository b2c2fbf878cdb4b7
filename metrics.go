package shapefile

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Ring repair reasons reported by RingsRepaired.
const (
	RepairClosed     = "closed"
	RepairDegenerate = "degenerate"
	RepairOrphanHole = "orphan_hole"
	RepairReoriented = "reoriented"
)

// Metrics holds the Prometheus metrics of the shapefile codec. A nil
// *Metrics records nothing.
type Metrics struct {
	RecordsRead    *prometheus.CounterVec
	RecordsWritten *prometheus.CounterVec
	BytesWritten   prometheus.Counter
	RingsRepaired  *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	recordsRead := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shapefile_records_read_total",
		Help: "Total shape records decoded",
	}, []string{"shape_type"})

	recordsWritten := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shapefile_records_written_total",
		Help: "Total shape records encoded",
	}, []string{"shape_type"})

	bytesWritten := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shapefile_bytes_written_total",
		Help: "Total bytes written to .shp files, headers included",
	})

	ringsRepaired := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shapefile_rings_repaired_total",
		Help: "Polygon rings closed, dropped, reversed or promoted while decoding or encoding",
	}, []string{"reason"})

	reg.MustRegister(recordsRead, recordsWritten, bytesWritten, ringsRepaired)

	return &Metrics{
		RecordsRead:    recordsRead,
		RecordsWritten: recordsWritten,
		BytesWritten:   bytesWritten,
		RingsRepaired:  ringsRepaired,
	}
}

func (m *Metrics) recordRead(t ShapeType) {
	if m != nil {
		m.RecordsRead.WithLabelValues(t.String()).Inc()
	}
}

func (m *Metrics) recordWritten(t ShapeType, n int) {
	if m != nil {
		m.RecordsWritten.WithLabelValues(t.String()).Inc()
		m.BytesWritten.Add(float64(n))
	}
}

func (m *Metrics) bytesWritten(n int) {
	if m != nil {
		m.BytesWritten.Add(float64(n))
	}
}

func (m *Metrics) ringRepaired(reason string) {
	if m != nil {
		m.RingsRepaired.WithLabelValues(reason).Inc()
	}
}
