package observability

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one process, registered on their own
// registry so commands and tests never share state.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	ResultsTotal     *prometheus.CounterVec
	CatalogEntries   prometheus.Histogram
	DocumentBarcodes prometheus.Histogram
	StageDuration    *prometheus.HistogramVec
	ComplianceRate   *prometheus.GaugeVec
	CacheLookups     *prometheus.CounterVec
	CachePurges      prometheus.Counter
	EmailsProcessed  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labelrecon_runs_total",
			Help: "Reconciliation runs by outcome",
		}, []string{"outcome"}), // outcome: ok, invalid_input, extraction_failed, canceled, store_failed
		ResultsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labelrecon_results_total",
			Help: "Comparison results by status",
		}, []string{"status"}),
		CatalogEntries: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "labelrecon_catalog_entries",
			Help:    "Entries extracted per spreadsheet",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		}),
		DocumentBarcodes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "labelrecon_document_barcodes",
			Help:    "Barcodes extracted per PDF",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labelrecon_stage_duration_seconds",
			Help:    "Duration of reconciliation stages in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		ComplianceRate: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labelrecon_compliance_rate_percent",
			Help: "Compliance rate of the last run per supplier",
		}, []string{"supplier"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labelrecon_cache_lookups_total",
			Help: "Extraction cache lookups by result",
		}, []string{"result"}), // result: hit, miss
		CachePurges: f.NewCounter(prometheus.CounterOpts{
			Name: "labelrecon_cache_purges_total",
			Help: "Cache purges triggered by memory pressure",
		}),
		EmailsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labelrecon_emails_processed_total",
			Help: "Stored emails processed by final status",
		}, []string{"status"}),
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
