package packager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gitlab.com/gitlab-org/deploy-packager/archive"
)

// Metrics collects the counters of packaging runs in its own registry, so
// they can be written as a node-exporter textfile once the run is over.
type Metrics struct {
	registry *prometheus.Registry

	entries           *prometheus.CounterVec
	excluded          prometheus.Counter
	uncompressedBytes prometheus.Counter
	compressedBytes   prometheus.Counter
	archiveSize       prometheus.Gauge
	duration          prometheus.Gauge
	success           prometheus.Gauge
	lastRun           prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		entries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deploy_packager_entries_total",
				Help: "Total number of entries written to the archive.",
			},
			[]string{"kind"},
		),
		excluded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deploy_packager_excluded_entries_total",
			Help: "Total number of entries skipped by exclude patterns.",
		}),
		uncompressedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deploy_packager_uncompressed_bytes_total",
			Help: "Total size of the entry bodies before compression.",
		}),
		compressedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deploy_packager_compressed_bytes_total",
			Help: "Total size of the entry bodies after compression.",
		}),
		archiveSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deploy_packager_archive_size_bytes",
			Help: "Size of the finalized archive.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deploy_packager_run_duration_seconds",
			Help: "Duration of the last packaging run.",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deploy_packager_run_success",
			Help: "Whether the last packaging run produced an artifact.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deploy_packager_last_run_timestamp_seconds",
			Help: "Unix time the last packaging run finished.",
		}),
	}

	m.registry.MustRegister(
		m.entries,
		m.excluded,
		m.uncompressedBytes,
		m.compressedBytes,
		m.archiveSize,
		m.duration,
		m.success,
		m.lastRun,
	)

	return m
}

// Register adds further collectors, e.g. the build information.
func (m *Metrics) Register(c prometheus.Collector) error {
	return m.registry.Register(c)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observeEntry(kind archive.EntryKind, stats archive.EntryStats) {
	if m == nil {
		return
	}

	m.entries.WithLabelValues(kind.String()).Inc()
	m.uncompressedBytes.Add(float64(stats.UncompressedSize))
	m.compressedBytes.Add(float64(stats.CompressedSize))
}

func (m *Metrics) observeExcluded() {
	if m == nil {
		return
	}

	m.excluded.Inc()
}

func (m *Metrics) observeRun(report *CompletionReport, duration time.Duration) {
	if m == nil {
		return
	}

	m.duration.Set(duration.Seconds())
	m.lastRun.SetToCurrentTime()

	if report == nil {
		m.success.Set(0)
		return
	}

	m.success.Set(1)
	m.archiveSize.Set(float64(report.FinalSizeBytes))
}
