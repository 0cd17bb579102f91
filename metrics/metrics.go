package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	FramesExtracted *prometheus.CounterVec
	FramesWritten   *prometheus.CounterVec
	VideosProcessed *prometheus.CounterVec
	ProcessTime     *prometheus.HistogramVec
	MetadataCached  prometheus.Counter
}

func InitializeMetrics(registry prometheus.Registerer, constLabels prometheus.Labels) *Metrics {
	metrics := &Metrics{
		FramesExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "frames_extracted_total",
			Help:        "Number of frames decoded by the sampler",
			ConstLabels: constLabels,
		}, []string{"operation"}),
		FramesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "frames_written_total",
			Help:        "Number of frames persisted to a sink",
			ConstLabels: constLabels,
		}, []string{"sink"}),
		VideosProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "videos_processed_total",
			Help:        "Number of videos processed, by outcome",
			ConstLabels: constLabels,
		}, []string{"operation", "status"}),
		ProcessTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "video_process_time_seconds",
			Help:        "Time spent sampling a single video",
			ConstLabels: constLabels,
			Buckets:     []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"operation"}),
		MetadataCached: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "metadata_served_cached_total",
			Help:        "Number of metadata responses served from cache",
			ConstLabels: constLabels,
		}),
	}

	registry.MustRegister(
		metrics.FramesExtracted,
		metrics.FramesWritten,
		metrics.VideosProcessed,
		metrics.ProcessTime,
		metrics.MetadataCached,
	)

	return metrics
}

// Status maps an error to the status label value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// TimeOperation returns a func that records the elapsed time and outcome of operation.
func (m *Metrics) TimeOperation(operation string) func(err error) {
	start := time.Now()
	return func(err error) {
		if m == nil {
			return
		}
		m.ProcessTime.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		m.VideosProcessed.WithLabelValues(operation, Status(err)).Inc()
	}
}

// AddFramesExtracted is safe to call on a nil *Metrics.
func (m *Metrics) AddFramesExtracted(operation string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FramesExtracted.WithLabelValues(operation).Add(float64(n))
}

// AddFramesWritten is safe to call on a nil *Metrics.
func (m *Metrics) AddFramesWritten(sink string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FramesWritten.WithLabelValues(sink).Add(float64(n))
}
