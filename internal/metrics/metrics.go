package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	Processed      prometheus.Counter
	Duplicates     prometheus.Counter
	Failed         prometheus.Counter
	DeadLettered   prometheus.Counter
	CommitFailures prometheus.Counter

	PipelineLatencySec prometheus.Histogram
	DedupLatencySec    prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	processed := prometheus.NewCounter(prometheus.CounterOpts{Name: "skatestock_events_processed_total"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{Name: "skatestock_events_duplicate_total"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "skatestock_events_failed_total"})
	deadLettered := prometheus.NewCounter(prometheus.CounterOpts{Name: "skatestock_events_dead_lettered_total"})
	commitFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "skatestock_commit_failures_total"})

	pipelineLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skatestock_pipeline_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})
	dedupLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skatestock_dedup_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(processed, duplicates, failed, deadLettered, commitFailures, pipelineLatency, dedupLatency)
	return &Registry{
		reg:                r,
		Processed:          processed,
		Duplicates:         duplicates,
		Failed:             failed,
		DeadLettered:       deadLettered,
		CommitFailures:     commitFailures,
		PipelineLatencySec: pipelineLatency,
		DedupLatencySec:    dedupLatency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
