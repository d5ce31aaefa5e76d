package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitebuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	buildDuration  prom.Histogram
	buildOutcome   *prom.CounterVec
	parserDuration *prom.HistogramVec
	entries        *prom.CounterVec
	bytesCopied    prom.Counter
	fetchDuration  *prom.HistogramVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		parserDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "parser_duration_seconds",
			Help:      "Duration of individual parser transforms",
			Buckets:   prom.DefBuckets,
		}, []string{"parser"}),
		entries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Walked source entries by outcome",
		}, []string{"outcome"}),
		bytesCopied: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "copied_bytes_total",
			Help:      "Bytes copied verbatim into the output tree",
		}),
		fetchDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of git source fetches",
			Buckets:   prom.DefBuckets,
		}, []string{"source", "result"}),
	}
	reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.parserDuration, pr.entries, pr.bytesCopied, pr.fetchDuration)
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcome) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveParserDuration(parser string, d time.Duration) {
	if p == nil {
		return
	}
	p.parserDuration.WithLabelValues(parser).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncEntry(outcome EntryOutcome) {
	if p == nil {
		return
	}
	p.entries.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddBytesCopied(n int64) {
	if p == nil || n <= 0 {
		return
	}
	p.bytesCopied.Add(float64(n))
}

func (p *PrometheusRecorder) ObserveSourceFetchDuration(source string, d time.Duration, success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.fetchDuration.WithLabelValues(source, res).Observe(d.Seconds())
}
