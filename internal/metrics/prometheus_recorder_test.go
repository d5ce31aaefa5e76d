package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prom.Registry, name, label, value string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" {
				return m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncBuildOutcome(BuildSuccess)
	pr.ObserveParserDuration("markdown", 10*time.Millisecond)
	pr.IncEntry(EntryReused)
	pr.IncEntry(EntryReused)
	pr.IncEntry(EntryTransformed)
	pr.AddBytesCopied(1024)
	pr.AddBytesCopied(-5)
	pr.ObserveSourceFetchDuration("docs", time.Second, true)

	assert.Equal(t, 2.0, counterValue(t, reg, "sitebuilder_entries_total", "outcome", "reused"))
	assert.Equal(t, 1.0, counterValue(t, reg, "sitebuilder_entries_total", "outcome", "transformed"))
	assert.Equal(t, 1.0, counterValue(t, reg, "sitebuilder_build_outcomes_total", "outcome", "success"))
	assert.Equal(t, 1024.0, counterValue(t, reg, "sitebuilder_copied_bytes_total", "", ""))
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncEntry(EntryCopied)
	pr.ObserveBuildDuration(time.Second)
	pr.AddBytesCopied(1)
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncBuildOutcome(BuildFailed)
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncBuildOutcome(BuildCancelled)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sitebuilder_build_outcomes_total{outcome="cancelled"} 1`)
}

func TestNewRegistryIncludesRuntimeCollectors(t *testing.T) {
	families, err := NewRegistry().Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "go_goroutines")
}
