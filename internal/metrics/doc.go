// Package metrics provides the observability hooks for sitebuilder builds.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics cost nothing unless a real implementation is
// wired in:
//
//	reg := prom.NewRegistry()
//	recorder := metrics.NewPrometheusRecorder(reg)
//	svc := build.NewService(registry).WithRecorder(recorder)
//	http.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
