// Package daemon keeps a site up to date without manual builds.
//
// A Runner serializes builds: triggers arriving while a build runs collapse
// into a single follow-up build. Triggers come from a cron Scheduler, from a
// filesystem Watcher over the source roots, or both. An optional HTTP server
// exposes Prometheus metrics, a health probe and the last build status.
package daemon
