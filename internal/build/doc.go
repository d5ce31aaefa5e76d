// Package build runs one site build end to end.
//
// A build loads the per-root trees of the last successful run, decides
// whether they may be trusted (configuration signature), resolves source
// roots, walks every root against its own previous tree into the shared
// output directory and folds the per-root trees into one manifest. The
// manifest and the per-root state are only written when every root
// succeeded. Each
// run is recorded in the history ledger, counted in metrics, announced on
// NATS and optionally published to S3.
package build
