// Package metrics exposes Prometheus counters and histograms for
// translation requests and pipeline jobs. Metrics can be scraped over HTTP
// while a run is in progress or written to a node_exporter textfile when it
// finishes.
package metrics
