// Package metrics exposes expvar-published counters used by the flow editor,
// persistence layer and runtime interpreter. sceneflow-server renders them at
// /debug/vars and, in Prometheus text form, at /metrics.
package metrics
