// Package metrics exposes meshgate counters and latencies in the
// Prometheus exposition format.
//
// A single Metrics value owns its own registry, so tests can build as many
// as they like without colliding on the global default registry.
//
//	m := metrics.New()
//	authorizer.AddRecorder(m)
//	bus.AddSink(m)
//	router.Handle("/metrics", m.Handler())
//
// Every Record method is safe on a nil *Metrics, which lets callers treat
// metrics as optional.
package metrics
