/*
Package observability turns session lifecycle events into logs, Prometheus
metrics and OpenTelemetry spans.

Each concern is exposed as a domain.LifecycleHooks value; Compose merges them
so a manager or session can register all of them at once:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.Compose(
		observability.LoggingHooks(logger),
		metrics.Hooks(),
		observability.TracingHooks(otel.Tracer("quiz")),
	)
	mgr := session.NewManager(reg, store, session.WithHooks(hooks))
*/
package observability
