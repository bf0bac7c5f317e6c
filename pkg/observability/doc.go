/*
Package observability turns engine lifecycle events into logs and Prometheus metrics.

Metrics.Hooks and LoggingHooks both return domain.LifecycleHooks, so they can be
combined with domain.Combine and passed to the engine. Metrics.Middleware records
HTTP traffic for the API server.
*/
package observability
