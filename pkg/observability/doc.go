/*
Package observability turns canopy lifecycle events into logs and metrics.

Both Metrics.Hooks and LoggingHooks return domain.LifecycleHooks; combine
them with LifecycleHooks.Merge and pass the result to canopy.WithLifecycleHooks.
*/
package observability
