/*
Package observability provides lifecycle hooks for monitoring the whatsflow engine.

Metrics exposes step visits, session outcomes and persistence failures as
Prometheus collectors. Combine merges several hook sets so metrics and
structured logging can observe the same run.
*/
package observability
