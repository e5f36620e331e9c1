// Package middleware provides HTTP middleware for the admin API.
//
// Logger writes one access line per request through package logging, and
// Metrics records Prometheus request counters with item ids collapsed to
// {id}. Both can leave health checks and /metrics out.
package middleware
