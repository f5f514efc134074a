// Package server exposes runs over HTTP.
//
// Routes:
//
//	GET  /         banner text
//	POST /         {"target": "<host>"} as JSON or form body; basic auth
//	               when credentials are configured
//	GET  /healthz  liveness probe
//	GET  /metrics  prometheus metrics, when a recorder is configured
//
// POST / answers exactly once: {"reductionFactor", "css"} on success or a
// single error status. Authentication failures are 401, a missing or
// invalid target 422, an unreachable page 502, an expired run deadline 504
// and every other failure 500.
package server
