// Package api hosts the ops HTTP server that runs alongside a harvest.
// Routes:
//   - GET /healthz reports liveness and the current harvest phase.
//   - GET /readyz returns 503 until the pipeline is wired.
//   - GET /metrics for Prometheus scraping.
package api
