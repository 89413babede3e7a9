// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs to crawl the trending page now.
//   - GET /v1/summary and /v1/report for the latest artifacts.
//   - POST /v1/notify to e-mail the latest report.
package api
