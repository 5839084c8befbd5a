// Package api hosts the HTTP control plane for vocabsync. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs, POST /v1/runs, GET /v1/runs/{run_id} and
//     POST /v1/runs/{run_id}/cancel to drive worker runs.
//   - GET /v1/history and /v1/history/{run_id} for recorded runs via the
//     RunRepository interface.
package api
