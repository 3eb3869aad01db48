// Package api serves a read-only HTTP view of the catalog. Notable routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/ads and /v1/content list the indexes, most recent first.
//   - GET /v1/ads/{id}/image and /v1/content/{id}/cover stream the images.
//   - GET /v1/events lists recent catalog events when an audit store is wired.
package api
