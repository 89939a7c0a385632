// Package server provides the HTTP API for quota checks and usage
// recording.
//
// # Endpoints
//
//   - POST /v1/email/check     - admission check for an email send
//   - POST /v1/linkedin/check  - admission check for a LinkedIn action
//   - POST /v1/email/usage     - record a completed email send
//   - POST /v1/linkedin/usage  - record a completed LinkedIn action
//   - GET  /v1/thresholds      - usage windows at or past the warning ratio
//   - GET  /healthz            - liveness probe
//   - GET  /metrics            - Prometheus metrics (when enabled)
//
// # Semantics
//
// Check endpoints return 200 with an allowed flag; a denial is a successful
// response, not an HTTP error. When the counter store is unreachable the
// check fails closed: 503 with allowed set to false.
//
// Usage endpoints return 204. A lost increment (retries exhausted) is still
// 204: the send already happened and cannot be un-sent, so the loss is
// logged and reconciled out of band rather than surfaced to the caller.
package server
