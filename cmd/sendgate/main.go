// Sendgate is a send quota service for outbound email and LinkedIn outreach.
//
// It enforces per-plan daily and monthly send ceilings, tracks usage in an
// atomic counter store, and surfaces threshold warnings before a workspace
// hits its limits:
//   - Admission checks for email (per mailbox) and LinkedIn (per workspace)
//   - Usage recording with bounded retries and loss reconciliation logging
//   - Threshold warnings at a configurable fraction of each ceiling
//   - Pluggable counter storage (memory, SQLite, PostgreSQL, Redis)
//   - Prometheus metrics and structured logging
//
// Usage:
//
//	# Start server with default configuration
//	sendgate run
//
//	# Start with custom configuration file
//	sendgate run --config /path/to/config.yaml
//
//	# Show version information
//	sendgate version
//
//	# Validate a configuration file
//	sendgate validate --config /path/to/config.yaml
package main

func main() {
	Execute()
}
