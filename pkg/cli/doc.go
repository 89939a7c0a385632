/*
Package cli provides command-line utilities for the sendgate command.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown

Errors:

ConfigError and CommandError carry enough structure for the command layer
to print actionable messages and pick exit codes.
*/
package cli
