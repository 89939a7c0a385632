// Package config provides configuration management for Sendgate.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention SENDGATE_SECTION_FIELD.
// For example:
//
//   - SENDGATE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - SENDGATE_STORAGE_POSTGRES_PASSWORD overrides storage.postgres.password
//   - SENDGATE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// The Watcher reloads the configuration when the file changes on disk:
//
//	watcher, err := config.NewWatcher("config.yaml", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go watcher.Watch(ctx, func(cfg *config.Config) {
//	    plans.Replace(plansFromConfig(cfg))
//	})
//
// Only the plan table is applied on reload; server and storage changes
// require a restart.
//
// # Validation
//
// All configuration is validated automatically during loading. Validation
// errors include field paths and helpful messages:
//
//	configuration validation failed with 2 errors:
//	  - storage.postgres.host: host is required for postgres backend
//	  - quota.warn_ratio: warn ratio must be in (0, 1]
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	server:
//	  listen_address: "127.0.0.1:8080"
//
//	storage:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "data/counters.db"
//
//	quota:
//	  warn_ratio: 0.8
//	  plans:
//	    agency:
//	      emails_per_day_per_mailbox: 2000
//	      emails_per_month: -1
//	      linkedin_per_day: 500
//	      linkedin_per_month: -1
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
