package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateQuota(&cfg.Quota)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates HTTP server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}

	return errs
}

// validateStorage validates counter store configuration.
func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
		// nothing backend-specific to check
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.path",
				Message: "database path is required for sqlite backend",
			})
		}
	case "postgres":
		if cfg.Postgres.Host == "" {
			errs = append(errs, FieldError{
				Field:   "storage.postgres.host",
				Message: "host is required for postgres backend",
			})
		}
		if cfg.Postgres.Database == "" {
			errs = append(errs, FieldError{
				Field:   "storage.postgres.database",
				Message: "database name is required for postgres backend",
			})
		}
		if cfg.Postgres.Port < 1 || cfg.Postgres.Port > 65535 {
			errs = append(errs, FieldError{
				Field:   "storage.postgres.port",
				Message: "port must be between 1 and 65535",
			})
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			errs = append(errs, FieldError{
				Field:   "storage.redis.addr",
				Message: "address is required for redis backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("unknown backend %q (valid: memory, sqlite, postgres, redis)", cfg.Backend),
		})
	}

	return errs
}

// validateQuota validates quota engine configuration.
func validateQuota(cfg *QuotaConfig) []FieldError {
	var errs []FieldError

	if cfg.WarnRatio <= 0 || cfg.WarnRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "quota.warn_ratio",
			Message: "warn ratio must be in (0, 1]",
		})
	}
	if cfg.IncrementAttempts < 1 {
		errs = append(errs, FieldError{
			Field:   "quota.increment_attempts",
			Message: "increment attempts must be at least 1",
		})
	}
	if cfg.IncrementBackoff < 0 {
		errs = append(errs, FieldError{
			Field:   "quota.increment_backoff",
			Message: "increment backoff must be non-negative",
		})
	}
	if cfg.StoreTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "quota.store_timeout",
			Message: "store timeout must be positive",
		})
	}

	for name, plan := range cfg.Plans {
		if name == "" {
			errs = append(errs, FieldError{
				Field:   "quota.plans",
				Message: "plan name cannot be empty",
			})
			continue
		}
		errs = append(errs, validatePlanCeiling(name, "emails_per_day_per_mailbox", plan.EmailsPerDayPerMailbox)...)
		errs = append(errs, validatePlanCeiling(name, "emails_per_month", plan.EmailsPerMonth)...)
		errs = append(errs, validatePlanCeiling(name, "linkedin_per_day", plan.LinkedInPerDay)...)
		errs = append(errs, validatePlanCeiling(name, "linkedin_per_month", plan.LinkedInPerMonth)...)
	}

	return errs
}

// validatePlanCeiling checks that a plan ceiling is -1 (unlimited), 0
// (blocked), or a positive limit.
func validatePlanCeiling(plan, field string, value int64) []FieldError {
	if value < -1 {
		return []FieldError{{
			Field:   fmt.Sprintf("quota.plans.%s.%s", plan, field),
			Message: "ceiling must be -1 (unlimited), 0 (blocked), or positive",
		}}
	}
	return nil
}

// validateRetention validates retention configuration.
func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.KeepDays < 0 {
		errs = append(errs, FieldError{
			Field:   "retention.keep_days",
			Message: "keep days must be non-negative",
		})
	}
	if cfg.KeepMonths < 0 {
		errs = append(errs, FieldError{
			Field:   "retention.keep_months",
			Message: "keep months must be non-negative",
		})
	}
	if cfg.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q (valid: debug, info, warn, error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q (valid: json, text)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	return errs
}
