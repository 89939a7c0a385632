package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"nimbus-hq/sendgate/pkg/cli"
	"nimbus-hq/sendgate/pkg/config"
	"nimbus-hq/sendgate/pkg/quota"
)

var validateFlags struct {
	showPlans bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the server.

Validation checks the same rules the server enforces at startup: the storage
backend must be known, the warning ratio must be a fraction in (0, 1], plan
ceilings must be -1 (unlimited), 0 (blocked), or positive, and the prune
schedule must be a valid cron expression. Environment variable overrides
(SENDGATE_*) are applied before validation, so the result reflects the
effective configuration.

Examples:
  # Validate the default config file
  sendgate validate

  # Validate a specific file
  sendgate validate --config /etc/sendgate/config.yaml

  # Show the effective plan table
  sendgate validate --plans`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.showPlans, "plans", false, "show the effective plan table")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("validation failed: %v", err))
	}

	fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  Storage backend: %s\n", cfg.Storage.Backend)
	fmt.Printf("  Warning ratio: %.0f%%\n", cfg.Quota.WarnRatio*100)

	if validateFlags.showPlans {
		plans := quota.NewPlanTable()
		plans.Replace(planOverrides(cfg))

		fmt.Println("\nEffective plan table:")
		for _, name := range plans.Names() {
			policy := plans.LimitsFor(name)
			fmt.Printf("  %-10s email %s/day/mailbox, %s/month; linkedin %s/day, %s/month\n",
				name,
				formatCeiling(policy.EmailsPerDayPerMailbox),
				formatCeiling(policy.EmailsPerMonth),
				formatCeiling(policy.LinkedInPerDay),
				formatCeiling(policy.LinkedInPerMonth),
			)
		}
	}

	return nil
}

// formatCeiling renders a plan ceiling for display.
func formatCeiling(limit int64) string {
	if limit == quota.Unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", limit)
}
