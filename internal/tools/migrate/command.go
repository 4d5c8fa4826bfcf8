package migrate

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/erp-identity-core/internal/di"
	"github.com/sandeepkv93/erp-identity-core/internal/health"
	"github.com/sandeepkv93/erp-identity-core/internal/tools/common"
)

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Identity schema tooling",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newUpCommand(opts),
		newStatusCommand(opts),
		newPlanCommand(opts),
		newCleanupCommand(opts),
	)
	return cmd
}

func newUpCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply schema migrations and ensure the bootstrap admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "up", func(ctx context.Context) ([]string, error) {
				if err := common.LoadEnvFile(opts.envFile); err != nil {
					return nil, err
				}
				runner, err := di.InitializeMigrationRunner()
				if err != nil {
					return nil, err
				}
				report, err := runner.Run()
				if err != nil {
					return nil, err
				}
				return []string{
					"schema migration applied",
					fmt.Sprintf("bootstrap admin: created=%t promoted=%t noop=%t", report.CreatedAdmin, report.PromotedAdmin, report.Noop),
				}, nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the database is reachable and migrated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "status", func(ctx context.Context) ([]string, error) {
				cfg, db, err := common.LoadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer common.CloseDB(db)

				runner := health.NewProbeRunner(opts.timeout, 0, health.NewDBChecker(db), health.NewSchemaChecker(db))
				ready, results := runner.Ready(ctx)
				details := []string{"service: " + cfg.OTELServiceName}
				for _, res := range results {
					line := fmt.Sprintf("%s: healthy=%t (%dms)", res.Name, res.Healthy, res.LatencyMS)
					if res.Error != "" {
						line += " " + res.Error
					}
					details = append(details, line)
				}
				if !ready {
					return details, fmt.Errorf("database is not ready")
				}
				return details, nil
			})
		},
	}
}

func newPlanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show migration plan (dry-run)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "plan", func(ctx context.Context) ([]string, error) {
				_, db, err := common.LoadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer common.CloseDB(db)
				sqlDB, err := db.DB()
				if err != nil {
					return nil, err
				}
				if err := sqlDB.PingContext(ctx); err != nil {
					return nil, fmt.Errorf("db ping: %w", err)
				}
				return []string{
					"would apply AutoMigrate for identity models",
					"credentials, employee_profiles, otp_challenges, sessions",
					"no mutation executed in plan mode",
				}, nil
			})
		},
	}
}

func newCleanupCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Expire stale sessions and delete spent OTP challenges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "cleanup", func(ctx context.Context) ([]string, error) {
				if err := common.LoadEnvFile(opts.envFile); err != nil {
					return nil, err
				}
				runner, err := di.InitializeMigrationRunner()
				if err != nil {
					return nil, err
				}
				report, err := runner.Cleanup(time.Now())
				if err != nil {
					return nil, err
				}
				return []string{
					fmt.Sprintf("expired sessions: %d", report.ExpiredSessions),
					fmt.Sprintf("removed otp challenges: %d", report.ExpiredChallenges),
				}, nil
			})
		},
	}
}

func execute(opts *options, command string, fn common.Action) error {
	if _, err := common.Run("migrate", command, opts.ci, opts.timeout, fn); err != nil {
		os.Exit(common.ExitCode)
	}
	return nil
}
