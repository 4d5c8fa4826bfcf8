package seed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/erp-identity-core/internal/database"
	"github.com/sandeepkv93/erp-identity-core/internal/security"
	"github.com/sandeepkv93/erp-identity-core/internal/tools/common"
)

type options struct {
	envFile             string
	bootstrapAdminEmail string
	bootstrapAdminName  string
	timeout             time.Duration
	ci                  bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "seed", Short: "Identity seed tooling"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.bootstrapAdminEmail, "bootstrap-admin-email", "", "override bootstrap admin email")
	cmd.PersistentFlags().StringVar(&opts.bootstrapAdminName, "bootstrap-admin-name", "", "override bootstrap admin display name")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newApplyCommand(opts), newDryRunCommand(opts))
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Create or promote the bootstrap admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "apply", func(ctx context.Context) ([]string, error) {
				cfg, db, err := common.LoadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer common.CloseDB(db)

				admin := bootstrapAdmin(opts, cfg.BootstrapAdminEmail, cfg.BootstrapAdminName)
				if admin.Email == "" {
					return []string{"BOOTSTRAP_ADMIN_EMAIL not set, nothing to seed"}, nil
				}
				if len(cfg.BootstrapAdminPassword) < 8 {
					return nil, fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD must be at least 8 chars")
				}
				hash, err := security.NewPasswordHasher(cfg.BcryptCost).Hash(cfg.BootstrapAdminPassword)
				if err != nil {
					return nil, err
				}
				admin.PasswordHash = hash

				if err := database.Migrate(db.WithContext(ctx)); err != nil {
					return nil, err
				}
				report, err := database.SeedBootstrapAdmin(db.WithContext(ctx), admin)
				if err != nil {
					return nil, err
				}
				switch {
				case report.CreatedAdmin:
					return []string{"created bootstrap admin: " + admin.Email}, nil
				case report.PromotedAdmin:
					return []string{"promoted existing account to admin: " + admin.Email}, nil
				default:
					return []string{"bootstrap admin already present: " + admin.Email}, nil
				}
			})
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show what seeding would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "dry-run", func(ctx context.Context) ([]string, error) {
				if err := common.LoadEnvFile(opts.envFile); err != nil {
					return nil, err
				}
				admin := bootstrapAdmin(opts, os.Getenv("BOOTSTRAP_ADMIN_EMAIL"), os.Getenv("BOOTSTRAP_ADMIN_NAME"))
				if admin.Email == "" {
					return []string{"BOOTSTRAP_ADMIN_EMAIL not set, apply would do nothing"}, nil
				}
				return []string{
					fmt.Sprintf("would ensure admin credential and employee profile for: %s", admin.Email),
					"existing passwords are never overwritten",
					"an existing non-admin or inactive account would be promoted and reactivated",
				}, nil
			})
		},
	}
}

func bootstrapAdmin(opts *options, email, name string) database.BootstrapAdmin {
	if opts.bootstrapAdminEmail != "" {
		email = opts.bootstrapAdminEmail
	}
	if opts.bootstrapAdminName != "" {
		name = opts.bootstrapAdminName
	}
	return database.BootstrapAdmin{
		Email: strings.TrimSpace(strings.ToLower(email)),
		Name:  strings.TrimSpace(name),
	}
}

func execute(opts *options, command string, fn common.Action) error {
	if _, err := common.Run("seed", command, opts.ci, opts.timeout, fn); err != nil {
		os.Exit(common.ExitCode)
	}
	return nil
}
