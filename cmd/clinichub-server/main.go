package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinichub/clinichub/internal/config"
	"github.com/clinichub/clinichub/internal/domain/identity"
	"github.com/clinichub/clinichub/internal/platform/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinichub-server",
		Short:        "ClinicHub API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// newLogger writes JSON to stdout, or colored console output in development.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", "clinichub").Logger()
}

// withPool loads the configuration, connects and runs fn.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	addFlags := func(c *cobra.Command) {
		c.Flags().String("schema", db.SchemaName("default"), "Target schema for migrations")
		c.Flags().String("dir", "./migrations", "Path to migrations directory")
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				fmt.Printf("Running migrations on schema: %s\n", schema)
				count, err := db.NewMigrator(pool, dir).Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s).\n", count)
				return nil
			})
		},
	}
	addFlags(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("Migration status for schema: %s\n", schema)
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}
	addFlags(statusCmd)

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				count, err := db.NewMigrator(pool, dir).Down(ctx, schema, steps)
				if err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				fmt.Printf("Reverted %d migration(s) on schema %s.\n", count, schema)
				return nil
			})
		},
	}
	addFlags(downCmd)
	downCmd.Flags().Int("steps", 1, "Number of migrations to revert")

	cmd.AddCommand(upCmd, statusCmd, downCmd)
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert lookup values and optionally create the first admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			phone, _ := cmd.Flags().GetString("admin-phone")
			password, _ := cmd.Flags().GetString("admin-password")
			first, _ := cmd.Flags().GetString("admin-first-name")
			last, _ := cmd.Flags().GetString("admin-last-name")

			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				logger := newLogger(cfg)
				if tenant == "" {
					tenant = cfg.DefaultTenant
				}
				ctx, release, err := db.AcquireTenant(ctx, pool, tenant)
				if err != nil {
					return err
				}
				defer release()

				a := newApp(cfg, pool, logger)
				n, err := a.lookup.Seed(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Seeded %d lookup value(s) in tenant %s.\n", n, tenant)

				if phone == "" {
					return nil
				}
				created, err := a.identity.EnsureAdmin(ctx, &identity.User{Phone: phone, FirstName: first, LastName: last}, password)
				if err != nil {
					return fmt.Errorf("create admin: %w", err)
				}
				if created {
					fmt.Printf("Created admin %s.\n", phone)
				} else {
					fmt.Printf("An active user with phone %s already exists.\n", phone)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("tenant", "", "Tenant to seed (defaults to DEFAULT_TENANT)")
	cmd.Flags().String("admin-phone", "", "Create an admin with this phone unless one exists")
	cmd.Flags().String("admin-password", "", "Password for the created admin")
	cmd.Flags().String("admin-first-name", "System", "First name of the created admin")
	cmd.Flags().String("admin-last-name", "Admin", "Last name of the created admin")
	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and migrate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				fmt.Printf("Creating tenant schema: %s\n", db.SchemaName(name))
				if err := db.CreateTenantSchema(ctx, pool, name, dir); err != nil {
					return err
				}
				fmt.Println("Tenant created. Seed it with: clinichub-server seed --tenant", name)
				return nil
			})
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	cmd.AddCommand(createCmd)
	return cmd
}
