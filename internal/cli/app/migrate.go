package app

import (
	"fmt"

	"github.com/cloo-solutions/askdoc/internal/cli"
	"github.com/cloo-solutions/askdoc/internal/config"
	"github.com/cloo-solutions/askdoc/internal/database"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "migrate",
		Short:       "Apply database migrations",
		Long:        "Create or upgrade the pgvector chunk table",
		Args:        cobra.NoArgs,
		RunE:        runMigrate,
		Annotations: map[string]string{cli.EnvAnnotation: "ASKDOC_DATABASE_URL"},
	}

	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migration source URL")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, cleanup, err := Setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.VectorBackend != config.VectorBackendPgvector {
		return fmt.Errorf("migrations only apply to the %s backend", config.VectorBackendPgvector)
	}

	source, _ := cmd.Flags().GetString("migrations")
	result, err := database.Migrate(cfg.DatabaseURL, source, logger.Named("migrate"))
	if err != nil {
		return err
	}

	if result.Applied {
		fmt.Fprintf(cmd.OutOrStdout(), "Migrated to version %d\n", result.Version)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Already at version %d\n", result.Version)
	}
	return nil
}
