package cli

import (
	"fmt"
	"os"

	"github.com/fjod/quickmarket/internal/config"
	"github.com/fjod/quickmarket/internal/storage"
	"github.com/spf13/cobra"
)

type MigrateOptions struct {
	Driver string
}

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{}

	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply session store migrations (sqlite or postgres)",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if opts.Driver != "" {
				cfg.StorageDriver = opts.Driver
			}
			if err := runMigrate(cfg); err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), rootOpts.Format,
				map[string]string{"driver": cfg.StorageDriver, "status": "migrated"},
				fmt.Sprintf("%s migrations applied\n", cfg.StorageDriver))
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", "", "sqlite or postgres (overrides STORAGE_DRIVER)")
	return cmd
}

func runMigrate(cfg *config.Config) error {
	var (
		store *storage.SQLStore
		err   error
	)
	switch cfg.StorageDriver {
	case storage.DriverSQLite:
		store, err = storage.NewSQLiteStore(cfg.SQLitePath)
	case storage.DriverPostgres:
		store, err = storage.NewPostgresStore(&storage.Credentials{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			DBName:   cfg.DB.Name,
		})
	default:
		return fmt.Errorf("driver %q has no migrations", cfg.StorageDriver)
	}
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "failed to close store: %v\n", cerr)
		}
	}()
	return store.RunMigrations()
}
