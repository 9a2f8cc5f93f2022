package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}
	cmd.PersistentFlags().StringVar(&dir, "path", "migrations", "path to migration files")

	open := func() (*migrate.Migrate, error) {
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is not set")
		}
		m, err := migrate.New("file://"+dir, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init migrations: %w", err)
		}
		return m, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("up: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Migrated up successfully")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations, all of them unless steps is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 0
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid steps %q", args[0])
				}
				steps = n
			}
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()
			if steps > 0 {
				err = m.Steps(-steps)
			} else {
				err = m.Down()
			}
			if err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("down: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Migrated down successfully")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()
			version, dirty, err := m.Version()
			if err != nil {
				return fmt.Errorf("version: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Version: %d, Dirty: %t\n", version, dirty)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version: %w", err)
			}
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()
			if err := m.Force(v); err != nil {
				return fmt.Errorf("force: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Forced version to %d\n", v)
			return nil
		},
	})

	return cmd
}
