package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// migrator is implemented by the SQL stores.
type migrator interface {
	Migrate(ctx context.Context) error
}

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := e.open(ctx, e.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			m, ok := store.(migrator)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s store has no schema to migrate\n", store.Backend())
				return nil
			}
			if err := m.Migrate(ctx); err != nil {
				return fmt.Errorf("migrating %s store: %w", store.Backend(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", store.Backend())
			return nil
		},
	}
}
