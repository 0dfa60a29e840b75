package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-newscheck-backend/internal/config"
	"github.com/tbourn/go-newscheck-backend/internal/repo"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, db *gorm.DB) error {
				n, err := repo.Migrate(ctx, db)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
				return err
			})
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, db *gorm.DB) error {
				v, err := repo.MigrateDown(ctx, db)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "rolled back version %d\n", v)
				return err
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, db *gorm.DB) error {
				rows, err := repo.MigrationsStatus(ctx, db)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tSTATE\tFILE")
				for _, r := range rows {
					state := "pending"
					if r.Applied {
						state = "applied"
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Version, state, r.Path)
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

// withDB opens the store from the environment, runs fn and closes it.
func withDB(ctx context.Context, fn func(context.Context, *gorm.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dbCfg, err := config.LoadDB()
	if err != nil {
		return err
	}
	db, err := repo.Open(ctx, repo.Options{
		URL:             dbCfg.URL,
		ConnectAttempts: dbCfg.ConnectAttempts,
		ConnectDelay:    dbCfg.ConnectDelay,
		MaxOpenConns:    dbCfg.MaxOpenConns,
		MaxIdleConns:    dbCfg.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close(db) }()
	return fn(ctx, db)
}
