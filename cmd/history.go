package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/seat-scheduler/internal/db"
	"github.com/example/seat-scheduler/internal/migrate"
	"github.com/example/seat-scheduler/internal/runs"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs recorded in the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := opts.viper()
			if err != nil {
				return err
			}
			if err := v.BindPFlag("database_url", cmd.Flags().Lookup("database-url")); err != nil {
				return err
			}
			databaseURL := v.GetString("database_url")
			if databaseURL == "" {
				return errors.New("history needs database_url (config, SEATSCHED_DATABASE_URL or --database-url)")
			}

			ctx := cmd.Context()
			d, err := db.Open(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := migrate.Up(ctx, d); err != nil {
				return err
			}

			list, err := runs.NewRepo(d).Recent(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range list {
				finished := "-"
				if r.FinishedAt != nil {
					finished = r.FinishedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "id=%s status=%s mode=%s day=%s targets=%q attempts=%d started=%s finished=%s\n",
					r.ID, r.Status, r.Mode, r.Day, r.Targets, r.Attempts, r.StartedAt.Format(time.RFC3339), finished)
				if r.LastError != nil {
					fmt.Fprintf(out, "  error=%q\n", *r.LastError)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().String("database-url", "", "postgres database holding the ledger")
	return cmd
}
