package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jig0901/Bitcoin-Mining-Pool-Switcher/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pool switch / reboot results",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open("")
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no recorded operations")
				return nil
			}
			for _, entry := range entries {
				outcome := "ok"
				if entry.Failure != "" {
					outcome = fmt.Sprintf("%s (%s)", entry.Failure, entry.Detail)
				}
				fmt.Printf("%s  %-12s %-12s %s\n",
					entry.CreatedAt.Format(time.DateTime),
					entry.Miner,
					entry.Operation,
					outcome)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to display")
	return cmd
}
