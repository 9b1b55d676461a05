package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type userStats struct {
	UserID string `json:"user_id"`
	Dreams int    `json:"dreams"`
}

func newUsersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users present in the local database",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openStore()
			if err != nil {
				return err
			}
			ids, err := s.Users(cmd.Context())
			if err != nil {
				return err
			}
			stats := make([]userStats, 0, len(ids))
			for _, id := range ids {
				n, err := s.CountDreams(cmd.Context(), id)
				if err != nil {
					return err
				}
				stats = append(stats, userStats{UserID: id, Dreams: n})
			}
			if ctx.jsonFlag {
				return writeJSON(cmd, stats)
			}
			rows := make([][]string, 0, len(stats))
			for _, st := range stats {
				rows = append(rows, []string{st.UserID, strconv.Itoa(st.Dreams)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"User", "Dreams"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}
