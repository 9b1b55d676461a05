package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newPrefsCommand(ctx *commandContext) *cobra.Command {
	prefsCmd := &cobra.Command{
		Use:   "prefs",
		Short: "Read and write per-user preferences",
	}

	prefsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := ctx.userID()
			if err != nil {
				return err
			}
			s, err := ctx.openStore()
			if err != nil {
				return err
			}
			prefs, err := s.LoadAllPreferences(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if ctx.jsonFlag {
				return writeJSON(cmd, prefs)
			}
			keys := make([]string, 0, len(prefs))
			for k := range prefs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{k, prefs[k]})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, rows, nil))
			return nil
		},
	})

	prefsCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := ctx.userID()
			if err != nil {
				return err
			}
			s, err := ctx.openStore()
			if err != nil {
				return err
			}
			if err := s.SavePreference(cmd.Context(), userID, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			return nil
		},
	})

	prefsCmd.AddCommand(&cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := ctx.userID()
			if err != nil {
				return err
			}
			s, err := ctx.openStore()
			if err != nil {
				return err
			}
			return s.DeletePreference(cmd.Context(), userID, args[0])
		},
	})

	return prefsCmd
}
