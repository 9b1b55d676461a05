package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dreamdecode/pkg/domain"
)

const stampLayout = "2006-01-02 15:04"

func newDreamsCommand(ctx *commandContext) *cobra.Command {
	dreamsCmd := &cobra.Command{
		Use:   "dreams",
		Short: "List, show and delete recorded dreams",
	}
	dreamsCmd.AddCommand(newDreamsListCommand(ctx))
	dreamsCmd.AddCommand(newDreamsShowCommand(ctx))
	dreamsCmd.AddCommand(newDreamsDeleteCommand(ctx))
	return dreamsCmd
}

func (c *commandContext) loadDreams(cmd *cobra.Command) ([]domain.Dream, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}
	s, err := c.openStore()
	if err != nil {
		return nil, err
	}
	dreams, skipped, err := s.LoadDreams(cmd.Context(), userID)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d unreadable dreams skipped\n", skipped)
	}
	return dreams, nil
}

func newDreamsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dreams, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			dreams, err := ctx.loadDreams(cmd)
			if err != nil {
				return err
			}
			if limit > 0 && len(dreams) > limit {
				dreams = dreams[:limit]
			}
			if ctx.jsonFlag {
				return writeJSON(cmd, dreams)
			}
			if len(dreams) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No dreams recorded.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), dreamTable(dreams))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of dreams to list (0 for all)")
	return cmd
}

func dreamTable(dreams []domain.Dream) string {
	rows := make([][]string, 0, len(dreams))
	for _, d := range dreams {
		rows = append(rows, []string{
			d.ID,
			d.CreatedAt.Local().Format(stampLayout),
			d.Title,
			moodList(d.Moods),
			symbolList(d.Symbols),
			strconv.Itoa(d.AudioDurationSeconds) + "s",
		})
	}
	return renderTable(
		[]string{"ID", "Recorded", "Title", "Moods", "Symbols", "Length"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func moodList(moods []domain.MoodTag) string {
	parts := make([]string, 0, len(moods))
	for _, m := range moods {
		parts = append(parts, strings.TrimSpace(m.Emoji+" "+string(m.Mood)))
	}
	return strings.Join(parts, ", ")
}

func symbolList(symbols []domain.DreamSymbol) string {
	parts := make([]string, 0, len(symbols))
	for _, s := range symbols {
		parts = append(parts, s.Name)
	}
	return strings.Join(parts, ", ")
}

func newDreamsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one dream as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dreams, err := ctx.loadDreams(cmd)
			if err != nil {
				return err
			}
			for _, d := range dreams {
				if d.ID == args[0] {
					return writeJSON(cmd, d)
				}
			}
			return fmt.Errorf("dream %s not found", args[0])
		},
	}
}

func newDreamsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a dream from the local database",
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
			if err := s.DeleteDream(cmd.Context(), userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

var errNoDreams = errors.New("no dreams recorded")
