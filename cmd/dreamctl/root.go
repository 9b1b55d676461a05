package main

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dreamdecode/internal/util"
	"dreamdecode/pkg/localstore"
)

const defaultDBPath = "data/journal.db"

type commandContext struct {
	dbFlag   string
	userFlag string
	jsonFlag bool

	store *localstore.Store
}

// openStore opens the journal database on first use.
func (c *commandContext) openStore() (*localstore.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	path := strings.TrimSpace(c.dbFlag)
	if path == "" {
		path = os.Getenv("JOURNAL_LOCAL_DB_PATH")
	}
	if path == "" {
		path = defaultDBPath
	}
	s, err := localstore.Open(path)
	if err != nil {
		return nil, err
	}
	c.store = s
	return s, nil
}

func (c *commandContext) close() {
	if c.store != nil {
		_ = c.store.Close()
		c.store = nil
	}
}

func (c *commandContext) userID() (string, error) {
	id := strings.TrimSpace(c.userFlag)
	if id == "" {
		id = strings.TrimSpace(os.Getenv("DREAMCTL_USER"))
	}
	if id == "" {
		return "", errors.New("user id required (--user or DREAMCTL_USER)")
	}
	return id, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "dreamctl",
		Short:         "Inspect and manage a dream journal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.LoadDotenv()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.dbFlag, "db", "", "Path to the local journal database")
	rootCmd.PersistentFlags().StringVarP(&ctx.userFlag, "user", "u", "", "User id whose journal to read")
	rootCmd.PersistentFlags().BoolVar(&ctx.jsonFlag, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(newDreamsCommand(ctx))
	rootCmd.AddCommand(newInsightsCommand(ctx))
	rootCmd.AddCommand(newPrefsCommand(ctx))
	rootCmd.AddCommand(newUsersCommand(ctx))
	rootCmd.AddCommand(newTokenCommand())
	rootCmd.AddCommand(newRecordCommand())

	return rootCmd
}
