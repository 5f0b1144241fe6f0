package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/robun/internal/config"
	"github.com/nextlevelbuilder/robun/internal/session"
)

func sessionsCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect persisted conversation sessions",
	}
	root.AddCommand(sessionsListCmd())
	root.AddCommand(sessionsShowCmd())
	return root
}

func openSessionStore() (*session.Store, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	return session.NewStore(cfg.Agents.Workspace + "/sessions")
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every persisted session with message count and last update",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSessionStore()
			if err != nil {
				return err
			}
			infos, err := store.ListSessions()
			if err != nil {
				return err
			}
			for _, info := range infos {
				fmt.Printf("%-40s %6d messages  updated %s\n", info.Key, info.MessageCount, info.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func sessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-key>",
		Short: "Print a session's transcript as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSessionStore()
			if err != nil {
				return err
			}
			sess := store.GetOrCreate(args[0])
			data, err := json.MarshalIndent(sess.Messages, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}
