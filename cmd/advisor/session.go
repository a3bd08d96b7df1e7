package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	agentcfg "github.com/neboloop/nebo-advisor/internal/agent/config"
	"github.com/neboloop/nebo-advisor/internal/agent/session"
	"github.com/neboloop/nebo-advisor/internal/db"
	"github.com/neboloop/nebo-advisor/internal/db/migrations"
)

// SessionCmd creates the session command
func SessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage recorded advisor conversations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all sessions",
		Run: func(cmd *cobra.Command, args []string) {
			listSessions(loadAgentConfig())
		},
	})

	var limit int
	showCmd := &cobra.Command{
		Use:   "show [session-key]",
		Short: "Print a session's messages",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadAgentConfig()
			key := cfg.Session.Key
			if len(args) > 0 {
				key = args[0]
			}
			showSession(cfg, key, limit)
		},
	}
	showCmd.Flags().IntVarP(&limit, "limit", "n", 0, "only the last n messages")
	cmd.AddCommand(showCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [session-key]",
		Short: "Clear a session's history",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadAgentConfig()
			key := cfg.Session.Key
			if len(args) > 0 {
				key = args[0]
			}
			clearSession(cfg, key)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-key>",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			deleteSession(loadAgentConfig(), args[0])
		},
	})

	return cmd
}

func openSessions(cfg *agentcfg.Config) (*db.Store, *session.Manager) {
	migrations.QuietMode = !verbose
	store, err := db.NewSQLite(cfg.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	sessions, err := session.New(store.GetDB())
	if err != nil {
		store.Close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return store, sessions
}

// listSessions lists all sessions
func listSessions(cfg *agentcfg.Config) {
	store, sessions := openSessions(cfg)
	defer store.Close()

	list, err := sessions.ListSessions(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(list) == 0 {
		fmt.Println("No sessions found.")
		return
	}

	fmt.Println("Sessions:")
	for _, s := range list {
		fmt.Printf("  %s (%d messages, updated: %s)\n", s.SessionKey, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

// showSession prints the messages of a session, oldest first
func showSession(cfg *agentcfg.Config, key string, limit int) {
	store, sessions := openSessions(cfg)
	defer store.Close()

	ctx := context.Background()
	sess, err := sessions.GetOrCreate(ctx, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	msgs, err := sessions.GetMessages(ctx, sess.ID, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(msgs) == 0 {
		fmt.Printf("Session %s is empty.\n", key)
		return
	}
	for _, m := range msgs {
		color := "\033[36m"
		if m.Role == "assistant" {
			color = "\033[32m"
		}
		fmt.Printf("%s[%s]\033[0m %s\n%s\n\n", color, m.Role, m.CreatedAt.Format("2006-01-02 15:04:05"), m.Content)
	}
}

// clearSession clears a session's history
func clearSession(cfg *agentcfg.Config, key string) {
	store, sessions := openSessions(cfg)
	defer store.Close()

	ctx := context.Background()
	sess, err := sessions.GetOrCreate(ctx, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := sessions.Reset(ctx, sess.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Cleared session: %s\n", key)
}

// deleteSession removes a session entirely
func deleteSession(cfg *agentcfg.Config, key string) {
	store, sessions := openSessions(cfg)
	defer store.Close()

	ctx := context.Background()
	sess, err := sessions.GetOrCreate(ctx, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := sessions.DeleteSession(ctx, sess.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Deleted session: %s\n", key)
}
