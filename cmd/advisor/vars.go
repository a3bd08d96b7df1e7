package cli

import (
	"github.com/spf13/cobra"

	"github.com/neboloop/nebo-advisor/internal/logging"
)

// Shared CLI flags (used across multiple command files)
var (
	cfgFile     string
	sessionKey  string
	providerArg string
	rootArg     string
	verbose     bool
)

// Version is set by main
var Version = "dev"

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "advisor",
		Short: "Ask questions of expert advisor personas",
		Long: `advisor answers questions about your repository in the voice of an expert persona.

It asks a model which persona fits the question, loads that persona's markdown
file (or offers to write a new one), and answers from the persona's perspective.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetVerbose(verbose)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: platform data directory)")
	rootCmd.PersistentFlags().StringVarP(&sessionKey, "session", "s", "", "session key for conversation history (default from config)")
	rootCmd.PersistentFlags().StringVarP(&providerArg, "provider", "p", "", "provider to use (default from config)")
	rootCmd.PersistentFlags().StringVar(&rootArg, "root", "", "repository root persona paths resolve against (default: working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(AskCmd())
	rootCmd.AddCommand(PersonasCmd())
	rootCmd.AddCommand(SessionCmd())
	rootCmd.AddCommand(MCPCmd())
	rootCmd.AddCommand(AuthCmd())
	rootCmd.AddCommand(ConfigCmd())

	return rootCmd
}
