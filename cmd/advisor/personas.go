package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neboloop/nebo-advisor/internal/agent/advisors"
	"github.com/neboloop/nebo-advisor/internal/logging"
)

// PersonasCmd creates the personas command
func PersonasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List persona files in the repository",
		Run: func(cmd *cobra.Command, args []string) {
			if !verbose {
				logging.Disable()
			}
			cfg := loadAgentConfig()
			root, err := cfg.RootDir()
			if err != nil {
				fail("%v", err)
			}

			dir, err := cfg.PersonasDir()
			if err != nil {
				fail("%v", err)
			}

			catalog := advisors.NewCatalog(root, dir)
			if err := catalog.LoadAll(); err != nil {
				fail("%v", err)
			}

			entries := catalog.List()
			if len(entries) == 0 {
				fmt.Printf("No persona files in %s.\n", catalog.Dir())
				return
			}

			fmt.Printf("Personas in %s:\n", catalog.Dir())
			for _, e := range entries {
				fmt.Printf("  %s\n", e.Label())
			}
		},
	}
}
