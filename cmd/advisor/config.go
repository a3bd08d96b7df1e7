package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/neboloop/nebo-advisor/internal/defaults"
)

// ConfigCmd creates the config command
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or reset configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadAgentConfig()
			shown := *cfg
			shown.Providers = append(shown.Providers[:0:0], cfg.Providers...)
			for i := range shown.Providers {
				shown.Providers[i].APIKey = maskKey(shown.Providers[i].APIKey)
			}
			out, err := yaml.Marshal(&shown)
			if err != nil {
				fail("%v", err)
			}
			fmt.Print(string(out))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the default config files",
		Run: func(cmd *cobra.Command, args []string) {
			dir, err := defaults.DataDir()
			if err != nil {
				fail("%v", err)
			}
			if err := defaults.Reset(dir); err != nil {
				fail("%v", err)
			}
			fmt.Printf("Restored defaults in %s\n", dir)
		},
	})

	return cmd
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
