package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/neboloop/nebo-advisor/internal/keyring"
)

var knownProviders = []string{"anthropic", "openai", "gemini"}

// AuthCmd creates the auth command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Store provider API keys in the OS keychain",
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "set <provider>",
		Short:     "Save an API key (read from stdin)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: knownProviders,
		Run: func(cmd *cobra.Command, args []string) {
			provider := strings.ToLower(args[0])
			key, err := readSecret(fmt.Sprintf("%s API key: ", provider))
			if err != nil {
				fail("failed to read key: %v", err)
			}
			if key == "" {
				fail("no key given")
			}
			if err := keyring.SetAPIKey(provider, key); err != nil {
				fail("%v", err)
			}
			fmt.Printf("Saved %s key to the keychain.\n", provider)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove a stored API key",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			provider := strings.ToLower(args[0])
			err := keyring.DeleteAPIKey(provider)
			if errors.Is(err, keyring.ErrNotFound) {
				fmt.Printf("No %s key stored.\n", provider)
				return
			}
			if err != nil {
				fail("%v", err)
			}
			fmt.Printf("Removed %s key.\n", provider)
		},
	})

	return cmd
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
