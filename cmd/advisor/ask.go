package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neboloop/nebo-advisor/internal/agent/advisors"
	"github.com/neboloop/nebo-advisor/internal/console"
	"github.com/neboloop/nebo-advisor/internal/logging"
	"github.com/neboloop/nebo-advisor/internal/markdown"
)

// AskCmd creates the ask command
func AskCmd() *cobra.Command {
	var (
		assumeYes   bool
		asHTML      bool
		personaOnly bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question through the best-fitting advisor persona",
		Example: `  advisor ask "Is this SQL query injection-safe?"
  advisor ask --persona-only "How should we version this API?"`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if !verbose {
				logging.Disable()
			}
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				fail("question is empty")
			}
			opts := askOptions{assumeYes: assumeYes, asHTML: asHTML, personaOnly: personaOnly}
			if err := runAsk(question, opts); err != nil {
				reportRunError(err)
			}
		},
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "create missing persona files without asking")
	cmd.Flags().BoolVar(&asHTML, "html", false, "print the advice as HTML")
	cmd.Flags().BoolVar(&personaOnly, "persona-only", false, "print the chosen persona instead of asking it")

	return cmd
}

type askOptions struct {
	assumeYes   bool
	asHTML      bool
	personaOnly bool
}

// runAsk answers question. Errors are returned after the environment is closed.
func runAsk(question string, opts askOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := openEnv(ctx, loadAgentConfig())
	if err != nil {
		return err
	}
	defer env.Close()

	m := env.manager(console.NewTerminal(opts.assumeYes))
	if opts.personaOnly {
		return showPersona(ctx, m, question)
	}

	advice, err := m.Advise(ctx, question)
	if err != nil && !(advice != nil && errors.Is(err, advisors.ErrNotRecorded)) {
		return err
	}
	if advice == nil {
		fmt.Println("No advice generated.")
		return nil
	}

	if opts.asHTML {
		fmt.Println(markdown.Render(advice.Text))
	} else {
		fmt.Println()
		fmt.Println(advice.Text)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[33mWarning: %v\033[0m\n", err)
	}
	return nil
}

func showPersona(ctx context.Context, m *advisors.Manager, question string) error {
	p, err := m.GetPersona(ctx, question)
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Println("No persona selected.")
		return nil
	}
	path := p.Path
	if rel, err := filepath.Rel(m.Root(), p.Path); err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}
	fmt.Printf("\033[1m%s advisor\033[0m  %s\n\n", p.Type, path)
	fmt.Println(p.Content)
	return nil
}

// reportRunError prints an advisor failure and exits
func reportRunError(err error) {
	var werr *advisors.PersonaWriteError
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println("\n\033[33mInterrupted\033[0m")
		os.Exit(130)
	case errors.As(err, &werr):
		fail("could not write persona file %s: %v", werr.Path, werr.Err)
	}
	fail("%v", err)
}
