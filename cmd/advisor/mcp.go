package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/neboloop/nebo-advisor/internal/agent/advisors"
	"github.com/neboloop/nebo-advisor/internal/agent/mcp"
	"github.com/neboloop/nebo-advisor/internal/console"
	"github.com/neboloop/nebo-advisor/internal/logging"
)

// MCPCmd creates the mcp command
func MCPCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve advisor personas as MCP tools",
		Long: `Serve ask_advisor and list_personas to MCP clients.

Uses stdio by default. With --http the server speaks streamable HTTP instead.`,
		Run: func(cmd *cobra.Command, args []string) {
			// stdout belongs to the protocol
			logging.SetOutput(os.Stderr)

			if err := runMCP(httpAddr); err != nil {
				fail("%v", err)
			}
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "listen address for streamable HTTP (e.g. 127.0.0.1:8931)")

	return cmd
}

// runMCP serves until the client disconnects or a signal arrives
func runMCP(httpAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := openEnv(ctx, loadAgentConfig())
	if err != nil {
		return err
	}
	defer env.Close()

	srv := mcp.NewServer(
		func(io console.IO) *advisors.Manager { return env.manager(io) },
		mcp.WithCatalog(env.catalog),
		mcp.WithAutoCreate(env.cfg.Personas.AutoCreate),
		mcp.WithVersion(Version),
	)

	if err := env.catalog.Watch(ctx); err != nil {
		logging.Warnf("persona catalog will not refresh: %v", err)
	}

	if httpAddr == "" {
		logging.Infof("MCP server on stdio (root %s)", env.root)
		if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
	return serveHTTP(ctx, httpAddr, srv.Handler())
}

func serveHTTP(ctx context.Context, addr string, h http.Handler) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("MCP server listening on http://%s", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
