package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/neboloop/nebo-advisor/internal/agent/advisors"
	"github.com/neboloop/nebo-advisor/internal/agent/ai"
	"github.com/neboloop/nebo-advisor/internal/agent/chat"
	agentcfg "github.com/neboloop/nebo-advisor/internal/agent/config"
	"github.com/neboloop/nebo-advisor/internal/agent/repomap"
	"github.com/neboloop/nebo-advisor/internal/agent/session"
	"github.com/neboloop/nebo-advisor/internal/console"
	"github.com/neboloop/nebo-advisor/internal/db"
	"github.com/neboloop/nebo-advisor/internal/db/migrations"
	"github.com/neboloop/nebo-advisor/internal/defaults"
)

// fail prints an error and exits
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31mError: "+format+"\033[0m\n", args...)
	os.Exit(1)
}

// loadAgentConfig loads the config file and applies command line overrides
func loadAgentConfig() *agentcfg.Config {
	var (
		cfg *agentcfg.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = agentcfg.LoadFrom(cfgFile)
	} else {
		if _, derr := defaults.EnsureDataDir(); derr != nil {
			fail("failed to initialize data directory: %v", derr)
		}
		cfg, err = agentcfg.Load()
	}
	if err != nil {
		fail("failed to load config: %v", err)
	}

	if rootArg != "" {
		cfg.Root = rootArg
	}
	if sessionKey != "" {
		cfg.Session.Key = sessionKey
	}
	return cfg
}

// appEnv holds everything an advisor run needs
type appEnv struct {
	cfg      *agentcfg.Config
	root     string
	store    *db.Store
	recorder session.Recorder
	provider ai.Provider
	catalog  *advisors.Catalog
	factory  *chat.ProviderFactory
}

// openEnv wires config, the conversation store, the provider and the catalog
func openEnv(ctx context.Context, cfg *agentcfg.Config) (*appEnv, error) {
	root, err := cfg.RootDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	pcfg, err := cfg.ActiveProvider(providerArg)
	if err != nil {
		return nil, err
	}
	provider, err := createProvider(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	migrations.QuietMode = !verbose
	store, err := db.NewSQLite(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sessions, err := session.New(store.GetDB())
	if err != nil {
		store.Close()
		return nil, err
	}
	recorder, err := session.Bind(ctx, sessions, cfg.Session.Key)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open session %q: %w", cfg.Session.Key, err)
	}

	dir, err := cfg.PersonasDir()
	if err != nil {
		store.Close()
		return nil, err
	}
	catalog := advisors.NewCatalog(root, dir)
	if err := catalog.LoadAll(); err != nil {
		// the catalog only enriches the classification prompt
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	return &appEnv{
		cfg:      cfg,
		root:     root,
		store:    store,
		recorder: recorder,
		provider: provider,
		catalog:  catalog,
		factory: &chat.ProviderFactory{
			Provider:  provider,
			Model:     pcfg.Model,
			WeakModel: pcfg.WeakModel,
			Root:      root,
			RepoMap: repomap.Options{
				MaxFiles: cfg.RepoMap.MaxFiles,
				Ignore:   cfg.RepoMap.Ignore,
			},
			Parent:       recorder,
			HistoryLimit: cfg.Session.HistoryLimit,
		},
	}, nil
}

// manager builds an advisor manager that talks through io
func (r *appEnv) manager(io console.IO) *advisors.Manager {
	return advisors.NewManager(r.factory, io, advisors.Options{
		Root:     r.root,
		Sandbox:  r.cfg.Personas.Sandbox,
		Catalog:  r.catalog,
		Recorder: r.recorder,
	})
}

func (r *appEnv) Close() {
	r.catalog.Stop()
	if c, ok := r.provider.(interface{ Close() error }); ok {
		c.Close()
	}
	r.store.Close()
}
