package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ayusman/kinetic/internal/engine"
	"github.com/ayusman/kinetic/internal/ingest"
	"github.com/ayusman/kinetic/internal/plugin"
	"github.com/ayusman/kinetic/internal/recorder"
	"github.com/ayusman/kinetic/internal/resolver"
	"github.com/ayusman/kinetic/internal/server"
	"github.com/ayusman/kinetic/internal/store"
)

const pluginTimeoutMs = 5000

func newServeCmd() *cobra.Command {
	var (
		addr      string
		dbPath    string
		pluginDir string
		staticDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the intent engine daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, dbPath, pluginDir, staticDir)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address for the control surface")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default ~/.kinetic/kinetic.db)")
	cmd.Flags().StringVar(&pluginDir, "plugins", "", "plugin directory (default ~/.kinetic/plugins)")
	cmd.Flags().StringVar(&staticDir, "static", "", "optional static file directory to serve at /")

	return cmd
}

func runServe(addr, dbPath, pluginDir, staticDir string) error {
	dbPath, err := resolveDBPath(dbPath)
	if err != nil {
		return err
	}
	if pluginDir == "" {
		dataDir, err := defaultDataDir()
		if err != nil {
			return err
		}
		pluginDir = filepath.Join(dataDir, "plugins")
	}

	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	eng := engine.New(engine.Config{
		IDGenerator: func() string { return uuid.New().String() },
	})

	// The recorder and plugin dispatcher are ordinary bus subscribers;
	// the engine core stays unaware of both.
	rec := recorder.New(st.Events())
	eng.Subscribe("", "", rec.HandleEvent)

	manager := plugin.NewManager(pluginDir)
	if err := manager.Discover(); err != nil {
		log.Printf("Warning: failed to discover plugins: %v", err)
	}
	dispatcher := plugin.NewDispatcher(manager, plugin.NewExecutor(pluginTimeoutMs), st.Bindings())
	eng.Subscribe("", "", dispatcher.HandleEvent)

	if err := configureFromStore(eng, st); err != nil {
		return fmt.Errorf("failed to load intent configuration: %w", err)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		Engine:    eng,
	})

	fmt.Printf("Kinetic intent engine\n")
	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("Plugins:  %s (%d discovered)\n", pluginDir, len(manager.List()))
	fmt.Printf("Listening on %s\n", addr)
	fmt.Println("Press Ctrl+C to stop")

	go func() {
		if err := srv.ListenAndServe(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	eng.Reset()
	return nil
}

// configureFromStore loads the enabled intent set and resolution config
// from the store into the engine.
func configureFromStore(eng *engine.Engine, st *store.Store) error {
	records, err := st.Intents().ListEnabled()
	if err != nil {
		return err
	}
	defs, err := ingest.FromRecords(records)
	if err != nil {
		return err
	}

	var resolveCfg *resolver.Config
	value, err := st.Settings().Get(server.ResolutionKey)
	switch {
	case err == nil:
		cfg, err := ingest.DecodeResolution([]byte(value))
		if err != nil {
			return err
		}
		resolveCfg = &cfg
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	return eng.Configure(defs, resolveCfg)
}
