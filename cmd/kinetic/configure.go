package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ayusman/kinetic/internal/ingest"
	"github.com/ayusman/kinetic/internal/server"
	"github.com/ayusman/kinetic/internal/store"
)

func newConfigureCmd() *cobra.Command {
	var (
		file   string
		dbPath string
		prune  bool
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Load a YAML intent set into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(file, dbPath, prune)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "intent set YAML file (required)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default ~/.kinetic/kinetic.db)")
	cmd.Flags().BoolVar(&prune, "prune", false, "delete stored intents missing from the file")
	cmd.MarkFlagRequired("file")

	return cmd
}

func runConfigure(file, dbPath string, prune bool) error {
	cfg, err := ingest.LoadConfigFile(file)
	if err != nil {
		return err
	}

	dbPath, err = resolveDBPath(dbPath)
	if err != nil {
		return err
	}
	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	created, updated := 0, 0
	inFile := map[string]bool{}
	for _, spec := range cfg.Intents {
		inFile[spec.ID] = true

		record, err := spec.Record()
		if err != nil {
			return err
		}

		err = st.Intents().Update(record)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, store.ErrNotFound):
			if err := st.Intents().Create(record); err != nil {
				return fmt.Errorf("failed to create intent %q: %w", spec.ID, err)
			}
			created++
		default:
			return fmt.Errorf("failed to update intent %q: %w", spec.ID, err)
		}
	}

	pruned := 0
	if prune {
		existing, err := st.Intents().List()
		if err != nil {
			return err
		}
		for _, in := range existing {
			if inFile[in.ID] {
				continue
			}
			if err := st.Intents().Delete(in.ID); err != nil {
				return fmt.Errorf("failed to delete intent %q: %w", in.ID, err)
			}
			pruned++
		}
	}

	if cfg.Resolution != nil {
		data, err := ingest.EncodeResolution(cfg.Resolution.Config())
		if err != nil {
			return err
		}
		if err := st.Settings().Set(server.ResolutionKey, string(data)); err != nil {
			return fmt.Errorf("failed to store resolution config: %w", err)
		}
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %d created, %d updated, %d pruned\n", green("Configured:"), created, updated, pruned)
	if cfg.Resolution != nil {
		fmt.Println("Resolution config stored; a running daemon picks it up on its next configuration change.")
	}
	return nil
}
