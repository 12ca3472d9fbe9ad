package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/kinetic/internal/engine"
	"github.com/ayusman/kinetic/internal/ingest"
	"github.com/ayusman/kinetic/internal/intent"
)

func newReplayCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "replay <session.jsonl>",
		Short: "Run a recorded frame stream through the engine and print events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args[0], configFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "intent set YAML file (required)")
	cmd.MarkFlagRequired("config")

	return cmd
}

func runReplay(replayPath, configFile string) error {
	cfg, err := ingest.LoadConfigFile(configFile)
	if err != nil {
		return err
	}

	eng := engine.New(engine.DefaultConfig())
	if err := eng.Configure(cfg.Definitions(), cfg.ResolverConfig()); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	emitted := 0
	eng.Subscribe("", "", func(ev intent.Event) error {
		emitted++
		return enc.Encode(ev.Wire())
	})

	src, err := ingest.OpenReplay(replayPath)
	if err != nil {
		return err
	}
	defer src.Close()

	frames := 0
	for {
		f, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		eng.OnFrame(f)
		frames++
	}

	fmt.Fprintf(os.Stderr, "Replayed %d frames, emitted %d events\n", frames, emitted)
	return nil
}
