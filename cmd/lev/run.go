package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kadirpekel/lev/pkg/manifest"
	"github.com/kadirpekel/lev/pkg/runner"
)

// RunCmd executes one or more evaluation suites.
type RunCmd struct {
	Manifest string `arg:"" optional:"" help:"Manifest file (default: every *.evl file in the working directory)." type:"path"`
	Limit    int    `help:"Run only the first N evals." default:"0"`
	Profiles string `help:"Provider profiles file (default: search standard locations)." type:"path"`
	Personas string `help:"Personas file resolving role persona keys." default:"personas.json" type:"path"`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	paths := []string{c.Manifest}
	if c.Manifest == "" {
		discovered, err := manifest.Discover(".")
		if err != nil {
			return err
		}
		if len(discovered) == 0 {
			return fmt.Errorf("no manifest given and no *.evl files found in the working directory")
		}
		paths = discovered
	}

	for _, path := range paths {
		if err := c.runSuite(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func (c *RunCmd) runSuite(ctx context.Context, path string) error {
	m, err := manifest.Load(path)
	if err != nil {
		return err
	}

	profiles, err := manifest.LoadProfiles(c.Profiles)
	if err != nil {
		return err
	}

	providers, err := manifest.BuildRegistry(m.LLMConfig, profiles)
	if err != nil {
		return err
	}

	opts := []runner.Option{runner.WithLimit(c.Limit)}

	if persona := manifest.PersonaFor(m.LLMConfig, "solver", profiles); persona != "" {
		prompt, err := manifest.PersonaSystemPrompt(persona, c.Personas)
		if err != nil {
			return err
		}
		opts = append(opts, runner.WithSolverPrompt(prompt))
	}

	if enabled, sinkType := m.ResultsLogging(); enabled {
		if sinkType != "" && sinkType != "csv" {
			return fmt.Errorf("unknown results sink type %q, supported types: csv", sinkType)
		}
		sink := runner.NewTsvSink(m.Name)
		slog.Info("Results sink enabled", "path", sink.Path())
		opts = append(opts, runner.WithSink(sink))
	}

	registry := runner.BuildRegistry(m)

	_, err = runner.New(m, providers, registry, opts...).Run(ctx)
	return err
}
