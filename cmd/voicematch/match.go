package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hearthwise/voicematch/internal/advisor"
	"github.com/hearthwise/voicematch/internal/infrastructure/config"
	"github.com/hearthwise/voicematch/internal/infrastructure/logging"
	"github.com/hearthwise/voicematch/internal/match"
	"github.com/hearthwise/voicematch/internal/pipeline"
)

// maxStreamLineSize bounds a single line in stream mode. Entity pools are
// bulky; 4 MiB matches the HTTP body limit.
const maxStreamLineSize = 4 << 20

func newMatchCmd() *cobra.Command {
	var stream bool

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Resolve a batch from stdin and print the result to stdout",
		Long: `Reads a request batch from stdin, resolves it, and writes the result
as JSON to stdout. With --stream, each input line is a separate batch and
each output line a separate result, for long-running pipe integrations.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runMatch(ctx, stream)
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "process newline-delimited batches until EOF")
	return cmd
}

// runMatch builds a stdout-safe processor and runs one-shot or stream
// mode. Logs go to stderr so stdout carries nothing but response JSON.
func runMatch(ctx context.Context, stream bool) error {
	cfg, err := loadConfigOrDefault(configPath())
	if err != nil {
		return err
	}
	log := logging.ForStream(cfg.Logging, version)

	engine := match.New(engineOptions(cfg.Matcher))
	engine.SetLogger(log.With("component", "engine"))

	opts := []pipeline.Option{pipeline.WithLogger(log.With("component", "pipeline"))}
	if cfg.Advisor.Enabled {
		adv := advisor.New(advisor.Config{
			APIKey:            cfg.Advisor.APIKey,
			BaseURL:           cfg.Advisor.BaseURL,
			Model:             cfg.Advisor.Model,
			Timeout:           cfg.GetAdvisorTimeout(),
			MaxEntities:       cfg.Advisor.MaxEntities,
			RequestsPerSecond: cfg.Advisor.RequestsPerSecond,
			Burst:             cfg.Advisor.Burst,
		})
		adv.SetLogger(log.With("component", "advisor"))
		opts = append(opts, pipeline.WithAdviser(adv))
	}
	processor := pipeline.NewProcessor(engine, opts...)

	if stream {
		return runStream(ctx, processor, os.Stdin, os.Stdout)
	}
	return runOneShot(ctx, processor, os.Stdin, os.Stdout)
}

// loadConfigOrDefault loads the config file, falling back to defaults if
// it does not exist. The CLI must work without a config file.
func loadConfigOrDefault(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func runOneShot(ctx context.Context, processor *pipeline.Processor, in io.Reader, out io.Writer) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	result, err := processor.Process(ctx, "cli", raw)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	return enc.Encode(result)
}

// runStream resolves one batch per input line until EOF. Bad input lines
// produce an error line rather than terminating the stream, so a single
// malformed batch cannot kill a long-running pipe.
func runStream(ctx context.Context, processor *pipeline.Processor, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxStreamLineSize)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		result, err := processor.Process(ctx, "cli", line)
		if err != nil {
			if encErr := enc.Encode(map[string]string{"error": err.Error()}); encErr != nil {
				return encErr
			}
			continue
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	return scanner.Err()
}
