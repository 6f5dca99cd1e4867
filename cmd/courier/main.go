// Command courier runs the conversation service: an HTTP API that
// mediates tool-calling conversations between clients and an
// OpenRouter-compatible chat-completions endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ferrule/courier/internal/agent"
	"github.com/ferrule/courier/internal/api"
	"github.com/ferrule/courier/internal/buildinfo"
	"github.com/ferrule/courier/internal/config"
	"github.com/ferrule/courier/internal/conversation"
	"github.com/ferrule/courier/internal/events"
	"github.com/ferrule/courier/internal/fetch"
	"github.com/ferrule/courier/internal/homeassistant"
	"github.com/ferrule/courier/internal/mqtt"
	"github.com/ferrule/courier/internal/openrouter"
	"github.com/ferrule/courier/internal/retry"
	"github.com/ferrule/courier/internal/tools"
	"github.com/ferrule/courier/internal/usage"
)

const usageText = `Usage: courier [flags] <command>

Commands:
  serve            Run the HTTP API server (default)
  ask <question>   Ask a single question and print the reply
  version          Print version information

Flags:
  -config <path>   Config file (default: searched in standard locations)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	var configPath string
	command := "serve"
	var rest []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-config", "--config":
			i++
			if i >= len(args) {
				return fmt.Errorf("-config requires a path")
			}
			configPath = args[i]
		case "-h", "-help", "--help":
			fmt.Fprint(stdout, usageText)
			return nil
		default:
			command = args[i]
			rest = args[i+1:]
			i = len(args)
		}
	}

	if command == "version" {
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	}

	path, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	logger, err := newLogger(stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	switch command {
	case "serve":
		return serve(ctx, cfg, logger)
	case "ask":
		if len(rest) == 0 {
			return fmt.Errorf("ask requires a question")
		}
		return ask(ctx, cfg, logger, stdout, rest[0])
	default:
		fmt.Fprint(stderr, usageText)
		return fmt.Errorf("unknown command %q", command)
	}
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if level != "" {
		parsed, err := config.ParseLogLevel(level)
		if err != nil {
			return nil, err
		}
		logLevel = parsed
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       logLevel,
		ReplaceAttr: config.ReplaceLogLevelNames,
	})), nil
}

// buildAgent wires the transport, tools, retry policy, and observers
// shared by serve and ask.
func buildAgent(cfg *config.Config, logger *slog.Logger, bus *events.Bus, store *usage.Store, publisher *mqtt.Publisher) (*agent.Agent, error) {
	registry := tools.NewRegistry(logger)
	var ha *homeassistant.Client
	if cfg.HomeAssistant.URL != "" {
		ha = homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, logger)
	}
	if err := tools.RegisterBuiltins(registry, ha, fetch.NewFetcher()); err != nil {
		return nil, err
	}

	onUsage := func(conversationID, model, provider string, input, output int) {
		if store != nil {
			rec := usage.Record{
				ConversationID: conversationID,
				Model:          model,
				Provider:       provider,
				InputTokens:    input,
				OutputTokens:   output,
			}
			if err := store.Add(context.Background(), rec); err != nil {
				logger.Warn("record usage", "error", err)
			}
		}
		if publisher != nil {
			publisher.AddUsage(input, output)
		}
	}

	return agent.New(agent.Options{
		Transport:     openrouter.NewClient(cfg.OpenRouter, logger),
		Tools:         registry,
		Model:         cfg.OpenRouter.Model,
		SystemPrompt:  cfg.Agent.SystemPrompt,
		MaxIterations: cfg.Agent.MaxToolIterationsOrDefault(),
		Retry: retry.Policy{
			MaxRetries:              cfg.Agent.MaxRetriesOrDefault(),
			ServiceUnavailableDelay: cfg.Agent.ServiceUnavailableDelay(),
			RateLimitDelay:          cfg.Agent.RateLimitDelay(),
			Model:                   cfg.OpenRouter.Model,
			Logger:                  logger,
		},
		Bus:     bus,
		OnUsage: onUsage,
		Logger:  logger,
	}), nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting", "version", buildinfo.Version, "model", cfg.OpenRouter.Model)

	store, err := usage.Open(filepath.Join(cfg.DataDir, "usage.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	var publisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		publisher = mqtt.NewPublisher(cfg.MQTT, logger)
		if err := publisher.Start(ctx); err != nil {
			return err
		}
		go publisher.Run(ctx)
	}

	bus := events.NewBus()
	ag, err := buildAgent(cfg, logger, bus, store, publisher)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(cfg.Listen.Address, strconv.Itoa(cfg.Listen.Port))
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(ag, bus, store, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if publisher != nil {
		if err := publisher.Close(shutdownCtx); err != nil {
			logger.Warn("mqtt disconnect", "error", err)
		}
	}
	return server.Shutdown(shutdownCtx)
}

func ask(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer, question string) error {
	ag, err := buildAgent(cfg, logger, nil, nil, nil)
	if err != nil {
		return err
	}
	result, err := ag.Generate(ctx, agent.Request{
		Turns: []conversation.Turn{conversation.User(question)},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, result.Text)
	return nil
}
