package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobops/jobops/internal/assistant"
	"github.com/jobops/jobops/internal/config"
	"github.com/jobops/jobops/internal/fields"
	"github.com/jobops/jobops/internal/logging"
	"github.com/jobops/jobops/internal/notify"
	"github.com/jobops/jobops/internal/seed"
	"github.com/jobops/jobops/internal/storage"
	"github.com/jobops/jobops/internal/store"
	"github.com/jobops/jobops/internal/syncer"
	"github.com/jobops/jobops/internal/ui"
	"github.com/jobops/jobops/internal/watch"
)

// relayGrace bounds how long a command waits for background relays
// before exiting.
const relayGrace = 45 * time.Second

// app is the wired runtime shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	kv        storage.Backend
	notices   *notify.Center
	sync      *syncer.Syncer
	store     *store.Store
	fields    *fields.Registry
	assistant *assistant.Assistant
	endpoints *watch.Endpoints
	registry  *prometheus.Registry
	source    syncer.Source

	flushLogs   func()
	unsubscribe func()
}

type appOptions struct {
	// quiet keeps notifications off the terminal (serve streams them instead).
	quiet bool
	// logLevel overrides the configured level when set.
	logLevel string
	// relayHook observes finished relays.
	relayHook func(syncer.RelayResult)
}

// openApp loads config, opens storage and performs the initial load.
func openApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load(config.Options{ConfigFile: configFile, DataDir: dataDir})
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	logger, flush, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	kv, err := storage.Open(ctx, cfg.Storage.Config)
	if err != nil {
		flush()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		kv:        kv,
		notices:   notify.New(cfg.Notifications.TTL),
		registry:  prometheus.NewRegistry(),
		flushLogs: flush,
	}
	if !opts.quiet {
		a.unsubscribe = a.notices.Subscribe(printNotification)
	}

	syncOpts := []syncer.Option{
		syncer.WithNotifier(a.notices),
		syncer.WithLogger(logger),
		syncer.WithMetrics(syncer.NewMetrics(a.registry)),
		syncer.WithRelayTimeout(cfg.Remote.Timeout),
	}
	if cfg.Storage.SeedDemo {
		syncOpts = append(syncOpts, syncer.WithSeed(seed.Demo))
	}
	if opts.relayHook != nil {
		syncOpts = append(syncOpts, syncer.WithRelayHook(opts.relayHook))
	}
	a.sync = syncer.New(kv, syncOpts...)

	a.endpoints = watch.NewEndpoints(kv, a.sync, cfg.Remote.Endpoint, watch.RemoteFactory(cfg.Remote.Timeout), logger)
	if _, err := a.endpoints.Apply(ctx); err != nil {
		// A bad saved endpoint should not lock the user out of local data.
		logger.Warn("ignoring unusable endpoint", zap.Error(err))
		a.notices.Errorf("Remote endpoint is invalid: %v", err)
	}

	a.store = store.New(store.WithListener(a.sync))
	if a.source, err = a.sync.Load(ctx, a.store); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load applications: %w", err)
	}

	a.fields = fields.New(kv, logger)

	var llm assistant.LLM
	if cfg.Assistant.APIKey != "" {
		llm = assistant.NewAnthropic(cfg.Assistant.APIKey, cfg.Assistant.Model, cfg.Assistant.MaxTokens)
	}
	a.assistant = assistant.New(a.store, kv, llm, assistant.WithLogger(logger))
	return a, nil
}

// mustOpenApp is openApp for commands, exiting on failure.
func mustOpenApp(cmd *cobra.Command, opts appOptions) *app {
	a, err := openApp(cmd.Context(), opts)
	if err != nil {
		fatalf("%v", err)
	}
	return a
}

// Close waits for pending relays, then releases everything.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), relayGrace)
	defer cancel()
	if err := a.sync.Wait(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s Some changes may not have reached the remote\n", ui.RenderWarn("⚠"))
	}
	a.sync.Close()
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.notices.Close()
	if err := a.kv.Close(); err != nil {
		a.logger.Warn("failed to close storage", zap.Error(err))
	}
	a.flushLogs()
}

// fatalf closes the app, then reports err and exits.
func (a *app) fatalf(format string, args ...any) {
	a.Close()
	fatalf(format, args...)
}

func printNotification(n notify.Notification) {
	switch n.Kind {
	case notify.Error:
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderFail("✗"), n.Message)
	case notify.Success:
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderPass("✓"), n.Message)
	default:
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderAccent("ℹ"), n.Message)
	}
}
