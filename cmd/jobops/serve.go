package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobops/jobops/internal/config"
	"github.com/jobops/jobops/internal/dashboard"
	"github.com/jobops/jobops/internal/logging"
	"github.com/jobops/jobops/internal/mirror"
	"github.com/jobops/jobops/internal/syncer"
	"github.com/jobops/jobops/internal/ui"
	"github.com/jobops/jobops/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "server",
	Short:   "Serve the JSON API and live websocket feed",
	Long: `Start an HTTP server exposing the applications as a JSON API, with a
websocket feed of changes.

Routes:
  /api/jobs, /api/jobs/{id}     list, create, read, update, delete
  /api/stats, /api/insights     dashboard figures
  /api/fields                   custom field definitions
  /api/notifications            active notifications
  /api/assistant, /api/briefing assistant conversation and daily briefing
  /api/endpoint                 remote endpoint
  /ws                           job_update, stats, notification, sync_complete
  /health, /metrics

Edits to the config file's remote.endpoint are picked up while running.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")

		var handler *dashboard.Handler
		a := mustOpenApp(cmd, appOptions{
			quiet:    true,
			logLevel: "info",
			relayHook: func(r syncer.RelayResult) {
				if handler != nil {
					handler.RelayDone(r)
				}
			},
		})
		defer a.Close()
		if !cmd.Flags().Changed("port") {
			port = a.cfg.Server.Port
		}

		api := dashboard.NewAPI(dashboard.APIConfig{
			Store:     a.store,
			Fields:    a.fields,
			Notices:   a.notices,
			Assistant: a.assistant,
			Endpoints: a.endpoints,
			Logger:    a.logger,
		})
		server := dashboard.NewServer(dashboard.Config{
			Port:     port,
			Logger:   a.logger,
			API:      api,
			Gatherer: a.registry,
			Welcome:  func() dashboard.Message { return dashboard.StatsMessage(a.store.Stats()) },
		})
		handler = dashboard.NewHandler(server, a.logger)
		a.store.AddListener(handler)
		unsubscribe := a.notices.Subscribe(handler.Notified)
		defer unsubscribe()

		if a.cfg.File != "" {
			w, err := watchConfig(cmd.Context(), a)
			if err != nil {
				a.logger.Warn("config watching disabled", zap.Error(err))
			} else {
				defer w.Stop()
			}
		}

		if err := server.Start(); err != nil {
			a.fatalf("failed to start server: %v", err)
		}

		fmt.Printf("%s Serving %d applications (loaded from %s)\n", ui.RenderPass("✓"), a.store.Len(), a.source)
		fmt.Printf("   API:       http://localhost:%d/api/jobs\n", port)
		fmt.Printf("   WebSocket: ws://localhost:%d/ws\n", port)
		fmt.Printf("   Metrics:   http://localhost:%d/metrics\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		<-cmd.Context().Done()

		fmt.Println("\nShutting down...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
	},
}

// watchConfig re-reads the config file on change and applies a new
// remote.endpoint.
func watchConfig(ctx context.Context, a *app) (*watch.ConfigWatcher, error) {
	reload := func() {
		cfg, err := config.Load(config.Options{ConfigFile: a.cfg.File, DataDir: dataDir})
		if err != nil {
			a.logger.Warn("config reload failed", zap.Error(err))
			return
		}
		rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		changed, err := a.endpoints.SetConfigured(rctx, cfg.Remote.Endpoint)
		if err != nil {
			a.logger.Warn("new endpoint rejected", zap.Error(err))
			a.notices.Errorf("Remote endpoint is invalid: %v", err)
			return
		}
		if changed {
			a.notices.Infof("Remote endpoint changed")
		}
	}

	w, err := watch.NewConfigWatcher(a.cfg.File, reload, watch.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return nil, err
	}
	return w, nil
}

var mirrorCmd = &cobra.Command{
	Use:     "mirror",
	GroupID: "server",
	Short:   "Run a self-hosted remote endpoint",
	Long: `Run a remote endpoint backed by a local SQLite file, as an alternative
to the spreadsheet script. Point another installation at it with:

  jobops endpoint set http://<host>:<port>/`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(config.Options{ConfigFile: configFile, DataDir: dataDir})
		if err != nil {
			fatalf("%v", err)
		}
		cfg.Logging.Level = "info"
		logger, flush, err := logging.New(cfg.Logging)
		if err != nil {
			fatalf("%v", err)
		}
		defer flush()

		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = cfg.Server.MirrorPort
		}
		path, _ := cmd.Flags().GetString("db")
		if path == "" {
			path = filepath.Join(cfg.DataDir, "mirror.db")
		}

		db, err := mirror.Open(path)
		if err != nil {
			fatalf("%v", err)
		}
		defer db.Close()

		server := mirror.NewServer(db, port, logger)
		if err := server.Start(); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Mirror listening on http://localhost:%d/ (%s)\n", ui.RenderPass("✓"), port, path)
		fmt.Println("\nPress Ctrl+C to stop...")

		<-cmd.Context().Done()

		fmt.Println("\nShutting down...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (default from server.port)")
	mirrorCmd.Flags().IntP("port", "p", 8090, "Port to listen on (default from server.mirror_port)")
	mirrorCmd.Flags().String("db", "", "Mirror database file (default: <data_dir>/mirror.db)")
	rootCmd.AddCommand(serveCmd, mirrorCmd)
}
