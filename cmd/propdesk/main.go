package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/propdesk/internal/agent"
	"github.com/user/propdesk/internal/api"
	"github.com/user/propdesk/internal/config"
	"github.com/user/propdesk/internal/db"
	"github.com/user/propdesk/internal/directory"
	"github.com/user/propdesk/internal/hub"
	"github.com/user/propdesk/internal/profile"
	"github.com/user/propdesk/internal/server"
	"github.com/user/propdesk/internal/triage"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	conn := database.SQL()

	profiles, err := profile.NewRegistry(cfg.ProfilesDir)
	if err != nil {
		slog.Error("failed to load triage profiles", "error", err)
		os.Exit(1)
	}

	h := hub.New(cfg.Token)
	go h.Run(ctx)

	events := agent.NewEventLogger(db.NewAgentEventRepo(conn))
	go events.Start(ctx)
	defer events.Close()

	engine := agent.NewEngineClient(agent.EngineOptions{
		APIKey:          cfg.EngineAPIKey,
		Model:           cfg.EngineModel,
		BaseURL:         cfg.EngineBaseURL,
		Temperature:     cfg.EngineTemperature,
		MaxOutputTokens: cfg.EngineMaxOutputTokens,
	})
	if !engine.Enabled() {
		slog.Warn("engine API key not set, triage endpoint will be unavailable")
	}

	triageService := triage.NewService(db.NewTicketRepo(conn), profiles)
	handlers := agent.Handlers{
		CategorizeAndTriage: triageService.CategorizeAndTriage,
	}

	directoryService := directory.NewService(db.NewContractorRepo(conn), externalDirectory(cfg))
	handlers.SearchContractors = directoryService.Search

	var runner *agent.Runner
	if engine.Enabled() {
		runner, err = agent.NewRunner(agent.Options{
			Engine: engine,
			Events: events,
			OnProgress: func(event agent.ProgressEvent) {
				h.BroadcastTriageEvent(hub.TriageEventMessage{
					Type:     event.Type,
					TicketID: event.TicketID,
					Name:     event.Name,
					Args:     event.Args,
					Result:   event.Result,
					Error:    event.Error,
				})
			},
		})
		if err != nil {
			slog.Error("failed to build agent runner", "error", err)
			os.Exit(1)
		}
	}

	apiHandler := api.NewRouter(conn, runner, handlers, profiles, cfg.Token)

	srv, err := server.New(cfg, h, conn, apiHandler)
	if err != nil {
		slog.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\npropdesk running at http://localhost:%d (token %s)\n\n", cfg.Port, cfg.Token)

	if err := srv.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func externalDirectory(cfg *config.Config) *directory.ExternalClient {
	if cfg.DirectoryBaseURL == "" {
		return nil
	}
	return &directory.ExternalClient{
		BaseURL:    cfg.DirectoryBaseURL,
		Token:      cfg.DirectoryToken,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}
