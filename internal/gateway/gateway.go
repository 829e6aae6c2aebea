// ABOUTME: Gateway orchestrator wiring stores, registry, bridges, and HTTP together
// ABOUTME: Owns startup loading, the server lifecycle, and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/2389/handoff-gateway/internal/bridge"
	"github.com/2389/handoff-gateway/internal/config"
	"github.com/2389/handoff-gateway/internal/conversation"
	"github.com/2389/handoff-gateway/internal/dedupe"
	"github.com/2389/handoff-gateway/internal/directory"
	"github.com/2389/handoff-gateway/internal/escalation"
	"github.com/2389/handoff-gateway/internal/notify"
	"github.com/2389/handoff-gateway/internal/queue"
	"github.com/2389/handoff-gateway/internal/store"
)

// Gateway wires the hand-off core to its collaborators and serves the HTTP
// surface: agent console API, agent WebSocket feed, and channel webhooks.
type Gateway struct {
	config      *config.Config
	store       store.Store
	registry    *queue.Registry
	directory   *directory.Directory
	service     *conversation.Service
	broadcaster *notify.Broadcaster
	hub         *notify.Hub
	sweeper     *conversation.Sweeper
	telegram    *bridge.TelegramSender
	dedupe      *dedupe.Cache
	httpServer  *http.Server
	logger      *slog.Logger
}

// initStore creates the sqlite store from config, honoring the HANDOFF_DB_PATH
// override used in container deployments.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("HANDOFF_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New builds a gateway from config. Nothing is loaded or listening yet; Run
// does that.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	st, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		config: cfg,
		store:  st,
		logger: logger,
	}

	g.broadcaster = notify.NewBroadcaster(logger)
	g.hub = notify.NewHub(g.broadcaster, logger)
	g.directory = directory.New(st, logger)
	g.dedupe = dedupe.New(10*time.Minute, 10000)

	botClient := bridge.NewBotClient(cfg.Bot.BaseURL, cfg.Bot.APIKey, cfg.Bot.TokenTTL, logger)

	var channel bridge.ChannelSender
	if cfg.Telegram.Enabled {
		tg, err := bridge.NewTelegramSender(cfg.Telegram.Token, false, logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("initializing telegram: %w", err)
		}
		g.telegram = tg
		channel = tg
	} else {
		logger.Warn("telegram disabled, outbound channel delivery is a no-op")
		channel = noopChannel{logger: logger}
	}

	g.registry = queue.New(queue.Config{
		ResponseTimeout:    cfg.Handoff.ResponseTimeout(),
		RedirectMultiplier: cfg.Handoff.RedirectTimeoutMultiplier,
		WaitingMessage:     cfg.Handoff.WaitingMessage,
	}, st, g.directory, g.broadcaster, channel, botClient, logger)

	detector := escalation.NewDetector(cfg.Handoff.TriggerPhrases)
	g.service = conversation.New(conversation.Config{
		TransferMessage:   cfg.Handoff.TransferMessage,
		InactivityTimeout: cfg.Handoff.InactivityTimeout,
	}, st, g.registry, detector, botClient, channel, g.dedupe, logger)

	g.sweeper, err = conversation.NewSweeper(cfg.Handoff.SweepSchedule, g.service, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.buildMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g, nil
}

// buildMux mounts the HTTP surface.
func (g *Gateway) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)

	mux.HandleFunc("GET /api/queue", g.handleListQueue)
	mux.HandleFunc("GET /api/queue/next", g.handleNextInQueue)
	mux.HandleFunc("GET /api/queue/{id}/messages", g.handleListMessages)
	mux.HandleFunc("POST /api/queue/{id}/messages", g.handleAgentMessage)
	mux.HandleFunc("POST /api/queue/{id}/assign", g.handleAssign)
	mux.HandleFunc("POST /api/queue/{id}/complete", g.handleComplete)
	mux.HandleFunc("POST /api/queue/{id}/priority", g.handlePriority)
	mux.HandleFunc("POST /api/queue/{id}/tags", g.handleTags)

	mux.HandleFunc("GET /api/agents", g.handleListAgents)
	mux.HandleFunc("POST /api/agents", g.handleRegisterAgent)
	mux.HandleFunc("POST /api/agents/{id}/status", g.handleAgentStatus)

	mux.HandleFunc("POST /webhook/telegram", g.handleTelegramWebhook)
	mux.HandleFunc("POST /webhook/bot", g.handleBotWebhook)

	g.hub.RegisterRoutes(mux)
	return mux
}

// Run loads state, starts background work, and serves HTTP until ctx is
// cancelled or the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.directory.Load(ctx); err != nil {
		return fmt.Errorf("loading agent directory: %w", err)
	}
	if err := g.registry.Load(ctx); err != nil {
		return fmt.Errorf("loading queue: %w", err)
	}
	g.sweeper.Start()

	if g.telegram != nil {
		go g.telegram.Listen(ctx, func(ctx context.Context, in *bridge.InboundMessage) {
			if err := g.service.HandleUserMessage(ctx, in); err != nil {
				g.logger.Error("handling inbound message",
					"conversation_id", in.UserID,
					"error", err)
			}
		})
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("http server listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("shutdown signal received")
		return g.Shutdown(context.Background())
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

// Shutdown stops the server and background workers and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		g.logger.Error("http shutdown", "error", err)
	}

	g.sweeper.Stop()
	g.broadcaster.Close()
	g.dedupe.Close()

	if err := g.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	g.logger.Info("gateway stopped")
	return nil
}

// noopChannel stands in for the channel adapter when Telegram is disabled,
// typically in development against the HTTP API only.
type noopChannel struct {
	logger *slog.Logger
}

func (n noopChannel) SendToUser(_ context.Context, _, recipient, text string) bool {
	n.logger.Debug("dropping outbound message, no channel configured",
		"recipient", recipient,
		"text", text)
	return true
}
