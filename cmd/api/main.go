package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/msfrancis/mediguide/backend/internal/config"
	"github.com/msfrancis/mediguide/backend/internal/handler"
	"github.com/msfrancis/mediguide/backend/internal/llm"
	"github.com/msfrancis/mediguide/backend/internal/model/hospital"
	"github.com/msfrancis/mediguide/backend/internal/model/profile"
	chatService "github.com/msfrancis/mediguide/backend/internal/service/chat"
	emergencyService "github.com/msfrancis/mediguide/backend/internal/service/emergency"
	gatewayService "github.com/msfrancis/mediguide/backend/internal/service/gateway"
	"github.com/msfrancis/mediguide/backend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.Warnf("failed to load .env file, continuing with system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	// Stores stand in for the external profile/hospital services.
	profiles := profile.NewMemoryStore()
	hospitals := hospital.NewMemoryStore()

	// Gateway: own /api/chat endpoint when model credentials exist.
	var gatewaySvc *gatewayService.Service
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			logger.Warnf("failed to initialize chat model, gateway disabled: %v", err)
		} else {
			gatewaySvc = gatewayService.NewService(chatModel)
			logger.Infof("chat gateway initialized")
		}
	} else {
		logger.Infof("model credentials not configured, gateway disabled")
	}

	chatURL := cfg.Chat.URL
	if chatURL == "" {
		// Loop back to our own gateway.
		chatURL = fmt.Sprintf("http://localhost%s/api/chat", cfg.Server.Addr)
		logger.Infof("CHAT_URL not set, sessions will use %s", chatURL)
	}

	chatSvc := chatService.NewService(
		llm.NewClient(chatURL, cfg.Chat.APIKey),
		chatService.Config{
			HistoryWindow:   cfg.Chat.HistoryWindow,
			CooldownDefault: cfg.Chat.CooldownDefault,
			WatchdogTimeout: cfg.Chat.WatchdogTimeout,
		},
	)

	dispatcherCfg := emergencyService.Config{
		DefaultNumber:    cfg.Emergency.DefaultNumber,
		CountryCode:      cfg.Emergency.CountryCode,
		Scheme:           cfg.Emergency.Scheme,
		WebHost:          cfg.Emergency.WebHost,
		WebFallbackDelay: cfg.Emergency.WebFallbackDelay,
		LocationTimeout:  cfg.Emergency.LocationTimeout,
	}

	var mailer emergencyService.Mailer
	if cfg.Emergency.NotifyURL != "" {
		mailer = &emergencyService.HTTPMailer{
			URL:    cfg.Emergency.NotifyURL,
			APIKey: cfg.Emergency.NotifyAPIKey,
			Client: &http.Client{Timeout: 15 * time.Second},
		}
	} else {
		logger.Warnf("EMERGENCY_NOTIFY_URL not set, email channel disabled")
	}

	newDispatcher := func(locator emergencyService.Locator, notifier emergencyService.Notifier) *emergencyService.Dispatcher {
		return emergencyService.NewDispatcher(dispatcherCfg, locator, mailer, nil, profiles, hospitals, notifier)
	}

	router := handler.NewRouter(handler.Deps{
		ChatSvc:       chatSvc,
		GatewaySvc:    gatewaySvc,
		Profiles:      profiles,
		Hospitals:     hospitals,
		NewDispatcher: newDispatcher,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Infof("MediGuide backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
