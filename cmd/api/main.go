package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/flowsend/flowsend/backend/internal/config"
	"github.com/flowsend/flowsend/backend/internal/handler"
	"github.com/flowsend/flowsend/backend/internal/service/assistant"
	circleservice "github.com/flowsend/flowsend/backend/internal/service/circle"
	"github.com/flowsend/flowsend/backend/internal/service/intent"
	rampservice "github.com/flowsend/flowsend/backend/internal/service/ramp"
	"github.com/flowsend/flowsend/backend/internal/service/sponsorship"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	deps := handler.Dependencies{
		USDCContract: cfg.Paymaster.USDCContract,
	}

	// Chat model feeds both the intent classifier and the assistant.
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			logger.Warn("failed to initialize chat model, continuing without AI", zap.Error(err))
		} else {
			deps.Classifier = intent.NewService(chatModel)

			assistantSvc, err := assistant.NewService(ctx, chatModel, cfg.AI)
			if err != nil {
				logger.Warn("failed to initialize assistant service", zap.Error(err))
			} else {
				deps.Assistant = assistantSvc
			}
			logger.Info("chat model initialized", zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Info("chat model credentials not configured, AI features disabled")
	}

	if cfg.Circle.Enabled() {
		ledger, err := circleservice.NewClient(cfg.Circle)
		if err != nil {
			logger.Warn("failed to initialize ledger client", zap.Error(err))
		} else {
			deps.Ledger = ledger
			logger.Info("ledger client initialized", zap.String("base_url", cfg.Circle.BaseURL))
		}
	} else {
		logger.Info("ledger credentials not configured, banking operations disabled")
	}

	// URL building works with or without an issuer; the issuer only upgrades
	// URLs from appId fallback to session tokens.
	deps.URLBuilder = rampservice.NewURLBuilder(cfg.Ramp)
	if cfg.Ramp.Enabled() {
		issuer, err := rampservice.NewIssuer(cfg.Ramp)
		if err != nil {
			logger.Warn("failed to initialize session token issuer, using fallback URLs", zap.Error(err))
		} else {
			deps.Issuer = issuer
			logger.Info("session token issuer initialized")
		}
	} else {
		logger.Info("ramp credentials not configured, using fallback URLs")
	}

	if cfg.Paymaster.Enabled() {
		checker, err := sponsorship.NewChecker(cfg.Paymaster)
		if err != nil {
			logger.Warn("failed to initialize sponsorship checker", zap.Error(err))
		} else {
			deps.Checker = checker
			logger.Info("sponsorship checker initialized", zap.Int64("chain_id", cfg.Paymaster.ChainID))
		}
	} else {
		logger.Info("paymaster RPC not configured, sponsorship checks disabled")
	}

	router := handler.NewRouter(deps)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	zap.L().Info("flowsend backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		zap.L().Fatal("server error", zap.Error(err))
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
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
