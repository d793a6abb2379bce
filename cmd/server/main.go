package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/arcanechess/arcane-server-go/internal/config"
	"github.com/arcanechess/arcane-server-go/internal/game"
	"github.com/arcanechess/arcane-server-go/internal/game/cards"
	"github.com/arcanechess/arcane-server-go/internal/repository"
	"github.com/arcanechess/arcane-server-go/internal/server"
	"github.com/arcanechess/arcane-server-go/internal/session"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Arcane Chess server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open match archive", zap.Error(err))
	}
	defer store.Close()

	catalog, err := cards.LoadCatalog(cfg.Game.CatalogPath)
	if err != nil {
		logger.Fatal("failed to load card catalog", zap.Error(err))
	}
	logger.Info("card catalog loaded", zap.Int("cards", catalog.Len()))

	sessionMgr := session.NewManager(cfg.Server.LeasePeriod, logger)
	logger.Info("session manager initialized",
		zap.Duration("lease_period", cfg.Server.LeasePeriod),
	)

	gameMgr := game.NewManager(logger,
		game.WithMaxConcurrentGames(cfg.Game.MaxConcurrentGames),
		game.WithGameClock(cfg.Game.InitialTime),
		game.WithHandSize(cfg.Game.OpeningHand),
		game.WithCatalog(catalog),
		game.WithResultStore(store),
	)
	logger.Info("game manager initialized",
		zap.Int("max_games", cfg.Game.MaxConcurrentGames),
		zap.Duration("initial_time", cfg.Game.InitialTime),
	)

	hub := server.NewHub(gameMgr, sessionMgr, logger)
	server.SetBufferSizes(cfg.Server.WebSocket.ReadBufferSize, cfg.Server.WebSocket.WriteBufferSize)

	gameMgr.StartTimer(ctx, cfg.Game.TimerInterval, hub.NotifyTimeout)
	go sessionMgr.CleanupExpiredSessions(ctx, cfg.Server.LeasePeriod/2, hub.ExpireSession)
	go cleanupFinishedGames(ctx, gameMgr, sessionMgr, hub, cfg.Game.CleanupInterval)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.ChainUnaryInterceptors(
			server.RecoveryInterceptor(logger),
			server.LoggingInterceptor(logger),
		)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPC.MaxConcurrentStreams)),
	)
	healthSrv := server.RegisterLobbyServer(grpcServer,
		server.NewLobbyServer(gameMgr, sessionMgr, store, version, logger))

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.Server.WebSocket.Address,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting WebSocket server", zap.String("address", cfg.Server.WebSocket.Address))
		if wsErr := httpServer.ListenAndServe(); wsErr != nil && !errors.Is(wsErr, http.ErrServerClosed) {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("Arcane Chess server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.String("database_driver", cfg.Database.Driver),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	healthSrv.Shutdown()
	gameMgr.StopTimer()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket server shutdown error", zap.Error(err))
	}
	hub.Close()

	archived := gameMgr.CleanupFinishedGames(shutdownCtx)
	logger.Info("finished games archived", zap.Int("count", archived))

	sessionMgr.CloseAll()
	grpcServer.GracefulStop()

	logger.Info("Arcane Chess server stopped")
}

// cleanupFinishedGames periodically archives finished matches, drops their
// sessions and pairs players who queued while the match cap was full.
func cleanupFinishedGames(ctx context.Context, games *game.Manager, sessions *session.Manager, hub *server.Hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, g := range games.FinishedGames() {
				sessions.RemoveGame(g.ID())
			}
			games.CleanupFinishedGames(ctx)
			hub.MatchQueued()
		}
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
