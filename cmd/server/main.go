// Package main provides the quiz server binary: HTTP room creation,
// per-room websocket sessions, and PostgreSQL-backed room persistence.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/duoquiz/duoquiz/internal/config"
	"github.com/duoquiz/duoquiz/internal/frontend/ws"
	"github.com/duoquiz/duoquiz/internal/game/ident"
	"github.com/duoquiz/duoquiz/internal/game/questions"
	"github.com/duoquiz/duoquiz/internal/game/rng"
	"github.com/duoquiz/duoquiz/internal/observability"
	"github.com/duoquiz/duoquiz/internal/registry"
	"github.com/duoquiz/duoquiz/internal/server"
	"github.com/duoquiz/duoquiz/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting quiz server", zap.String("addr", cfg.HTTP.Addr()))

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	roomRepo := postgres.NewRoomRepository(pool.DB())

	questionPool, err := questions.Load(cfg.Game.QuestionsFile)
	if err != nil {
		logger.Fatal("loading question pack", zap.Error(err))
	}
	logger.Info("question pack loaded",
		zap.String("file", cfg.Game.QuestionsFile),
		zap.Int("questions", len(questionPool)),
	)

	entropy := rng.NewCryptoSource()
	decks, err := questions.NewSource(questionPool, entropy)
	if err != nil {
		logger.Fatal("building deck source", zap.Error(err))
	}

	rooms := registry.New(roomRepo, decks, logger, cfg.Game.RevealDelay)
	codes := ident.NewGenerator(entropy)
	handler := ws.NewHandler(rooms, codes, cfg.Game.RoomCodeLength, cfg.Game.SessionBuffer, logger)

	mux := httprouter.New()
	handler.Register(mux)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	// Stop order is the reverse of registration: http first so no new
	// sessions arrive, then rooms, then the database they persist to.
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("database", &server.FuncService{
		StartFn: func() error {
			return pool.Health(ctx, 5*time.Second)
		},
		StopFn: pool.Close,
	})
	lifecycle.Add("rooms", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn:  rooms.StopAll,
	})
	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
		StopFn: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("lifecycle error", zap.Error(err))
	}
}
