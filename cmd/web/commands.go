package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/mailroom/internal/config"
	"github.com/yanizio/mailroom/internal/database"
	"github.com/yanizio/mailroom/internal/server"
	"github.com/yanizio/mailroom/internal/subscription"
)

// serve binds the listener and blocks until ctx ends, then drains in-flight
// requests for at most shutdownGrace.
func serve(ctx context.Context, cfg *config.Settings, log *zap.Logger) error {
	desc := database.WithDatabase(cfg.Database)
	db, err := database.Open(desc, database.OptionsFrom(cfg.Database))
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database pool ready (lazy)", zap.Stringer("dsn", desc))

	ln, err := server.Listen(cfg.Application)
	if err != nil {
		return err
	}

	store := subscription.NewPGStore(db, cfg.Database.AcquireTimeout)
	router := server.NewRouter(cfg.Application, subscription.NewHandler(store, log), log)
	srv := server.New(router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("environment", cfg.Environment.String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn("graceful shutdown failed", zap.Error(err))
			return srv.Close()
		}
		return nil
	})
	return g.Wait()
}

// createDB connects to the server without a database name and creates
// database.db_name when it is missing.
func createDB(ctx context.Context, cfg *config.Settings, wait time.Duration, log *zap.Logger) error {
	admin, err := database.Open(database.WithoutDatabase(cfg.Database), database.OptionsFrom(cfg.Database))
	if err != nil {
		return err
	}
	defer admin.Close()

	if err := database.WaitReady(ctx, admin, wait, log); err != nil {
		return err
	}
	created, err := database.CreateDatabase(ctx, admin, cfg.Database.DBName)
	if err != nil {
		return err
	}
	log.Info("createdb finished",
		zap.String("database", cfg.Database.DBName),
		zap.Bool("created", created))
	return nil
}

// migrate applies every pending embedded migration.
func migrate(ctx context.Context, cfg *config.Settings, wait time.Duration, log *zap.Logger) error {
	db, err := database.Open(database.WithDatabase(cfg.Database), database.OptionsFrom(cfg.Database))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.WaitReady(ctx, db, wait, log); err != nil {
		return err
	}
	applied, err := database.Migrate(ctx, db, log)
	if err != nil {
		return err
	}
	log.Info("migrate finished", zap.Strings("applied", applied))
	return nil
}
