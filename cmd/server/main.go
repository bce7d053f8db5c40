package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Clark-Hu/sdqa/internal/catalogclient"
	"github.com/Clark-Hu/sdqa/internal/config"
	httpserver "github.com/Clark-Hu/sdqa/internal/http"
	"github.com/Clark-Hu/sdqa/internal/logging"
	"github.com/Clark-Hu/sdqa/internal/metrics"
	"github.com/Clark-Hu/sdqa/internal/repository"
	"github.com/Clark-Hu/sdqa/internal/sqlstore"
	"github.com/Clark-Hu/sdqa/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New("sdqa-server", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	m := metrics.NewManager()

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	deps, closeDB, err := openBackend(dbCtx, cfg, m, logger)
	if err != nil {
		logger.WithError(err).Fatal("connect database")
	}
	defer closeDB()

	if cfg.CatalogURL != "" {
		client, err := catalogclient.NewHTTPClient(cfg.CatalogURL, cfg.CatalogAPIKey, time.Duration(cfg.CatalogTimeoutSecs)*time.Second, logger)
		if err != nil {
			logger.WithError(err).Fatal("init catalog client")
		}
		deps.Catalog = client
	}
	deps.Metrics = m
	deps.Logger = logger

	server := httpserver.New(cfg, deps)

	serverErrCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.Port, "driver": cfg.DBDriver}).Info("server: listening")
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("server error")
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("graceful shutdown error")
	}
}

// openBackend connects the configured driver. Postgres goes through the
// pgx pool and repositories; sqlite and mysql go through sqlstore.
func openBackend(ctx context.Context, cfg config.Config, m *metrics.Manager, logger logrus.FieldLogger) (httpserver.Deps, func(), error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		st, err := store.New(ctx, cfg.DBURL, store.Options{
			MaxConns:               int32(cfg.DBMaxConns),
			MinConns:               int32(cfg.DBMinConns),
			MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
			MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
			ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
			StatementCacheCapacity: cfg.DBStatementCache,
			Logger:                 logger,
		})
		if err != nil {
			return httpserver.Deps{}, nil, err
		}
		m.RegisterPool(st.Stats)
		return httpserver.Deps{Backend: repository.New(st), Health: st}, st.Close, nil

	case config.DriverSQLite, config.DriverMySQL:
		dsn := cfg.DBURL
		if cfg.DBDriver == config.DriverMySQL && dsn == "" {
			dsn = sqlstore.MySQLConfig{
				User:     cfg.MySQLUser,
				Password: cfg.MySQLPassword,
				Host:     cfg.MySQLHost,
				Port:     cfg.MySQLPort,
				Database: cfg.MySQLDatabase,
			}.DSN()
		}
		st, err := sqlstore.Open(ctx, sqlstore.Driver(cfg.DBDriver), dsn, logger)
		if err != nil {
			return httpserver.Deps{}, nil, err
		}
		st.DB().SetMaxIdleConns(cfg.DBMinConns)
		st.DB().SetConnMaxLifetime(time.Duration(cfg.DBMaxLifeSecs) * time.Second)
		st.DB().SetConnMaxIdleTime(time.Duration(cfg.DBMaxIdleSecs) * time.Second)
		if cfg.DBDriver == config.DriverMySQL {
			st.DB().SetMaxOpenConns(cfg.DBMaxConns)
		}
		m.RegisterSQLDB(st.DB().DB, cfg.DBDriver)
		return httpserver.Deps{Backend: st, Health: st}, func() { _ = st.Close() }, nil
	}
	return httpserver.Deps{}, nil, errors.Errorf("unsupported driver %q", cfg.DBDriver)
}
