// Package server wires the chat relay together: it opens the database,
// applies migrations, builds the services and runs the REST API and the gRPC
// health endpoint until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nazarriya/chatrelay/internal/cryptox"
	"github.com/nazarriya/chatrelay/internal/logging"
	"github.com/nazarriya/chatrelay/internal/server/auth"
	"github.com/nazarriya/chatrelay/internal/server/config"
	"github.com/nazarriya/chatrelay/internal/server/httpapi"
	"github.com/nazarriya/chatrelay/internal/server/objectstore"
	"github.com/nazarriya/chatrelay/internal/server/relay"
	"github.com/nazarriya/chatrelay/internal/server/repositories/repomanager"
	"github.com/nazarriya/chatrelay/internal/server/services"

	gs "github.com/nazarriya/chatrelay/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	users    *services.UserService
	sessions *services.SessionService
}

// openDB is replaced in tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	hasher, err := cryptox.NewPasswordHasher(c.PasswordAlgorithm, c.BcryptCost)
	if err != nil {
		return nil, err
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	tokens := auth.NewTokenService([]byte(c.SecretKey), c.AccessTokenLifetime())
	us, err := services.NewUserService(db, rm, tokens, hasher, c)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var store objectstore.Store
	if c.ExportsEnabled() {
		store = objectstore.NewS3Store(c)
	}
	gateway := relay.NewHTTPGateway(c.RelayURL, c.RelayTimeout)
	ss := services.NewSessionService(db, rm, gateway, store, logger.With("module", "sessions"))

	return &App{config: c, logger: logger, db: db, users: us, sessions: ss}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	api := httpapi.New(app.users, app.sessions, app.db, app.logger.With("module", "http"))
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.db, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or ctx is cancelled, then drains both
// servers and closes the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.EndpointAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
