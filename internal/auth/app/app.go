package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/codec"
	httpapi "github.com/halcyonlabs/keygate/internal/auth/http"
	"github.com/halcyonlabs/keygate/internal/auth/service"
	"github.com/halcyonlabs/keygate/internal/auth/store"
	"github.com/halcyonlabs/keygate/internal/auth/store/drivers/sqlite"
	"github.com/halcyonlabs/keygate/pkg/cryptox"
	"github.com/halcyonlabs/keygate/pkg/jwtx"
	"github.com/halcyonlabs/keygate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the authorization server with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	keyManager *jwtx.KeyManager
	codec      *codec.Codec

	// Services
	tokenServer         *service.Server
	authorizeService    *service.AuthorizeService
	revocationService   *service.RevocationService
	resourceValidator   *service.ResourceValidator
	identity            service.IdentityProvider
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "keygate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set the master key path for sealing grant metadata at rest
	if cfg.MasterKeyPath != "" {
		cryptox.SetMasterKeyPath(cfg.MasterKeyPath)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keyManager, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		RSABits:   cfg.RSABits,
		NumKeys:   cfg.NumKeys,
	})
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager
	app.codec = codec.New(keyManager, cfg.Issuer, cfg.AccessTokenTTL)

	if err := seed(context.Background(), app.db, cfg.Seed, app.logger); err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to seed database: %w", err)
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("keygate starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down keygate...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("keygate stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	app.identity = &service.StoreIdentityProvider{Store: app.db}

	tokenServer, err := service.NewServer(app.db, app.codec, app.identity, service.Config{
		AuthorizationCode: service.AuthorizationCodeConfig{
			CodeTTL:    app.cfg.AuthorizationCodeTTL,
			RefreshTTL: app.cfg.RefreshTokenTTL,
		},
		Password: service.PasswordConfig{
			RefreshTTL: app.cfg.RefreshTokenTTL,
		},
		RefreshToken: service.RefreshTokenConfig{
			RefreshTTL:           app.cfg.RefreshTokenTTL,
			RevokeAccessOnRotate: app.cfg.RevokeAccessOnRotate,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token server: %w", err)
	}
	app.tokenServer = tokenServer

	app.authorizeService = &service.AuthorizeService{
		Store:   app.db,
		Codec:   app.codec,
		CodeTTL: app.cfg.AuthorizationCodeTTL,
	}
	app.revocationService = &service.RevocationService{Store: app.db, Codec: app.codec}
	app.resourceValidator = &service.ResourceValidator{Store: app.db, Codec: app.codec}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.cfg.Issuer,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.TokenService = app.tokenServer
	router.AuthorizeService = app.authorizeService
	router.RevocationService = app.revocationService
	router.ResourceValidator = app.resourceValidator
	router.Identity = app.identity
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
