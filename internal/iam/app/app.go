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

	"github.com/phoenixiam/phoenix/internal/iam/domain"
	httpapi "github.com/phoenixiam/phoenix/internal/iam/http"
	"github.com/phoenixiam/phoenix/internal/iam/service"
	"github.com/phoenixiam/phoenix/internal/iam/store"
	"github.com/phoenixiam/phoenix/internal/iam/store/drivers/sqlite"
	"github.com/phoenixiam/phoenix/pkg/authcode"
	"github.com/phoenixiam/phoenix/pkg/bruteforce"
	"github.com/phoenixiam/phoenix/pkg/cryptox"
	"github.com/phoenixiam/phoenix/pkg/jwtx"
	"github.com/phoenixiam/phoenix/pkg/keyring"
	"github.com/phoenixiam/phoenix/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the credential engine with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	ring    *keyring.Ring
	roleMap domain.RoleMap

	tokenService        *service.TokenService
	authenticateService *service.AuthenticateService
	bootstrapService    *service.BootstrapService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "phoenix-iam",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(app.cfg.PepperFile)

	roleMap, err := domain.ParseRoleMap(cfg.RoleMap)
	if err != nil {
		return nil, fmt.Errorf("invalid IAM_ROLE_MAP: %w", err)
	}
	app.roleMap = roleMap

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	// Verification grace must cover the longest-lived token a key can
	// sign, which is the refresh token.
	tokenTTL := cfg.AccessTTL
	if service.RefreshTokenTTL > tokenTTL {
		tokenTTL = service.RefreshTokenTTL
	}
	app.ring = keyring.New(cfg.KeyPoolSize, cfg.KeyLifetime, tokenTTL)

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run seeds the store if needed, starts the server and blocks until
// shutdown is requested.
func (app *Application) Run() error {
	ctx := slogx.WithContext(context.Background(), app.logger)
	if err := app.bootstrapService.Seed(ctx, bootstrapData(app.cfg)); err != nil {
		return fmt.Errorf("bootstrap seed failed: %w", err)
	}

	app.logger.Info("iam service starting", "port", app.cfg.Port, "version", BuildVersion)

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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down iam service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("iam service stopped")
	return nil
}

// bootstrapData maps the configured seed into the bootstrap service's input.
func bootstrapData(cfg Config) service.BootstrapData {
	return service.BootstrapData{
		TenantID:      cfg.BootstrapTenant,
		TenantName:    cfg.BootstrapTenantName,
		RedirectURI:   cfg.BootstrapRedirectURI,
		Scopes:        cfg.BootstrapScopes,
		AdminUsername: cfg.BootstrapAdminUser,
		AdminPassword: cfg.BootstrapAdminPassword,
		AdminRoleMask: cfg.BootstrapAdminRoleMask,
	}
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
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

func (app *Application) initServices() error {
	// Codes are sealed with a per-process key; they live two minutes and
	// never need to survive a restart.
	codes, err := authcode.NewEphemeral()
	if err != nil {
		return fmt.Errorf("failed to initialize code codec: %w", err)
	}

	app.tokenService = &service.TokenService{
		Store: app.db,
		Codec: jwtx.NewCodec(app.ring, jwtx.CodecOptions{
			Issuer:     app.cfg.Issuer,
			Audiences:  app.cfg.Audiences,
			RolesClaim: app.cfg.RolesClaim,
		}),
		Codes:     codes,
		RoleMap:   app.roleMap,
		Issuer:    app.cfg.Issuer,
		Audiences: app.cfg.Audiences,
		AccessTTL: app.cfg.AccessTTL,
	}

	app.authenticateService = &service.AuthenticateService{
		Store:   app.db,
		Guard:   bruteforce.New(app.cfg.Guard),
		Codes:   codes,
		CodeTTL: app.cfg.CodeTTL,
	}

	app.bootstrapService = &service.BootstrapService{Store: app.db}
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.ring,
		app.cfg.Realm,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.TokenService = app.tokenService
	router.AuthenticateService = app.authenticateService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
