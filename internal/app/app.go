package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chatterhq/identity-service/internal/config"
	"github.com/chatterhq/identity-service/internal/handler"
	"github.com/chatterhq/identity-service/internal/repository"
	"github.com/chatterhq/identity-service/internal/service"
	"github.com/chatterhq/identity-service/pkg/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra   Infrastructure
	config  *config.Config
	router  *gin.Engine
	server  *http.Server
	tracker *service.GuestTracker
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	repos := repository.NewRepositories(infra.Postgres())

	codec := service.NewTokenCodec(cfg.Session.Secret, cfg.Session.TTL.Duration)
	sessions := service.NewSessionStore(repos.Session, codec, infra.Logger())

	lockout := service.NewLoginLockout(infra.Redis(), cfg.Security.LoginMaxFailures, cfg.Security.LoginFailureWindow.Duration)
	credentials := service.NewCredentialAuthenticator(repos.User, lockout, cfg.Security.BCryptCost, infra.Logger())

	stateStore := service.NewOAuthStateStore(infra.Redis())
	oauth := service.NewOAuthBroker(
		stateStore,
		repos.User,
		repos.Account,
		cfg.OAuth.StateTTL.Duration,
		cfg.OAuth.RequireVerifiedEmail,
		infra.Logger(),
	)
	registerProviders(oauth, cfg, infra.Logger())

	tracker := service.NewGuestTracker(repos.Guest, cfg.Guest.MessageQuota, cfg.Guest.MaxAge.Duration, infra.Logger())
	migration := service.NewMigrationService(repos.Migration, cfg.Guest.MigrateMessages, infra.Logger())

	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	cookies := handler.CookiePolicy{
		SessionName: cfg.Session.CookieName,
		GuestName:   cfg.Guest.CookieName,
		Domain:      cfg.Session.CookieDomain,
		Secure:      cfg.Env == "production",
		SessionTTL:  cfg.Session.TTL.Duration,
		GuestTTL:    cfg.Guest.MaxAge.Duration,
	}

	authHandler := handler.NewAuthHandler(credentials, sessions, oauth, migration, repos.User, repos.Chat, cookies, infra.Logger())
	guestHandler := handler.NewGuestHandler(tracker, cookies, infra.Logger())

	router := gin.Default()
	router.Use(otelgin.Middleware("identity-service"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))
	router.Use(handler.IdentityMiddleware(sessions, cookies, infra.Logger()))

	setupRoutes(router, cfg, authHandler, guestHandler, rateLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:   infra,
		config:  cfg,
		router:  router,
		server:  srv,
		tracker: tracker,
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// registerProviders wires up every OAuth provider with credentials
// configured. Providers without a client id simply stay unregistered
// and their routes answer 404.
func registerProviders(oauth *service.OAuthBroker, cfg *config.Config, logger *zap.Logger) {
	timeout := cfg.OAuth.ExchangeTimeout.Duration

	if cfg.OAuth.Google.ClientID != "" {
		oauth.RegisterProvider(service.NewGoogleProvider(
			cfg.OAuth.Google.ClientID,
			cfg.OAuth.Google.ClientSecret,
			cfg.OAuth.RedirectURL("google"),
			timeout,
		))
		logger.Info("registered oauth provider", zap.String("provider", "google"))
	}

	if cfg.OAuth.GitHub.ClientID != "" {
		oauth.RegisterProvider(service.NewGitHubProvider(
			cfg.OAuth.GitHub.ClientID,
			cfg.OAuth.GitHub.ClientSecret,
			cfg.OAuth.RedirectURL("github"),
			timeout,
		))
		logger.Info("registered oauth provider", zap.String("provider", "github"))
	}
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	guestHandler *handler.GuestHandler,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	limited := handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", limited, authHandler.Register)
			auth.POST("/login", limited, authHandler.Login)
			auth.GET("/oauth/:provider/start", limited, authHandler.OAuthStart)
			auth.GET("/oauth/:provider/callback", limited, authHandler.OAuthCallback)
			auth.GET("/me", handler.RequireAuth(), authHandler.GetMe)
			auth.POST("/logout", handler.RequireAuth(), authHandler.Logout)
			auth.POST("/migrate-guest-session", handler.RequireAuth(), authHandler.MigrateGuest)
		}

		guest := api.Group("/guest")
		{
			guest.POST("/messages", limited, guestHandler.PostMessage)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go a.tracker.RunSweeper(sweepCtx, a.config.Guest.SweepInterval.Duration)

	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
