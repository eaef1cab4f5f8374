package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Postgres PostgresConfig `env:",prefix=POSTGRES_"`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	Session  SessionConfig  `env:",prefix=SESSION_"`
	OAuth    OAuthConfig    `env:",prefix=OAUTH_"`
	Guest    GuestConfig    `env:",prefix=GUEST_"`
	Security SecurityConfig `env:",prefix="`
	CORS     CORSConfig     `env:",prefix=CORS_"`
	Env      string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=identity_service"`
	Password string `env:"PASSWORD,default=identity_service_password"`
	DBName   string `env:"DB,default=identity_service_db"`
	SSLMode  string `env:"SSLMODE,default=disable"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

// SessionConfig covers the signed session token and its cookie.
// TTL is sliding: the token is re-issued on activity once less than
// half of it remains, never extended in place.
type SessionConfig struct {
	Secret       string   `env:"SECRET,required"`
	TTL          Duration `env:"TTL,default=7d"`
	CookieName   string   `env:"COOKIE_NAME,default=session_token"`
	CookieDomain string   `env:"COOKIE_DOMAIN,default="`
}

type OAuthConfig struct {
	RedirectBaseURL      string            `env:"REDIRECT_BASE_URL,default=http://localhost:8080"`
	StateTTL             Duration          `env:"STATE_TTL,default=10m"`
	RequireVerifiedEmail bool              `env:"REQUIRE_VERIFIED_EMAIL,default=false"`
	ExchangeTimeout      Duration          `env:"EXCHANGE_TIMEOUT,default=5s"`
	Google               OAuthClientConfig `env:",prefix=GOOGLE_"`
	GitHub               OAuthClientConfig `env:",prefix=GITHUB_"`
}

type OAuthClientConfig struct {
	ClientID     string `env:"CLIENT_ID,default="`
	ClientSecret string `env:"CLIENT_SECRET,default="`
}

type GuestConfig struct {
	MessageQuota    int      `env:"MESSAGE_QUOTA,default=3"`
	MaxAge          Duration `env:"MAX_AGE,default=30d"`
	SweepInterval   Duration `env:"SWEEP_INTERVAL,default=1h"`
	MigrateMessages int      `env:"MIGRATE_MESSAGES,default=10"`
	CookieName      string   `env:"COOKIE_NAME,default=guest_id"`
}

type SecurityConfig struct {
	BCryptCost         int      `env:"BCRYPT_COST,default=12"`
	RateLimitRequests  int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow    Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
	LoginMaxFailures   int      `env:"LOGIN_MAX_FAILURES,default=5"`
	LoginFailureWindow Duration `env:"LOGIN_FAILURE_WINDOW,default=15m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// RedirectURL returns the callback URL registered with the given provider.
// It must match the provider console config exactly, base path included.
func (o OAuthConfig) RedirectURL(provider string) string {
	return fmt.Sprintf("%s/api/v1/auth/oauth/%s/callback", o.RedirectBaseURL, provider)
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(config.Session.Secret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters long")
	}

	if config.Guest.MessageQuota < 1 {
		return nil, fmt.Errorf("GUEST_MESSAGE_QUOTA must be positive")
	}

	return &config, nil
}
