package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load (TTU_DATABASE_URL, ...).
const EnvPrefix = "TTU"

// MinSessionSecretLength is the shortest HMAC secret accepted for session tokens.
const MinSessionSecretLength = 32

// Environment names
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// Config holds the application configuration.
// It is built once at startup and treated as read-only afterwards.
type Config struct {
	// Database connection string (DSN). postgres:// or a SQLite path.
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Public base URL of the API
	ServerURL string

	// development or production
	Environment string

	// Enable debug logging
	Debug bool

	// Apply pending migrations when the server starts
	AutoMigrate bool

	Logging       LoggingConfig
	Session       SessionConfig
	Anonymous     AnonymousConfig
	Auth          AuthConfig
	Bootstrap     BootstrapConfig
	CORS          CORSConfig
	Observability ObservabilityConfig

	// ExternalIdP is nil when no external OIDC issuer is configured.
	ExternalIdP *ExternalIdPConfig
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// SessionConfig configures the local HMAC session token.
type SessionConfig struct {
	// Secret is the HMAC signing key. Required.
	Secret string
	// TTL is the lifetime of every locally issued session token,
	// including those minted by the SSO callback.
	TTL time.Duration
	// Issuer is written to and required in the iss claim.
	Issuer string
}

// AnonymousConfig configures the anonymous like cookie.
type AnonymousConfig struct {
	CookieTTL time.Duration
}

// AuthConfig holds password and request-guard settings.
type AuthConfig struct {
	// DevBypass forces every authorization check to allow with a synthetic admin.
	// Refused when Environment is production.
	DevBypass bool

	BcryptCost int

	// LoginRateLimit requests per LoginRateWindow per client IP on POST /login
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

// BootstrapConfig lists the admin accounts seeded at startup.
type BootstrapConfig struct {
	Admins []AdminAccount
}

// AdminAccount is a seeded admin. Accounts without a password are skipped.
type AdminAccount struct {
	Username string
	Password string
}

// CORSConfig lists browser origins allowed to call the API with credentials.
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig configures OpenTelemetry export.
type ObservabilityConfig struct {
	OTLPEndpoint   string
	OTLPProtocol   string
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// ExternalIdPConfig holds the external OIDC issuer (Auth0, Keycloak, ...) whose
// access tokens are accepted on the external-token routes.
//
// Issuer and Audience are required for token validation. ClientID, ClientSecret
// and RedirectURI are only needed for the browser SSO code flow.
type ExternalIdPConfig struct {
	Issuer   string
	Audience string

	// JWKSURL overrides discovery via {issuer}/.well-known/openid-configuration.
	JWKSURL string

	// JWKSCacheTTL bounds how long a fetched key set is trusted.
	JWKSCacheTTL time.Duration

	// FetchTimeout applies to each discovery or JWKS request.
	FetchTimeout time.Duration

	// FetchRetries is the number of extra attempts after a network failure.
	FetchRetries int

	ClientID          string
	ClientSecret      string
	RedirectURI       string
	PostLoginRedirect string
	Scopes            []string
}

// SSOEnabled reports whether the browser code flow can be offered.
func (c *ExternalIdPConfig) SSOEnabled() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

// IsProduction reports whether the service runs with production hardening.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

func setDefaults() {
	viper.SetDefault("server_addr", "localhost:8080")
	viper.SetDefault("server_url", "http://localhost:8080")
	viper.SetDefault("environment", EnvironmentDevelopment)
	viper.SetDefault("debug", false)
	viper.SetDefault("auto_migrate", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("session.ttl", 7*24*time.Hour)
	viper.SetDefault("session.issuer", "twothumbsup")

	viper.SetDefault("anonymous.cookie_ttl", 365*24*time.Hour)

	viper.SetDefault("auth.dev_bypass", false)
	viper.SetDefault("auth.bcrypt_cost", 12)
	viper.SetDefault("auth.login_rate_limit", 10)
	viper.SetDefault("auth.login_rate_window", time.Minute)

	viper.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})

	viper.SetDefault("external_idp.jwks_cache_ttl", 15*time.Minute)
	viper.SetDefault("external_idp.fetch_timeout", 5*time.Second)
	viper.SetDefault("external_idp.fetch_retries", 2)
	viper.SetDefault("external_idp.post_login_redirect", "/")

	viper.SetDefault("observability.otlp_protocol", "http/protobuf")
	viper.SetDefault("observability.service_name", "twothumbsup")
	viper.SetDefault("observability.service_version", "dev")
}

// Load reads configuration from the global viper instance: an optional config
// file already read by the caller, TTU_ prefixed environment variables, and
// any bound command-line flags. It fails when a required setting is missing or
// when the combination of settings would leave requests with undefined
// security behavior.
func Load() (*Config, error) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	cfg := &Config{
		DatabaseURL: viper.GetString("database_url"),
		ServerAddr:  viper.GetString("server_addr"),
		ServerURL:   viper.GetString("server_url"),
		Environment: strings.ToLower(viper.GetString("environment")),
		Debug:       viper.GetBool("debug"),
		AutoMigrate: viper.GetBool("auto_migrate"),
		Logging: LoggingConfig{
			Level:  viper.GetString("logging.level"),
			Format: viper.GetString("logging.format"),
		},
		Session: SessionConfig{
			Secret: viper.GetString("session.secret"),
			TTL:    viper.GetDuration("session.ttl"),
			Issuer: viper.GetString("session.issuer"),
		},
		Anonymous: AnonymousConfig{
			CookieTTL: viper.GetDuration("anonymous.cookie_ttl"),
		},
		Auth: AuthConfig{
			DevBypass:       viper.GetBool("auth.dev_bypass"),
			BcryptCost:      viper.GetInt("auth.bcrypt_cost"),
			LoginRateLimit:  viper.GetInt("auth.login_rate_limit"),
			LoginRateWindow: viper.GetDuration("auth.login_rate_window"),
		},
		Bootstrap: BootstrapConfig{
			Admins: []AdminAccount{
				{
					Username: viper.GetString("bootstrap.admin1.username"),
					Password: viper.GetString("bootstrap.admin1.password"),
				},
				{
					Username: viper.GetString("bootstrap.admin2.username"),
					Password: viper.GetString("bootstrap.admin2.password"),
				},
			},
		},
		CORS: CORSConfig{
			AllowedOrigins: getStringList("cors.allowed_origins"),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint:   viper.GetString("observability.otlp_endpoint"),
			OTLPProtocol:   viper.GetString("observability.otlp_protocol"),
			OTLPInsecure:   viper.GetBool("observability.otlp_insecure"),
			ServiceName:    viper.GetString("observability.service_name"),
			ServiceVersion: viper.GetString("observability.service_version"),
		},
		ExternalIdP: loadExternalIdPConfig(),
	}
	cfg.Observability.Environment = cfg.Environment

	if cfg.Debug {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants Load guarantees. It is exported so tests and
// callers that build a Config by hand get the same startup checks.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET is required: session tokens cannot be verified without it")
	}
	if len(c.Session.Secret) < MinSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes", MinSessionSecretLength)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	switch c.Environment {
	case EnvironmentDevelopment, EnvironmentProduction:
	default:
		return fmt.Errorf("ENVIRONMENT must be %q or %q, got %q", EnvironmentDevelopment, EnvironmentProduction, c.Environment)
	}

	if c.Auth.DevBypass && c.IsProduction() {
		return fmt.Errorf("AUTH_DEV_BYPASS cannot be enabled in production")
	}

	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("AUTH_BCRYPT_COST must be between 4 and 31")
	}

	if c.Anonymous.CookieTTL <= 0 {
		return fmt.Errorf("ANONYMOUS_COOKIE_TTL must be positive")
	}

	if idp := c.ExternalIdP; idp != nil {
		if idp.Audience == "" {
			return fmt.Errorf("EXTERNAL_IDP_AUDIENCE is required when EXTERNAL_IDP_ISSUER is set")
		}
		if idp.FetchTimeout <= 0 {
			return fmt.Errorf("EXTERNAL_IDP_FETCH_TIMEOUT must be positive")
		}
		if idp.FetchRetries < 0 {
			return fmt.Errorf("EXTERNAL_IDP_FETCH_RETRIES cannot be negative")
		}
		ssoFields := 0
		for _, v := range []string{idp.ClientID, idp.ClientSecret, idp.RedirectURI} {
			if v != "" {
				ssoFields++
			}
		}
		if ssoFields != 0 && ssoFields != 3 {
			return fmt.Errorf("EXTERNAL_IDP_CLIENT_ID, EXTERNAL_IDP_CLIENT_SECRET and EXTERNAL_IDP_REDIRECT_URI must be set together")
		}
	}

	return nil
}

// loadExternalIdPConfig returns nil if no external issuer is configured.
func loadExternalIdPConfig() *ExternalIdPConfig {
	issuer := viper.GetString("external_idp.issuer")
	if issuer == "" {
		return nil
	}

	scopes := getStringList("external_idp.scopes")
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}

	return &ExternalIdPConfig{
		Issuer:            issuer,
		Audience:          viper.GetString("external_idp.audience"),
		JWKSURL:           viper.GetString("external_idp.jwks_url"),
		JWKSCacheTTL:      viper.GetDuration("external_idp.jwks_cache_ttl"),
		FetchTimeout:      viper.GetDuration("external_idp.fetch_timeout"),
		FetchRetries:      viper.GetInt("external_idp.fetch_retries"),
		ClientID:          viper.GetString("external_idp.client_id"),
		ClientSecret:      viper.GetString("external_idp.client_secret"),
		RedirectURI:       viper.GetString("external_idp.redirect_uri"),
		PostLoginRedirect: viper.GetString("external_idp.post_login_redirect"),
		Scopes:            scopes,
	}
}

// getStringList accepts either a YAML list or a comma separated env value.
func getStringList(key string) []string {
	switch v := viper.Get(key).(type) {
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return viper.GetStringSlice(key)
	}
}
