// Package config loads server settings from flags, the environment and an
// optional .env file. Flags win over the environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/authgate/internal/service"
	"github.com/joho/godotenv"
)

// Config is the full server configuration.
type Config struct {
	HTTPAddr string
	GRPCAddr string

	DatabaseURL string
	Migrate     bool

	JWTSecret   string
	TokenIssuer string

	CredentialMode string
	LockoutWindow  time.Duration
	LockoutMax     int
	LockoutBlock   time.Duration

	RedisAddr      string
	RedisPassword  string
	AuthRateLimit  int
	AuthRateWindow time.Duration
	AuthRateBlock  time.Duration
	HealthLimit    int

	ResendURL    string
	ResendAPIKey string
	MailFrom     string
	RedirectURL  string

	IdentityVerifyURL string
	IdentityAPIKey    string
	OutboundTimeout   time.Duration

	CORSOrigins     []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	HealthInterval  time.Duration

	SchemaName   string
	SchemaOutput string
	ExposeSchema bool

	Version string
}

// Environ returns the process environment overlaid on the given .env files.
// Missing files are ignored; real environment variables take precedence.
func Environ(files ...string) map[string]string {
	env := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if err != nil {
			continue
		}
		for k, v := range vals {
			env[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, found := strings.Cut(kv, "="); found {
			env[k] = v
		}
	}
	return env
}

// Load parses args (without the program name) on top of env.
func Load(args []string, env map[string]string) (*Config, error) {
	e := envReader{env: env}
	c := &Config{}

	fs := flag.NewFlagSet("authgate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.HTTPAddr, "http-addr", e.str("HTTP_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&c.GRPCAddr, "grpc-addr", e.str("GRPC_ADDR", ""), "gRPC health listen address (empty disables)")
	fs.StringVar(&c.DatabaseURL, "dsn", e.str("DATABASE_URL", ""), "PostgreSQL DSN")
	fs.BoolVar(&c.Migrate, "migrate", e.boolean("MIGRATE", false), "apply migrations on start")
	fs.StringVar(&c.JWTSecret, "jwt-secret", e.str("JWT_SECRET", ""), "HS256 secret for purpose tokens")
	fs.StringVar(&c.TokenIssuer, "jwt-issuer", e.str("JWT_ISSUER", "testpapers.mu"), "iss claim of purpose tokens")

	fs.StringVar(&c.CredentialMode, "credential-mode", e.str("CREDENTIAL_MODE", service.ModeDelegated), "local or delegated")
	fs.DurationVar(&c.LockoutWindow, "lockout-window", e.duration("LOCKOUT_WINDOW", 15*time.Minute), "sign-in failure window")
	fs.IntVar(&c.LockoutMax, "lockout-max", e.integer("LOCKOUT_MAX", 5), "failures before lockout")
	fs.DurationVar(&c.LockoutBlock, "lockout-block", e.duration("LOCKOUT_BLOCK", 15*time.Minute), "lockout duration")

	fs.StringVar(&c.RedisAddr, "redis-addr", e.str("REDIS_ADDR", ""), "Redis address for rate limiting (empty disables)")
	fs.StringVar(&c.RedisPassword, "redis-password", e.str("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&c.AuthRateLimit, "auth-rate-limit", e.integer("AUTH_RATE_LIMIT", 30), "auth requests per window per client")
	fs.DurationVar(&c.AuthRateWindow, "auth-rate-window", e.duration("AUTH_RATE_WINDOW", time.Minute), "auth rate window")
	fs.DurationVar(&c.AuthRateBlock, "auth-rate-block", e.duration("AUTH_RATE_BLOCK", 5*time.Minute), "block after exceeding the auth rate")
	fs.IntVar(&c.HealthLimit, "health-rate-limit", e.integer("HEALTH_RATE_LIMIT", 60), "health checks per minute per client")

	fs.StringVar(&c.ResendURL, "resend-url", e.str("RESEND_URL", "https://api.resend.com/emails"), "email dispatch endpoint")
	fs.StringVar(&c.ResendAPIKey, "resend-key", e.str("RESEND_API_KEY", ""), "email provider API key (empty logs mail instead)")
	fs.StringVar(&c.MailFrom, "mail-from", e.str("MAIL_FROM", "TestPaper.mu <noreply@testpapers.mu>"), "sender address")
	fs.StringVar(&c.RedirectURL, "redirect-url", e.str("REDIRECT_URL", "http://localhost:3000"), "frontend base URL for email links")

	fs.StringVar(&c.IdentityVerifyURL, "identity-url", e.str("SUPABASE_TOKEN_VERIFICATION_URL", ""), "identity provider user endpoint")
	fs.StringVar(&c.IdentityAPIKey, "identity-key", e.str("SUPABASE_PUBLISHABLE", ""), "identity provider API key")
	fs.DurationVar(&c.OutboundTimeout, "outbound-timeout", e.duration("OUTBOUND_TIMEOUT", 10*time.Second), "timeout for provider calls")

	cors := fs.String("cors-origins", e.str("CORS_ORIGINS", "*"), "comma-separated allowed origins")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", e.duration("REQUEST_TIMEOUT", 30*time.Second), "per-request timeout")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", e.duration("SHUTDOWN_TIMEOUT", 5*time.Second), "graceful shutdown timeout")
	fs.DurationVar(&c.HealthInterval, "health-interval", e.duration("HEALTH_INTERVAL", 15*time.Second), "gRPC health probe interval")

	fs.StringVar(&c.SchemaName, "schema", e.str("DB_SCHEMA", "public"), "schema described by the introspection endpoint")
	fs.StringVar(&c.SchemaOutput, "schema-output", e.str("SCHEMA_OUTPUT", ""), "file receiving the schema overview")
	fs.BoolVar(&c.ExposeSchema, "expose-schema", e.boolean("EXPOSE_SCHEMA", false), "mount the schema introspection routes")
	fs.StringVar(&c.Version, "version", e.str("APP_VERSION", "dev"), "reported build version")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if e.err != nil {
		return nil, e.err
	}
	c.CORSOrigins = splitList(*cors)
	return c, c.Validate()
}

// Validate checks required settings.
func (c *Config) Validate() error {
	var problems []error
	if c.DatabaseURL == "" {
		problems = append(problems, errors.New("DATABASE_URL (-dsn) is required"))
	}
	if c.JWTSecret == "" {
		problems = append(problems, errors.New("JWT_SECRET (-jwt-secret) is required"))
	}
	switch c.CredentialMode {
	case service.ModeLocal, service.ModeDelegated:
	default:
		problems = append(problems, fmt.Errorf("credential mode %q: want %s or %s", c.CredentialMode, service.ModeLocal, service.ModeDelegated))
	}
	if c.IdentityVerifyURL == "" {
		problems = append(problems, errors.New("SUPABASE_TOKEN_VERIFICATION_URL (-identity-url) is required"))
	}
	return errors.Join(problems...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envReader reads typed defaults; the first parse error is kept.
type envReader struct {
	env map[string]string
	err error
}

func (r *envReader) str(key, def string) string {
	if v, ok := r.env[key]; ok && v != "" {
		return v
	}
	return def
}

func (r *envReader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (r *envReader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *envReader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}
