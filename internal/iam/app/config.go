package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/phoenixiam/phoenix/internal/iam/service"
	"github.com/phoenixiam/phoenix/pkg/bruteforce"
	"github.com/phoenixiam/phoenix/pkg/jwtx"
	"github.com/phoenixiam/phoenix/pkg/keyring"
)

type Config struct {
	Issuer     string        // Required: issuer claim for tokens
	Audiences  []string      // Audience claim(s) for issued tokens
	AccessTTL  time.Duration // Access token lifetime (default: 15m)
	CodeTTL    time.Duration // Authorization code lifetime (default: 2m)
	RolesClaim string        // JWT claim name carrying roles (default: "groups")
	Realm      string        // WWW-Authenticate realm (default: "phoenix")

	KeyLifetime time.Duration // Signing window per keypair (default: 24h)
	KeyPoolSize int           // Number of simultaneously signable keys (default: 3)

	RoleMap      string // Bit-to-name mapping, e.g. "1:user,2:admin"
	DatabaseFile string // Path to SQLite database file (default: ./iam.db)
	PepperFile   string // Path to the password pepper file (default: ./pepper)

	// First-run seed; the whole block is skipped when tenant or admin
	// credentials are unset.
	BootstrapTenant        string
	BootstrapTenantName    string
	BootstrapRedirectURI   string
	BootstrapScopes        []string
	BootstrapAdminUser     string
	BootstrapAdminPassword string
	BootstrapAdminRoleMask uint64

	Guard bruteforce.Config // Login guard overrides; zero values keep defaults

	Env                 string // Environment (dev, staging, prod) (default: dev)
	LogLevel            string // Log level (debug, info, warn, error) (default: info)
	LogFormat           string // Log format (json, text) (default: json)
	Port                int    // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:     os.Getenv("IAM_ISSUER"),
		Audiences:  getEnvListOrDefault("IAM_AUDIENCES", nil),
		AccessTTL:  getEnvDurationOrDefault("IAM_ACCESS_TOKEN_TTL", 15*time.Minute),
		CodeTTL:    getEnvDurationOrDefault("IAM_CODE_TTL", service.DefaultCodeTTL),
		RolesClaim: getEnvOrDefault("IAM_ROLES_CLAIM", jwtx.DefaultRolesClaim),
		Realm:      getEnvOrDefault("IAM_REALM", "phoenix"),

		KeyLifetime: getEnvDurationOrDefault("IAM_KEY_LIFETIME", 24*time.Hour),
		KeyPoolSize: getEnvIntOrDefault("IAM_KEY_POOL_SIZE", keyring.DefaultPoolSize),

		RoleMap:      getEnvOrDefault("IAM_ROLE_MAP", "1:user,2:admin"),
		DatabaseFile: getEnvOrDefault("IAM_DATABASE_FILE", "iam.db"),
		PepperFile:   getEnvOrDefault("IAM_PEPPER_FILE", "pepper"),

		BootstrapTenant:        os.Getenv("IAM_BOOTSTRAP_TENANT"),
		BootstrapTenantName:    os.Getenv("IAM_BOOTSTRAP_TENANT_NAME"),
		BootstrapRedirectURI:   os.Getenv("IAM_BOOTSTRAP_REDIRECT_URI"),
		BootstrapScopes:        getEnvListOrDefault("IAM_BOOTSTRAP_SCOPES", []string{"openid"}),
		BootstrapAdminUser:     os.Getenv("IAM_BOOTSTRAP_ADMIN_USERNAME"),
		BootstrapAdminPassword: os.Getenv("IAM_BOOTSTRAP_ADMIN_PASSWORD"),
		BootstrapAdminRoleMask: getEnvUintOrDefault("IAM_BOOTSTRAP_ADMIN_ROLE_MASK", 2),

		Guard: bruteforce.Config{
			MaxFailsPerUser: getEnvIntOrDefault("IAM_LOGIN_MAX_FAILS_PER_USER_IP", 0),
			MaxFailsPerIP:   getEnvIntOrDefault("IAM_LOGIN_MAX_FAILS_PER_IP", 0),
			Window:          getEnvDurationOrDefault("IAM_LOGIN_WINDOW", 0),
			Block:           getEnvDurationOrDefault("IAM_LOGIN_BLOCK_DURATION", 0),
		},

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if cfg.Issuer == "" {
		cfg.Issuer = "phoenix-iam"
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvUintOrDefault(key string, defaultValue uint64) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
		return uintValue
	}

	return defaultValue
}

// getEnvListOrDefault splits a comma-separated list, trimming whitespace.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Accept Go duration syntax (e.g. "15m", "2h") or integer seconds.
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
