// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/parley/internal/app/system/limits"
	"github.com/dalemusser/parley/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for parley.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, base_url, etc.
//   - Environment variables: PARLEY_MONGO_URI, PARLEY_BASE_URL, etc.
//   - Command-line flags: --mongo_uri, --base_url, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "chat_app", Desc: "MongoDB database name"},
	{Name: "base_url", Default: "http://localhost:5000", Desc: "Public base URL used in attachment links"},

	// Attachments
	{Name: "upload_dir", Default: "./uploads", Desc: "Directory for uploaded attachments"},
	{Name: "upload_max_bytes", Default: int(limits.MaxUploadBytes), Desc: "Maximum multipart request size in bytes"},
	{Name: "upload_sweep_interval", Default: "1h", Desc: "How often to remove unreferenced uploads (0 disables)"},
	{Name: "upload_sweep_grace", Default: "24h", Desc: "Minimum age of an unreferenced upload before removal"},

	// Tokens
	{Name: "jwt_access_secret", Default: "", Desc: "HMAC secret for access tokens (required)"},
	{Name: "jwt_refresh_secret", Default: "", Desc: "HMAC secret for refresh tokens (required)"},
	{Name: "access_token_ttl", Default: "15m", Desc: "Access token lifetime (e.g., 15m)"},
	{Name: "refresh_token_ttl", Default: "168h", Desc: "Refresh token lifetime (e.g., 168h)"},

	// Refresh cookie
	{Name: "cookie_hash_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Refresh cookie signing key (must be strong in production)"},
	{Name: "cookie_block_key", Default: "", Desc: "Refresh cookie encryption key: 16, 24 or 32 bytes, blank to disable"},

	// Redis fan-out
	{Name: "redis_addr", Default: "", Desc: "Redis address for cross-instance notifications (blank disables)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	// Per-operation timeouts (0 keeps the built-in default)
	{Name: "timeout_ping", Default: "2s", Desc: "Timeout for health checks and pings"},
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-document reads and writes"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for conversation and directory queries"},
	{Name: "timeout_long", Default: "30s", Desc: "Timeout for startup, index builds and sweeps"},

	{Name: "cors_origins", Default: "http://localhost:3000", Desc: "Comma-separated browser origins allowed to call the API"},
	{Name: "seed_demo_users", Default: false, Desc: "Insert demo users when the users collection is empty"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// environment variables (WAFFLE_* for core, PARLEY_* for app) and flags
// with precedence: flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "PARLEY", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),
		BaseURL:       strings.TrimRight(appValues.String("base_url"), "/"),

		UploadDir:      appValues.String("upload_dir"),
		UploadMaxBytes: int64(appValues.Int("upload_max_bytes")),

		UploadSweepInterval: appValues.Duration("upload_sweep_interval", time.Hour),
		UploadSweepGrace:    appValues.Duration("upload_sweep_grace", 24*time.Hour),

		JWTAccessSecret:  appValues.String("jwt_access_secret"),
		JWTRefreshSecret: appValues.String("jwt_refresh_secret"),
		AccessTokenTTL:   appValues.Duration("access_token_ttl", 15*time.Minute),
		RefreshTokenTTL:  appValues.Duration("refresh_token_ttl", 7*24*time.Hour),

		CookieHashKey:  appValues.String("cookie_hash_key"),
		CookieBlockKey: appValues.String("cookie_block_key"),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		Timeouts: timeouts.Config{
			Ping:   appValues.Duration("timeout_ping", timeouts.DefaultPing),
			Short:  appValues.Duration("timeout_short", timeouts.DefaultShort),
			Medium: appValues.Duration("timeout_medium", timeouts.DefaultMedium),
			Long:   appValues.Duration("timeout_long", timeouts.DefaultLong),
		},

		CORSOrigins:   splitList(appValues.String("cors_origins")),
		SeedDemoUsers: appValues.Bool("seed_demo_users"),
	}

	return coreCfg, appCfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateConfig performs app-specific config validation.
//
// It checks the MongoDB URI format before any connection is attempted and
// refuses to start without token secrets. On success the configured
// timeouts are installed so ConnectDB and the handlers see them.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if err := validateAppConfig(appCfg); err != nil {
		return err
	}
	timeouts.Configure(appCfg.Timeouts)
	logger.Debug("timeouts configured",
		zap.Duration("ping", timeouts.Ping()),
		zap.Duration("short", timeouts.Short()),
		zap.Duration("medium", timeouts.Medium()),
		zap.Duration("long", timeouts.Long()))
	return nil
}

func validateAppConfig(appCfg AppConfig) error {
	var errs []error
	if appCfg.MongoDatabase == "" {
		errs = append(errs, errors.New("mongo_database is required"))
	}
	if appCfg.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	}
	if appCfg.UploadDir == "" {
		errs = append(errs, errors.New("upload_dir is required"))
	}
	if appCfg.UploadMaxBytes <= 0 {
		errs = append(errs, errors.New("upload_max_bytes must be positive"))
	}
	if appCfg.UploadSweepInterval < 0 {
		errs = append(errs, errors.New("upload_sweep_interval must not be negative"))
	}
	if appCfg.UploadSweepInterval > 0 && appCfg.UploadSweepGrace < time.Minute {
		errs = append(errs, errors.New("upload_sweep_grace must be at least 1m"))
	}
	if appCfg.JWTAccessSecret == "" || appCfg.JWTRefreshSecret == "" {
		errs = append(errs, errors.New("jwt_access_secret and jwt_refresh_secret are required"))
	} else if appCfg.JWTAccessSecret == appCfg.JWTRefreshSecret {
		errs = append(errs, errors.New("jwt_access_secret and jwt_refresh_secret must differ"))
	}
	if appCfg.AccessTokenTTL <= 0 || appCfg.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if len(appCfg.CookieHashKey) < 32 {
		errs = append(errs, errors.New("cookie_hash_key must be at least 32 bytes"))
	}
	switch len(appCfg.CookieBlockKey) {
	case 0, 16, 24, 32:
	default:
		errs = append(errs, errors.New("cookie_block_key must be 16, 24 or 32 bytes"))
	}
	t := appCfg.Timeouts
	if t.Ping < 0 || t.Short < 0 || t.Medium < 0 || t.Long < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if appCfg.RedisDB < 0 {
		errs = append(errs, errors.New("redis_db must not be negative"))
	}
	return errors.Join(errs...)
}
