// internal/app/bootstrap/appconfig.go
package bootstrap

import (
	"time"

	"github.com/dalemusser/parley/internal/app/system/timeouts"
)

// AppConfig holds service-specific configuration for parley.
//
// These values come from environment variables (PARLEY_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// covers the framework-level settings: ports, TLS, logging, request limits.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI      string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase string // Database name within MongoDB

	// Public URL of this server; attachment links are built from it.
	BaseURL string // e.g., "http://localhost:5000"

	// Attachment storage
	UploadDir      string // Directory holding uploaded files
	UploadMaxBytes int64  // Largest accepted multipart body

	// Orphaned upload sweep. A zero interval disables it.
	UploadSweepInterval time.Duration
	UploadSweepGrace    time.Duration

	// Token signing
	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	// Refresh cookie codec (gorilla/securecookie). The block key must be
	// 16, 24 or 32 bytes; blank disables encryption.
	CookieHashKey  string
	CookieBlockKey string

	// Optional Redis for fan-out across instances. Blank address disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Per-operation timeouts. Zero fields keep the defaults.
	Timeouts timeouts.Config

	// Browser origins allowed by CORS and the WebSocket handshake.
	CORSOrigins []string

	// Insert the demo accounts when the users collection is empty.
	SeedDemoUsers bool
}
