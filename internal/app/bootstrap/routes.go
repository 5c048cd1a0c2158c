// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	chatfeature "github.com/dalemusser/parley/internal/app/features/chat"
	healthfeature "github.com/dalemusser/parley/internal/app/features/health"
	loginfeature "github.com/dalemusser/parley/internal/app/features/login"
	realtimefeature "github.com/dalemusser/parley/internal/app/features/realtime"
	"github.com/dalemusser/parley/internal/app/system/auth"
	"github.com/dalemusser/parley/internal/app/system/jsonresp"
	"github.com/dalemusser/parley/internal/app/system/metrics"
	"github.com/dalemusser/parley/internal/app/system/notify"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for parley.
//
// WAFFLE calls this after configuration, DB connections, schema setup and
// Startup have completed.
//
//	/health         liveness of MongoDB and Redis
//	/metrics        Prometheus metrics
//	/auth           login, refresh, session, logout
//	/chat           directory, conversations, send, delete (bearer token)
//	/ws             WebSocket notifications (token in query)
//	/uploads/{name} stored attachments
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	tokens, err := auth.NewTokenManager(appCfg.JWTAccessSecret, appCfg.JWTRefreshSecret, appCfg.AccessTokenTTL, appCfg.RefreshTokenTTL)
	if err != nil {
		logger.Error("token manager init failed", zap.Error(err))
		return nil, err
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"

	// The hub delivers to sockets on this instance; the bridge, when Redis
	// is configured, also reaches the other instances.
	var notifier notify.Notifier = deps.Hub
	if deps.Bridge != nil {
		notifier = deps.Bridge
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(appCfg.CORSOrigins)))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonresp.Fail(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonresp.Fail(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", metrics.Handler())

	// Authentication
	loginHandler := loginfeature.NewHandler(deps.MongoDatabase, tokens,
		[]byte(appCfg.CookieHashKey), blockKey(appCfg.CookieBlockKey), secure, logger)
	r.Mount("/auth", loginfeature.Routes(loginHandler))

	// Messaging
	chatHandler := chatfeature.NewHandler(deps.MongoDatabase, deps.Files, notifier,
		appCfg.BaseURL, appCfg.UploadMaxBytes, logger)
	r.Mount("/chat", chatfeature.Routes(chatHandler, tokens.RequireBearer(logger)))

	// Push channel
	rtHandler := realtimefeature.NewHandler(deps.Hub, tokens, appCfg.CORSOrigins, logger)
	r.Mount("/ws", realtimefeature.Routes(rtHandler))

	// Stored attachments
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", deps.Files.Handler()))

	return r, nil
}

func blockKey(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}

func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           int((12 * time.Hour) / time.Second),
	}
}
