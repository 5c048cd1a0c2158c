// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/parley/internal/app/system/attachments"
	"github.com/dalemusser/parley/internal/app/system/workers"
	"github.com/dalemusser/parley/internal/app/system/wshub"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds the back-end dependencies shared by every handler.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Redis is nil when redis_addr is blank.
	Redis *redis.Client

	Files *attachments.Store

	// Hub holds the live WebSocket connections of this instance. Bridge is
	// non-nil when Redis is configured; Startup starts its subscriber.
	Hub    *wshub.Hub
	Bridge *wshub.RedisBridge

	// Sweeper is nil when upload_sweep_interval is 0.
	Sweeper *workers.UploadSweep
}
