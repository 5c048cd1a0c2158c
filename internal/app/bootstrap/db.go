// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	messagestore "github.com/dalemusser/parley/internal/app/store/messages"
	"github.com/dalemusser/parley/internal/app/system/attachments"
	"github.com/dalemusser/parley/internal/app/system/indexes"
	"github.com/dalemusser/parley/internal/app/system/timeouts"
	"github.com/dalemusser/parley/internal/app/system/validators"
	"github.com/dalemusser/parley/internal/app/system/workers"
	"github.com/dalemusser/parley/internal/app/system/wshub"
	"github.com/dalemusser/waffle/config"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ConnectDB connects to MongoDB and, when configured, Redis. It also opens
// the attachment directory and creates the connection hub so every later
// hook shares the same instances.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(appCfg.MongoURI))
	if err != nil {
		return DBDeps{}, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
		Hub:           wshub.NewHub(logger),
	}

	files, err := attachments.New(appCfg.UploadDir)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("open upload dir: %w", err)
	}
	deps.Files = files

	if appCfg.UploadSweepInterval > 0 {
		deps.Sweeper = workers.NewUploadSweep(files, messagestore.New(deps.MongoDatabase), logger,
			appCfg.UploadSweepInterval, appCfg.UploadSweepGrace)
	}

	if appCfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     appCfg.RedisAddr,
			Password: appCfg.RedisPassword,
			DB:       appCfg.RedisDB,
		})
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			_ = client.Disconnect(context.Background())
			return DBDeps{}, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("connected to Redis", zap.String("addr", appCfg.RedisAddr))
		deps.Redis = rdb
		deps.Bridge = wshub.NewRedisBridge(deps.Hub, rdb, wshub.DefaultChannel, logger)
	}

	return deps, nil
}

// EnsureSchema applies the collection validators, then the indexes. Both
// steps are idempotent and run on every start.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	logger.Info("schema ready")
	return nil
}
