// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	userstore "github.com/dalemusser/parley/internal/app/store/users"
	"github.com/dalemusser/parley/internal/app/system/timeouts"
	"github.com/dalemusser/parley/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Startup runs one-time initialization after the schema is in place and
// before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if appCfg.SeedDemoUsers {
		ctx, cancel := context.WithTimeout(ctx, timeouts.Long())
		defer cancel()
		if _, err := seedDemoUsers(ctx, deps.MongoDatabase, logger); err != nil {
			logger.Error("seed demo users failed", zap.Error(err))
			return err
		}
	}
	if deps.Bridge != nil {
		deps.Bridge.Start()
		logger.Info("redis notification bridge started")
	}
	if deps.Sweeper != nil {
		deps.Sweeper.Start()
	}
	return nil
}

// DemoPassword is the password of every seeded account.
const DemoPassword = "password"

type demoUser struct {
	first, last, display, mobile, email, gender string
}

var demoUsers = []demoUser{
	{"Vijay", "Kumar", "Vijaykumar", "+91 9876543210", "vijaykumar@chatmail.com", models.GenderMale},
	{"Karthi", "", "Karthi", "+91 9876543211", "karthi@chatmail.com", models.GenderMale},
	{"Keerthana", "", "Keerthana", "+91 9876543212", "keerthana@chatmail.com", models.GenderFemale},
	{"Pranita", "", "Pranita", "+91 9876543213", "pranita@chatmail.com", models.GenderFemale},
	{"Samy", "", "Samy", "+91 9876543214", "samy@chatmail.com", models.GenderMale},
	{"Preethi", "", "Preethi", "+91 9876543215", "preethi@chatmail.com", models.GenderFemale},
	{"Karthika", "", "Karthika", "+91 9876543216", "karthika@chatmail.com", models.GenderFemale},
	{"Gokul", "", "gokul", "+91 9876543217", "gokul@chatmail.com", models.GenderMale},
	{"Sanjay", "", "sanjay", "+91 9876543218", "sanjay@chatmail.com", models.GenderMale},
}

// seedDemoUsers inserts the demo accounts when no user exists yet and
// returns how many were created.
func seedDemoUsers(ctx context.Context, db *mongo.Database, logger *zap.Logger) (int, error) {
	users := userstore.New(db)
	n, err := users.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		logger.Debug("users present; skipping demo seed", zap.Int64("count", n))
		return 0, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, d := range demoUsers {
		u := models.User{
			FirstName:    d.first,
			DisplayName:  d.display,
			Mobile:       d.mobile,
			Email:        d.email,
			PasswordHash: string(hash),
			Gender:       d.gender,
		}
		if d.last != "" {
			last := d.last
			u.LastName = &last
		}
		if _, err := users.Create(ctx, u); err != nil {
			if errors.Is(err, userstore.ErrDuplicateEmail) {
				continue
			}
			return created, fmt.Errorf("create %s: %w", d.email, err)
		}
		created++
	}
	logger.Info("seeded demo users", zap.Int("count", created))
	return created, nil
}
