// main.go
package main

import (
	"context"
	"log"
	"time"

	"provalab-api/cmd"
	"provalab-api/internal/data/repository"
	"provalab-api/internal/data/repository/memory"
	"provalab-api/internal/usecase"
	"provalab-api/internal/wire"
	"provalab-api/pkg/database"
	"provalab-api/pkg/mailer"
	"provalab-api/pkg/oauth"
	"provalab-api/pkg/ratelimit"
	"provalab-api/pkg/token"
	"provalab-api/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.String("db_driver", config.Database.Driver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var store repository.Store
	switch config.Database.Driver {
	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		store = memory.NewStore(logger)
	default:
		db, err := database.InitDB(config.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("Database connected successfully")

		if config.Database.AutoMigrate {
			migrateCtx, done := context.WithTimeout(ctx, time.Minute)
			err := database.RunMigrations(migrateCtx, db)
			done()
			if err != nil {
				logger.Fatal("Failed to run migrations", zap.Error(err))
			}
			logger.Info("Migrations applied")
		}

		store = repository.NewPostgresStore(db, logger)
	}

	deps := usecase.Dependencies{
		Store:  store,
		Codec:  token.NewCodec(config.JWT.Secret, time.Now),
		Google: oauth.NewGoogle(config.Google.ClientID, config.Google.Timeout()),
		Config: config,
		Log:    logger,
		Now:    time.Now,
	}

	// Redis backs the HTTP throttle and, optionally, the verification and
	// reset rate limits. A nil interface keeps the throttle off.
	var scripter redis.Scripter
	if config.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, done := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("Redis ping failed, throttle will fail open", zap.Error(err))
		}
		done()

		scripter = rdb
		if config.RateLimit.Backend == "redis" {
			deps.Limits = ratelimit.NewRedisStore(rdb, config.RateLimit.Prefix, time.Hour)
		}
	} else if config.RateLimit.Backend == "redis" {
		logger.Fatal("RATE_LIMIT_BACKEND=redis requires REDIS_ADDR")
	}

	// Email
	direct := mailer.NewDirectSender(config.Email, logger)
	deps.Mailer = direct
	if config.Queue.Enabled {
		publisher := mailer.NewQueuePublisher(config.Queue.URL, config.Queue.Name, logger)
		defer publisher.Close()
		deps.Mailer = publisher

		consumer := mailer.NewQueueConsumer(config.Queue.URL, config.Queue.Name, direct, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Email queue consumer stopped", zap.Error(err))
			}
		}()
		logger.Info("Email queue enabled", zap.String("queue", config.Queue.Name))
	}

	// Wire all dependencies
	app := wire.Wiring(deps, scripter)

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	if err := cmd.APIServer(app.Router, config.App.Port, logger); err != nil {
		logger.Error("Server stopped", zap.Error(err))
	}
}
