package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"sweeper_server/adapter/out/messaging"
	"sweeper_server/adapter/out/mongodb"
	"sweeper_server/adapter/out/persistence"
	"sweeper_server/adapter/out/provider"
	"sweeper_server/config"
	"sweeper_server/core/domain"
	"sweeper_server/core/port/out"
	"sweeper_server/core/service/classification"
	"sweeper_server/core/service/sweep"
	"sweeper_server/infra/database"
	"sweeper_server/pkg/logger"
	"sweeper_server/pkg/metrics"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	SenderProfileRepo domain.SenderProfileRepository
	ScheduleRepo      domain.ScheduleRepository
	ExecutionLogRepo  domain.ExecutionLogRepository
	CredentialRepo    out.CredentialRepository

	// Gateway
	GmailGateway *provider.GmailAdapter

	// Notifier
	Notifier out.Notifier

	// Services
	Engine  *classification.Engine
	Sweeper *sweep.Service
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	// Database (pgxpool)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx for the repository adapters)
	sqlxURL := cfg.DatabaseURL
	if strings.Contains(sqlxURL, "?") {
		sqlxURL += "&default_query_exec_mode=simple_protocol"
	} else {
		sqlxURL += "?default_query_exec_mode=simple_protocol"
	}
	sqlDB, err := sqlx.Connect("pgx", sqlxURL)
	if err != nil {
		return nil, nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })
	metrics.RegisterPool("postgres", sqlDB.DB)

	// Redis
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis connection failed, notifications disabled: %v", err)
	} else {
		deps.Redis = redisClient
		cleanups = append(cleanups, func() { redisClient.Close() })
		deps.Notifier = messaging.NewStreamNotifier(redisClient)
	}

	// MongoDB (execution log)
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})

			execLogAdapter := mongodb.NewExecutionLogAdapter(mongoClient.Database(cfg.MongoDBName))
			if err := execLogAdapter.EnsureIndexes(context.Background()); err != nil {
				logger.Warn("Failed to ensure execution log indexes: %v", err)
			}
			deps.ExecutionLogRepo = execLogAdapter
		}
	}

	// Repositories
	deps.SenderProfileRepo = persistence.NewSenderProfileAdapter(sqlDB)
	deps.ScheduleRepo = persistence.NewScheduleAdapter(sqlDB)
	deps.CredentialRepo = persistence.NewCredentialAdapter(sqlDB)

	// Gmail Gateway
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		deps.GmailGateway = provider.NewGmailAdapter(&provider.GmailConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	}

	// Classification Engine
	deps.Engine = classification.NewEngine(deps.SenderProfileRepo)

	// Sweep Service
	if deps.GmailGateway != nil && deps.ExecutionLogRepo != nil && deps.Notifier != nil {
		deps.Sweeper = sweep.NewService(&sweep.Deps{
			Schedules:   deps.ScheduleRepo,
			ExecLog:     deps.ExecutionLogRepo,
			Profiles:    deps.SenderProfileRepo,
			Gateway:     deps.GmailGateway,
			Notifier:    deps.Notifier,
			Credentials: deps.CredentialRepo,
			Engine:      deps.Engine,
		}, &sweep.Config{
			FetchLimit: cfg.SweepFetchLimit,
			BatchSize:  cfg.SweepBatchSize,
			BatchDelay: time.Duration(cfg.SweepBatchDelayMS) * time.Millisecond,
		})
		logger.Info("Sweep service initialized")
	} else {
		logger.Warn("Sweep service not initialized: missing gateway, execution log or notifier")
	}

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	return deps, cleanup, nil
}

// HealthCheck pings every connected backend. It runs once at startup so a
// misconfigured store fails the process before the first sweep.
func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if err := d.DB.Ping(ctx); err != nil {
		return err
	}

	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	if d.MongoDB != nil {
		if err := d.MongoDB.Ping(ctx, nil); err != nil {
			return err
		}
	}

	return nil
}
