package main

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/davicafu/hexaquery/internal/config"
	taskDomain "github.com/davicafu/hexaquery/internal/task/domain"
	taskGorm "github.com/davicafu/hexaquery/internal/task/infra/outbound/db/gormdb"
	taskMemory "github.com/davicafu/hexaquery/internal/task/infra/outbound/db/memory"
	taskMongo "github.com/davicafu/hexaquery/internal/task/infra/outbound/db/mongodb"
)

// openTaskRepository abre el backend configurado. close libera la conexión.
func openTaskRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (taskDomain.TaskRepository, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Info("Using in-memory task repository")
		return taskMemory.NewTaskRepo(), func() {}, nil

	case config.BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		closeFn := func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(shutdownCtx)
		}
		r, err := taskMongo.NewTaskRepoMongoDB(ctx, client, cfg.MongoDB)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		log.Info("Using MongoDB task repository", zap.String("db", cfg.MongoDB))
		return r, closeFn, nil

	case config.BackendSQLite, config.BackendPostgres:
		db, err := openGorm(cfg)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		r := taskGorm.NewTaskRepoGorm(db)
		if err := r.Migrate(ctx); err != nil {
			sqlDB.Close()
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		log.Info("Using gorm task repository", zap.String("backend", cfg.Backend))
		return r, func() { sqlDB.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func openGorm(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
		TranslateError: true,
		// users lo gestiona otro servicio; assignee_id no se restringe.
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	if cfg.Backend == config.BackendSQLite {
		db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		return db, nil
	}

	connCfg, err := pgx.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	sqlDB := stdlib.OpenDB(*connCfg)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormCfg)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}
	return db, nil
}
