package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"binkeeper/internal/logger"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Storage journals keeper activity in MySQL and caches the latest status in Redis.
// Either side may be absent, in which case its writes are dropped.
type Storage struct {
	db  *gorm.DB
	rds *redis.Client
	lg  zerolog.Logger
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// gormWriter routes gorm's logger through zerolog.
type gormWriter struct {
	lg zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.lg.Debug().Msgf(format, args...)
}

func NewStorage(dsn string, rc *RedisConfig, opts ...gorm.Option) (*Storage, error) {
	stg := &Storage{
		lg: logger.New("Storage"),
	}

	if dsn != "" {
		sqlDB, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, err
		}

		gormLogger := gormlogger.New(
			gormWriter{lg: stg.lg},
			gormlogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		)

		db, err := gorm.Open(mysql.New(mysql.Config{
			Conn: sqlDB,
		}), append([]gorm.Option{&gorm.Config{Logger: gormLogger}}, opts...)...)
		if err != nil {
			return nil, err
		}
		stg.db = db

		if err := stg.initTables(); err != nil {
			return nil, err
		}
	} else {
		stg.lg.Warn().Msg("no dsn configured, activity journal disabled")
	}

	if rc != nil && rc.Addr != "" {
		stg.rds = redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
	}

	return stg, nil
}

// NewNoopStorage drops every write.
func NewNoopStorage() *Storage {
	return &Storage{lg: logger.New("Storage")}
}

func (s Storage) initTables() error {
	if err := s.db.AutoMigrate(&Activity{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Ping checks both backends that are configured.
func (s Storage) Ping(ctx context.Context) error {
	var errs []error
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		errs = append(errs, err)
	}
	if s.rds != nil {
		errs = append(errs, s.rds.Ping(ctx).Err())
	}
	return errors.Join(errs...)
}

func (s Storage) Close() error {
	var errs []error
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if s.rds != nil {
		errs = append(errs, s.rds.Close())
	}
	return errors.Join(errs...)
}
