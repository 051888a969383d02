package storage

import (
	"context"
	"fmt"

	"github.com/fjod/quickmarket/internal/config"
	"github.com/redis/go-redis/v9"
)

// Open builds the store selected by cfg.StorageDriver. SQL stores are
// migrated before they are returned.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case "memory":
		return NewMemoryStore(), nil
	case DriverSQLite:
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := s.RunMigrations(); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := NewPostgresStore(&Credentials{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			DBName:   cfg.DB.Name,
		})
		if err != nil {
			return nil, err
		}
		if err := s.RunMigrations(); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return NewRedisStore(client, cfg.SessionTTL), nil
	case "mongo":
		db, err := ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		s := NewMongoStore(db)
		if err := s.CreateIndexes(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
