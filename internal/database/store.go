package database

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/gema-rubric-api/internal/config"
	"github.com/noah-isme/gema-rubric-api/internal/kv"
)

// Store bundles the key-value store with the redis client backing it, if any.
type Store struct {
	KV    kv.Store
	Redis *redis.Client
}

// OpenStore connects the backend selected by cfg.StoreDriver.
func OpenStore(cfg config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverRedis:
		client, err := ConnectRedis(cfg.RedisURL)
		if err != nil {
			return Store{}, err
		}
		store, err := kv.NewRedisStore(client, cfg.StoreNamespace)
		if err != nil {
			_ = client.Close()
			return Store{}, err
		}
		return Store{KV: store, Redis: client}, nil
	case config.StoreDriverPostgres, config.StoreDriverSQLite:
		connect := ConnectPostgres
		if cfg.StoreDriver == config.StoreDriverSQLite {
			connect = ConnectSQLite
		}
		db, err := connect(cfg.DatabaseURL)
		if err != nil {
			return Store{}, err
		}
		store, err := kv.NewSQLStore(db, cfg.StoreNamespace)
		if err != nil {
			return Store{}, err
		}
		return Store{KV: store}, nil
	default:
		return Store{}, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
