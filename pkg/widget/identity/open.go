package identity

import (
	"strings"

	"github.com/pkg/errors"
)

// Settings selects and configures a Storage backend.
type Settings struct {
	Kind        string `yaml:"kind"`
	Path        string `yaml:"path"`
	RedisAddr   string `yaml:"redis-addr"`
	RedisPrefix string `yaml:"redis-prefix"`
}

const (
	KindMemory      = "memory"
	KindFile        = "file"
	KindSQLite      = "sqlite"
	KindRedis       = "redis"
	KindUnavailable = "unavailable"
)

// Open builds the Storage named by s.Kind. An empty kind means file storage.
func Open(s Settings) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(s.Kind)) {
	case KindMemory:
		return NewMemoryStorage(), nil
	case "", KindFile:
		return NewFileStorage(s.Path)
	case KindSQLite:
		return NewSQLiteStorage(s.Path)
	case KindRedis:
		if s.RedisAddr == "" {
			return nil, errors.New("redis storage: empty address")
		}
		return NewRedisStorage(s.RedisAddr, s.RedisPrefix), nil
	case KindUnavailable:
		return UnavailableStorage{}, nil
	default:
		return nil, errors.Errorf("unknown storage kind %q", s.Kind)
	}
}
