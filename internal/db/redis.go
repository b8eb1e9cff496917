package db

import (
	"context"
	"time"
)

// SetCache is best effort. Failures are logged and otherwise ignored.
func (s Storage) SetCache(key string, value interface{}, exp time.Duration) {
	if s.rds == nil {
		return
	}
	if err := s.rds.Set(context.Background(), key, value, exp).Err(); err != nil {
		s.lg.Warn().Err(err).Str("key", key).Msg("failed to set cache")
	}
}

func (s Storage) GetCache(key string) (string, error) {
	if s.rds == nil {
		return "", ErrNoCache
	}
	return s.rds.Get(context.Background(), key).Result()
}
