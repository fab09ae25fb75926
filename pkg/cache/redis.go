package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/class-scheduling-api/pkg/config"
)

// Key prefixes shared by cached read models.
const (
	PrefixSchedules = "schedules"
	PrefixTimetable = "timetable"
	PrefixDashboard = "dashboard"
)

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Key joins a prefix and its parts with ':' skipping empty parts.
func Key(prefix string, parts ...string) string {
	segments := []string{prefix}
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return strings.Join(segments, ":")
}

// Pattern returns the scan pattern matching every key under prefix.
func Pattern(prefix string) string {
	return prefix + ":*"
}
