package infra

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Check pings the optional backing services. A nil dependency reports
// "disabled"; the returned bool is false when any enabled dependency fails.
func Check(ctx context.Context, db *pgxpool.Pool, cache *redis.Client) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := map[string]string{"postgres": "disabled", "redis": "disabled"}
	ok := true
	if db != nil {
		status["postgres"] = "ok"
		if err := db.Ping(ctx); err != nil {
			status["postgres"] = err.Error()
			ok = false
		}
	}
	if cache != nil {
		status["redis"] = "ok"
		if err := cache.Ping(ctx).Err(); err != nil {
			status["redis"] = err.Error()
			ok = false
		}
	}
	return status, ok
}
