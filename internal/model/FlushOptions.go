package model

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// FlushOptions deletes cached option lists from Redis, all of them or only
// those of resource, and returns how many keys were removed.
func FlushOptions(ctx context.Context, conn *redis.Client, resource string) (int, error) {
	pattern := optionsKeyPrefix + "*"
	if resource != "" {
		pattern = optionsKeyPrefix + resource + ":*"
	}

	removed := 0
	iter := conn.Scan(ctx, 0, pattern, 1000).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := conn.Del(ctx, key).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete key %s: %w", key, err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan error: %w", err)
	}
	return removed, nil
}
