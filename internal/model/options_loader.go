package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RefineAPI/internal/logger"
	"RefineAPI/internal/refine"

	"github.com/redis/go-redis/v9"
)

const optionsKeyPrefix = "options:"

// Querier is the part of *sql.DB the service needs; tests pass sqlmock.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// OptionsLoader resolves options_query filters: process memory first, then
// Redis, then the database.
type OptionsLoader struct {
	DB       Querier
	Redis    *redis.Client // optional
	Cache    *OptionsCache // optional
	RedisTTL time.Duration
	now      func() time.Time
}

type cachedOption struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

func (l *OptionsLoader) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

func (l *OptionsLoader) Load(ctx context.Context, resource string, def FilterDef) ([]refine.Option, error) {
	key, err := optionsCacheKey(resource, def.Name, def.OptionsQuery)
	if err != nil {
		return nil, fmt.Errorf("options cache key: %w", err)
	}

	// 1. process memory
	if l.Cache != nil {
		if opts, ok := l.Cache.get(key, l.clock()); ok {
			return opts, nil
		}
	}

	// 2. Redis
	if l.Redis != nil {
		cached, err := l.Redis.Get(ctx, key).Result()
		switch {
		case err == nil:
			opts, decodeErr := decodeOptions(cached)
			if decodeErr != nil {
				return nil, fmt.Errorf("invalid options in Redis for %s: %w", key, decodeErr)
			}
			l.remember(key, opts)
			return opts, nil
		case !errors.Is(err, redis.Nil):
			logger.Warn("options_redis_unavailable", map[string]any{"key": key, "error": err.Error()})
		}
	}

	// 3. database
	logger.Debug("options_cache_miss", map[string]any{"resource": resource, "filter": def.Name})
	opts, err := l.query(ctx, def.OptionsQuery)
	if err != nil {
		return nil, fmt.Errorf("options query: %w", err)
	}
	l.remember(key, opts)

	if l.Redis != nil {
		payload, err := encodeOptions(opts)
		if err != nil {
			return nil, fmt.Errorf("marshal options: %w", err)
		}
		if err := l.Redis.Set(ctx, key, payload, l.RedisTTL).Err(); err != nil {
			logger.Warn("options_cache_store_failed", map[string]any{"key": key, "error": err.Error()})
		}
	}
	return opts, nil
}

func (l *OptionsLoader) remember(key string, opts []refine.Option) {
	if l.Cache != nil {
		l.Cache.set(key, opts, l.clock())
	}
}

// query reads the first column as the value and the optional second column
// as the label.
func (l *OptionsLoader) query(ctx context.Context, q string) ([]refine.Option, error) {
	if l.DB == nil {
		return nil, errors.New("no database configured")
	}
	rows, err := l.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errors.New("options query returns no columns")
	}

	var opts []refine.Option
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		value := normalizeScanned(vals[0])
		label := ""
		if len(vals) > 1 && vals[1] != nil {
			label = fmt.Sprint(normalizeScanned(vals[1]))
		}
		opts = append(opts, refine.NewOption(value, label))
	}
	return opts, rows.Err()
}

func encodeOptions(opts []refine.Option) ([]byte, error) {
	out := make([]cachedOption, len(opts))
	for i, o := range opts {
		out[i] = cachedOption{Value: o.Value, Label: o.Label}
	}
	return json.Marshal(out)
}

func decodeOptions(raw string) ([]refine.Option, error) {
	var in []cachedOption
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, err
	}
	opts := make([]refine.Option, len(in))
	for i, o := range in {
		opts[i] = refine.NewOption(o.Value, o.Label)
	}
	return opts, nil
}

// normalizeScanned turns driver bytes into strings.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
