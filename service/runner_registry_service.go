package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/thejosephstevens/model-experiments/config"
)

const runnersHashKey = "ml-runners"

var ErrRedisNotInitialized = errors.New("redis client is not initialized")
var ErrRunnerKeyRequired = errors.New("runner key is required")
var ErrRunnerNotFound = errors.New("runner not found")

// Runner is one registered training runner. Runners register themselves in
// the shared Redis hash; this side only reads.
type Runner struct {
	Key     string `json:"key"`
	BaseURL string `json:"base_url"`
}

type runnerValue struct {
	BaseURL string `json:"base_url"`
}

func ListRunners(ctx context.Context) ([]Runner, error) {
	if config.RedisClient == nil {
		return nil, ErrRedisNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rawMap, err := config.RedisClient.HGetAll(ctx, runnersHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s failed: %w", runnersHashKey, err)
	}

	keys := make([]string, 0, len(rawMap))
	for key := range rawMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Runner, 0, len(keys))
	for _, key := range keys {
		raw := strings.TrimSpace(rawMap[key])
		if raw == "" {
			continue
		}

		var value runnerValue
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("parse runner failed (key=%s): %w", key, err)
		}

		result = append(result, Runner{
			Key:     key,
			BaseURL: value.BaseURL,
		})
	}

	return result, nil
}

func GetRunnerByKey(ctx context.Context, key string) (Runner, error) {
	if config.RedisClient == nil {
		return Runner{}, ErrRedisNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return Runner{}, ErrRunnerKeyRequired
	}

	raw, err := config.RedisClient.HGet(ctx, runnersHashKey, trimmedKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Runner{}, ErrRunnerNotFound
		}
		return Runner{}, fmt.Errorf("hget %s failed (key=%s): %w", runnersHashKey, trimmedKey, err)
	}

	payload := strings.TrimSpace(raw)
	if payload == "" {
		return Runner{}, ErrRunnerNotFound
	}

	var value runnerValue
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return Runner{}, fmt.Errorf("parse runner failed (key=%s): %w", trimmedKey, err)
	}

	return Runner{
		Key:     trimmedKey,
		BaseURL: value.BaseURL,
	}, nil
}
