// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package state

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	statsKeyPrefix  = KeyPrefix + "stats:"
	statsDefaultTTL = RetentionWeeks * 7 * 24 * time.Hour
)

// RedisStatsStore keeps per-week farming totals for a user in a Redis hash.
type RedisStatsStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStatsStore creates a stats store.
func NewRedisStatsStore(client *redis.Client) *RedisStatsStore {
	return &RedisStatsStore{client: client, now: time.Now}
}

func makeStatsKey(userID string) string {
	return fmt.Sprintf("%s%s", statsKeyPrefix, userID)
}

// AddMinutes adds earned minutes to the current week.
func (s *RedisStatsStore) AddMinutes(ctx context.Context, userID string, minutes int) error {
	if minutes <= 0 {
		return nil
	}
	return s.increment(ctx, userID, fieldMinutes, int64(minutes))
}

// IncrementClaims counts one claimed drop in the current week.
func (s *RedisStatsStore) IncrementClaims(ctx context.Context, userID string) error {
	return s.increment(ctx, userID, fieldClaims, 1)
}

func (s *RedisStatsStore) increment(ctx context.Context, userID, counter string, by int64) error {
	key := makeStatsKey(userID)
	now := s.now()

	if err := s.client.HIncrBy(ctx, key, statsField(YearWeek(now), counter), by).Err(); err != nil {
		return fmt.Errorf("failed to increment %s: %w", counter, err)
	}

	fields, err := s.client.HKeys(ctx, key).Result()
	if err == nil {
		if expired := ExpiredFields(fields, now); len(expired) > 0 {
			s.client.HDel(ctx, key, expired...)
		}
	}

	s.client.Expire(ctx, key, statsDefaultTTL)
	return nil
}

// GetStats returns the retained weekly totals. A user without data gets an empty map.
func (s *RedisStatsStore) GetStats(ctx context.Context, userID string) (*FarmStats, error) {
	data, err := s.client.HGetAll(ctx, makeStatsKey(userID)).Result()
	if err != nil {
		logrus.Errorf("failed to get stats for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	stats := &FarmStats{Weeks: make(map[string]WeekStats)}
	for field, raw := range data {
		week, counter, ok := parseStatsField(field)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		w := stats.Weeks[week]
		switch counter {
		case fieldMinutes:
			w.Minutes = n
		case fieldClaims:
			w.Claims = n
		default:
			continue
		}
		stats.Weeks[week] = w
	}
	return stats, nil
}
