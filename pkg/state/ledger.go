// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package state

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	claimAttemptKeyPrefix = KeyPrefix + "claim_attempt:"

	// DefaultClaimAttemptTTL bounds how long an attempt is remembered.
	DefaultClaimAttemptTTL = 24 * time.Hour
)

// RedisClaimLedger stores the last claim attempt per drop so the retry
// interval survives restarts.
type RedisClaimLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClaimLedger creates a ledger. A non-positive ttl uses DefaultClaimAttemptTTL.
func NewRedisClaimLedger(client *redis.Client, ttl time.Duration) *RedisClaimLedger {
	if ttl <= 0 {
		ttl = DefaultClaimAttemptTTL
	}
	return &RedisClaimLedger{client: client, ttl: ttl}
}

func makeClaimAttemptKey(dropID string) string {
	return fmt.Sprintf("%s%s", claimAttemptKeyPrefix, dropID)
}

// LastAttempt returns when a claim for dropID was last attempted.
func (l *RedisClaimLedger) LastAttempt(ctx context.Context, dropID string) (time.Time, bool, error) {
	data, err := l.client.Get(ctx, makeClaimAttemptKey(dropID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		logrus.Errorf("failed to get claim attempt for drop %s: %v", dropID, err)
		return time.Time{}, false, fmt.Errorf("failed to get claim attempt: %w", err)
	}

	at, err := time.Parse(time.RFC3339Nano, data)
	if err != nil {
		logrus.Warnf("ignoring malformed claim attempt for drop %s: %q", dropID, data)
		return time.Time{}, false, nil
	}
	return at, true, nil
}

// MarkAttempt records an attempt for dropID at the given time.
func (l *RedisClaimLedger) MarkAttempt(ctx context.Context, dropID string, at time.Time) error {
	if err := l.client.Set(ctx, makeClaimAttemptKey(dropID), at.UTC().Format(time.RFC3339Nano), l.ttl).Err(); err != nil {
		logrus.Errorf("failed to set claim attempt for drop %s: %v", dropID, err)
		return fmt.Errorf("failed to set claim attempt: %w", err)
	}

	logrus.Debugf("recorded claim attempt for drop %s", dropID)
	return nil
}
