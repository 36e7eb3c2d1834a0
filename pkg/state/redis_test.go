// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestInitRedisClient_Connects(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := InitRedisClient(context.Background(), RedisConfig{
		Host:       mr.Host(),
		Port:       mr.Port(),
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("InitRedisClient() error = %v", err)
	}
	defer client.Close()
}

func TestInitRedisClient_GivesUp(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	host, port := mr.Host(), mr.Port()
	mr.Close()

	_, err = InitRedisClient(context.Background(), RedisConfig{
		Host:       host,
		Port:       port,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
	if err == nil {
		t.Fatal("InitRedisClient() expected error for closed server")
	}
}

func TestRedisClaimLedger_RoundTrip(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ledger := NewRedisClaimLedger(client, time.Hour)

	if _, ok, err := ledger.LastAttempt(ctx, "drop-1"); ok || err != nil {
		t.Fatalf("LastAttempt() on empty ledger = %v, %v", ok, err)
	}

	at := time.Date(2025, 3, 1, 12, 0, 0, 500, time.UTC)
	if err := ledger.MarkAttempt(ctx, "drop-1", at); err != nil {
		t.Fatalf("MarkAttempt() error = %v", err)
	}

	got, ok, err := ledger.LastAttempt(ctx, "drop-1")
	if err != nil || !ok {
		t.Fatalf("LastAttempt() = %v, %v", ok, err)
	}
	if !got.Equal(at) {
		t.Errorf("LastAttempt() = %v, expected %v", got, at)
	}

	if ttl := mr.TTL(makeClaimAttemptKey("drop-1")); ttl != time.Hour {
		t.Errorf("TTL = %v, expected 1h", ttl)
	}
}

func TestRedisClaimLedger_MalformedValueIsIgnored(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	if err := mr.Set(makeClaimAttemptKey("drop-1"), "yesterday"); err != nil {
		t.Fatalf("failed to seed key: %v", err)
	}

	ledger := NewRedisClaimLedger(client, 0)
	if _, ok, err := ledger.LastAttempt(context.Background(), "drop-1"); ok || err != nil {
		t.Errorf("LastAttempt() = %v, %v, expected not found", ok, err)
	}
}

func TestRedisClaimLedger_ConnectionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()

	ledger := NewRedisClaimLedger(client, 0)
	if _, _, err := ledger.LastAttempt(context.Background(), "drop-1"); err == nil {
		t.Error("LastAttempt() expected error when Redis is down")
	}
	if err := ledger.MarkAttempt(context.Background(), "drop-1", time.Now()); err == nil {
		t.Error("MarkAttempt() expected error when Redis is down")
	}
}

func TestHealthChecker(t *testing.T) {
	client, mr := setupTestRedis(t)

	h := NewHealthChecker(client)
	if err := h.Check(context.Background()); err != nil {
		t.Errorf("Check() error = %v", err)
	}

	mr.Close()
	if err := h.Check(context.Background()); err == nil {
		t.Error("Check() expected error after Redis shut down")
	}
}
