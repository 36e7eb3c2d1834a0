// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

//go:build integration
// +build integration

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/AccelByte/extend-drop-farmer/pkg/inventory"
	"github.com/AccelByte/extend-drop-farmer/pkg/state"
	"github.com/sirupsen/logrus"
)

// This is a manual integration test for Redis operations
// Run this with: go run -tags integration test_redis_integration.go
// Requires: Redis running on localhost:6379

func main() {
	logrus.SetLevel(logrus.DebugLevel)
	logrus.Infof("Starting Redis integration test...")

	ctx := context.Background()

	client, err := state.InitRedisClient(ctx, state.RedisConfig{
		Host:       "localhost",
		Port:       "6379",
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer client.Close()

	suffix := time.Now().Unix()
	dropID := fmt.Sprintf("test-drop-%d", suffix)
	userID := fmt.Sprintf("test-user-%d", suffix)

	// Test 1: Unknown drop has no attempt
	logrus.Infof("\n=== Test 1: Unknown drop has no claim attempt ===")
	ledger := state.NewRedisClaimLedger(client, time.Hour)
	if _, ok, err := ledger.LastAttempt(ctx, dropID); err != nil || ok {
		logrus.Fatalf("LastAttempt(%s) = ok %v, err %v; expected no attempt", dropID, ok, err)
	}
	logrus.Infof("✓ No attempt recorded for %s", dropID)

	// Test 2: Mark and read back
	logrus.Infof("\n=== Test 2: Mark claim attempt ===")
	at := time.Now()
	if err := ledger.MarkAttempt(ctx, dropID, at); err != nil {
		logrus.Fatalf("MarkAttempt failed: %v", err)
	}
	last, ok, err := ledger.LastAttempt(ctx, dropID)
	if err != nil || !ok {
		logrus.Fatalf("LastAttempt after mark = ok %v, err %v", ok, err)
	}
	if !last.Equal(at) {
		logrus.Fatalf("❌ LastAttempt = %v, expected %v", last, at)
	}
	logrus.Infof("✓ Attempt recorded at %v", last)

	// Test 3: Cooldown window
	logrus.Infof("\n=== Test 3: Cooldown window ===")
	if !inventory.CoolingDown(last, at.Add(30*time.Second), 90*time.Second) {
		logrus.Fatalf("❌ Drop should still be cooling down after 30s")
	}
	if inventory.CoolingDown(last, at.Add(91*time.Second), 90*time.Second) {
		logrus.Fatalf("❌ Drop should be claimable again after 91s")
	}
	logrus.Infof("✓ Cooldown honoured")

	// Test 4: Statistics
	logrus.Infof("\n=== Test 4: Farming statistics ===")
	stats := state.NewRedisStatsStore(client)
	if err := stats.AddMinutes(ctx, userID, 15); err != nil {
		logrus.Fatalf("AddMinutes failed: %v", err)
	}
	if err := stats.AddMinutes(ctx, userID, 5); err != nil {
		logrus.Fatalf("AddMinutes failed: %v", err)
	}
	if err := stats.IncrementClaims(ctx, userID); err != nil {
		logrus.Fatalf("IncrementClaims failed: %v", err)
	}
	farmStats, err := stats.GetStats(ctx, userID)
	if err != nil {
		logrus.Fatalf("GetStats failed: %v", err)
	}
	total := farmStats.Total()
	if total.Minutes != 20 || total.Claims != 1 {
		logrus.Fatalf("❌ Stats = %+v, expected 20 minutes and 1 claim", total)
	}
	logrus.Infof("✓ Stats for %s: %+v", userID, farmStats.Weeks)

	// Cleanup
	logrus.Infof("\n=== Cleanup ===")
	keys := []string{
		state.KeyPrefix + "claim_attempt:" + dropID,
		state.KeyPrefix + "stats:" + userID,
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		logrus.Warnf("Failed to cleanup test keys: %v", err)
	} else {
		logrus.Infof("✓ Cleaned up test data")
	}

	logrus.Infof("\n=== All tests passed! ===")
}
