// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package state

import (
	"fmt"
	"strings"
	"time"
)

// RetentionWeeks is how many weeks of statistics are kept.
const RetentionWeeks = 4

const (
	fieldMinutes = "minutes"
	fieldClaims  = "claims"
)

// YearWeek returns the ISO year-week string in format "YYYYWW" (e.g., "202610" for week 10 of 2026).
func YearWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d%02d", year, week)
}

// statsField builds the hash field for a counter in a week, e.g. "202610:minutes".
func statsField(yearWeek, counter string) string {
	return yearWeek + ":" + counter
}

// parseStatsField splits a hash field into its week and counter.
func parseStatsField(field string) (yearWeek, counter string, ok bool) {
	parts := strings.SplitN(field, ":", 2)
	if len(parts) != 2 || len(parts[0]) != 6 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ExpiredFields returns the fields older than the retention window relative to now.
func ExpiredFields(fields []string, now time.Time) []string {
	threshold := YearWeek(now.Add(-RetentionWeeks * 7 * 24 * time.Hour))

	var expired []string
	for _, f := range fields {
		week, _, ok := parseStatsField(f)
		if !ok || week < threshold {
			expired = append(expired, f)
		}
	}
	return expired
}
