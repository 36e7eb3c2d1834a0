// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package state

// WeekStats is what was farmed during one ISO week.
type WeekStats struct {
	Minutes int `json:"minutes"`
	Claims  int `json:"claims"`
}

// FarmStats maps a yearWeek key ("YYYYWW") to that week's totals.
// Example: {"202610": {Minutes: 240, Claims: 3}}.
type FarmStats struct {
	Weeks map[string]WeekStats `json:"weeks"`
}

// Total sums every retained week.
func (s *FarmStats) Total() WeekStats {
	var total WeekStats
	for _, w := range s.Weeks {
		total.Minutes += w.Minutes
		total.Claims += w.Claims
	}
	return total
}
