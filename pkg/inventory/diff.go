package inventory

import (
	"sort"

	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
)

// mergeItems applies session rules to a fresh fetch: earned minutes
// never drop below the highest value confirmed for the same id, never exceed
// the requirement, and a claimed item is always complete.
// confirmed is updated in place.
func mergeItems(fetched []gateway.InventoryItem, confirmed map[string]int) []gateway.InventoryItem {
	out := make([]gateway.InventoryItem, len(fetched))
	for i, item := range fetched {
		if prev, ok := confirmed[item.ID]; ok && prev > item.EarnedMinutes {
			item.EarnedMinutes = prev
		}
		item = clampItem(item)
		confirmed[item.ID] = item.EarnedMinutes
		out[i] = item
	}
	return out
}

func clampItem(item gateway.InventoryItem) gateway.InventoryItem {
	if item.EarnedMinutes < 0 {
		item.EarnedMinutes = 0
	}
	if item.RequiredMinutes < 0 {
		item.RequiredMinutes = 0
	}
	if item.EarnedMinutes > item.RequiredMinutes {
		item.EarnedMinutes = item.RequiredMinutes
	}
	if item.Status == gateway.StatusClaimed {
		item.EarnedMinutes = item.RequiredMinutes
	}
	return item
}

// diffItems returns the ids added since prev and the ids whose earned minutes or status changed.
func diffItems(prev, next []gateway.InventoryItem) (added, updated []string) {
	before := make(map[string]gateway.InventoryItem, len(prev))
	for _, item := range prev {
		before[item.ID] = item
	}

	for _, item := range next {
		old, ok := before[item.ID]
		if !ok {
			added = append(added, item.ID)
			continue
		}
		if old.EarnedMinutes != item.EarnedMinutes || old.Status != item.Status {
			updated = append(updated, item.ID)
		}
	}

	sort.Strings(added)
	sort.Strings(updated)
	return added, updated
}

func totalEarned(items []gateway.InventoryItem) int {
	total := 0
	for _, item := range items {
		total += item.EarnedMinutes
	}
	return total
}
