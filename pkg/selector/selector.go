// Package selector decides which game to farm.
//
// Everything here is a pure function of the inventory, the priority inputs and
// the current target; the orchestrator stores the result.
package selector

import (
	"sort"
	"time"

	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
)

// Input is everything a decision depends on.
type Input struct {
	Items          []gateway.InventoryItem
	InventoryReady bool
	Plan           []string
	UserPriority   []string
	ExcludedGames  []string
	ObeyPriority   bool
	CurrentGame    string
	Watching       bool
	Now            time.Time
}

// Decision is the selector output.
type Decision struct {
	PriorityOrder []string
	ActiveGame    string
	// SoftStop asks the caller to stop watching without forcing a refresh.
	SoftStop bool
}

// Changed reports whether the active game differs from the input's.
func (d Decision) Changed(in Input) bool {
	return d.ActiveGame != in.CurrentGame
}

// Decide runs the selection algorithm.
func Decide(in Input) Decision {
	excluded := toSet(in.ExcludedGames)
	actionable := ActionableGames(in.Items, excluded, in.Now)

	order := PriorityOrder(in.Plan, in.UserPriority, FallbackGames(in.Items, excluded, in.Now))
	d := Decision{PriorityOrder: order, ActiveGame: in.CurrentGame}

	best := firstActionable(order, actionable)

	if in.InventoryReady && best == "" {
		d.ActiveGame = ""
		d.SoftStop = in.Watching
		return d
	}

	// a target whose drops ran out is released so the next one can be picked
	if in.InventoryReady && d.ActiveGame != "" && !actionable[d.ActiveGame] {
		d.ActiveGame = ""
	}

	if d.ActiveGame == "" && in.InventoryReady && len(order) > 0 {
		d.ActiveGame = best
	}

	if in.ObeyPriority && best != "" && d.ActiveGame != best {
		d.ActiveGame = best
	}

	return d
}

// PriorityOrder picks the first non-empty list of plan, user and fallback.
func PriorityOrder(plan, user, fallback []string) []string {
	switch {
	case len(plan) > 0:
		return dedupe(plan)
	case len(user) > 0:
		return dedupe(user)
	default:
		return dedupe(fallback)
	}
}

// FallbackGames lists the games with at least one actionable drop in first-seen order.
func FallbackGames(items []gateway.InventoryItem, excluded map[string]struct{}, now time.Time) []string {
	seen := make(map[string]struct{})
	var games []string
	for _, item := range items {
		if !Actionable(item, excluded, now) {
			continue
		}
		if _, ok := seen[item.Game]; ok {
			continue
		}
		seen[item.Game] = struct{}{}
		games = append(games, item.Game)
	}
	return games
}

// ActionableGames returns the set of games with at least one actionable drop.
func ActionableGames(items []gateway.InventoryItem, excluded map[string]struct{}, now time.Time) map[string]bool {
	out := make(map[string]bool)
	for _, item := range items {
		if Actionable(item, excluded, now) {
			out[item.Game] = true
		}
	}
	return out
}

// Actionable reports whether watching can still advance item: it is in
// progress or upcoming, not claimed, not excluded and not expired.
func Actionable(item gateway.InventoryItem, excluded map[string]struct{}, now time.Time) bool {
	if item.Status == gateway.StatusClaimed || item.Excluded {
		return false
	}
	if _, ok := excluded[item.Game]; ok {
		return false
	}
	if !item.EndsAt.IsZero() && !now.Before(item.EndsAt) {
		return false
	}
	return item.RemainingMinutes() > 0
}

// ActiveDrop picks the drop of game that progress is attributed to.
// Running drops win over upcoming ones, then the nearest end, the earliest
// start, the fewest remaining minutes and finally the title.
func ActiveDrop(items []gateway.InventoryItem, game string, excluded map[string]struct{}, now time.Time) (gateway.InventoryItem, bool) {
	var candidates []gateway.InventoryItem
	for _, item := range items {
		if item.Game == game && Actionable(item, excluded, now) {
			candidates = append(candidates, item)
		}
	}
	if len(candidates) == 0 {
		return gateway.InventoryItem{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ra, rb := running(a), running(b); ra != rb {
			return ra
		}
		if !a.EndsAt.Equal(b.EndsAt) {
			return earlierOrZeroLast(a.EndsAt, b.EndsAt)
		}
		if !a.StartsAt.Equal(b.StartsAt) {
			return earlierOrZeroLast(a.StartsAt, b.StartsAt)
		}
		if a.RemainingMinutes() != b.RemainingMinutes() {
			return a.RemainingMinutes() < b.RemainingMinutes()
		}
		return a.Title < b.Title
	})
	return candidates[0], true
}

// ExcludedSet builds the lookup set used by the helpers above.
func ExcludedSet(games []string) map[string]struct{} {
	return toSet(games)
}

func running(item gateway.InventoryItem) bool {
	return item.Status == gateway.StatusProgress || item.EarnedMinutes > 0
}

func earlierOrZeroLast(a, b time.Time) bool {
	switch {
	case a.IsZero():
		return false
	case b.IsZero():
		return true
	default:
		return a.Before(b)
	}
}

func firstActionable(order []string, actionable map[string]bool) string {
	for _, game := range order {
		if actionable[game] {
			return game
		}
	}
	return ""
}

func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func toSet(list []string) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, s := range list {
		out[s] = struct{}{}
	}
	return out
}
