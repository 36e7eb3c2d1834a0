package channel

import (
	"time"

	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
)

// Cache is the last fetched channel list of one game.
type Cache struct {
	Game      string                 `json:"game"`
	FetchedAt time.Time              `json:"fetchedAt"`
	Entries   []gateway.ChannelEntry `json:"entries"`
}

// IsFresh reports whether c can be served without refetching.
// Empty lists are never fresh.
func IsFresh(c *Cache, now time.Time, ttl time.Duration) bool {
	if c == nil || len(c.Entries) == 0 {
		return false
	}
	return now.Sub(c.FetchedAt) < ttl
}

// Diff summarizes how a channel list changed. It is display data only.
type Diff struct {
	Game         string         `json:"game"`
	Added        []string       `json:"added,omitempty"`
	Removed      []string       `json:"removed,omitempty"`
	Updated      []string       `json:"updated,omitempty"`
	TitleChanged []string       `json:"titleChanged,omitempty"`
	ViewerDelta  map[string]int `json:"viewerDelta,omitempty"`
	GameSwitched bool           `json:"gameSwitched,omitempty"`
}

// ComputeDiff compares next with the previously displayed list. When the
// lists belong to different games the removals are dropped, since the old
// channels did not go offline.
func ComputeDiff(game string, prev, next []gateway.ChannelEntry) Diff {
	d := Diff{Game: game, ViewerDelta: make(map[string]int)}

	before := make(map[string]gateway.ChannelEntry, len(prev))
	for _, ch := range prev {
		before[ch.ID] = ch
	}
	after := make(map[string]struct{}, len(next))

	for _, ch := range next {
		after[ch.ID] = struct{}{}
		old, ok := before[ch.ID]
		if !ok {
			d.Added = append(d.Added, ch.ID)
			continue
		}
		titleChanged := old.Title != ch.Title
		if old.Viewers != ch.Viewers {
			d.ViewerDelta[ch.ID] = ch.Viewers - old.Viewers
		}
		if titleChanged {
			d.TitleChanged = append(d.TitleChanged, ch.ID)
		}
		if titleChanged || old.Viewers != ch.Viewers {
			d.Updated = append(d.Updated, ch.ID)
		}
	}

	d.GameSwitched = len(prev) > 0 && len(next) > 0 && prev[0].Game != next[0].Game
	if d.GameSwitched {
		return d
	}

	for _, ch := range prev {
		if _, ok := after[ch.ID]; !ok {
			d.Removed = append(d.Removed, ch.ID)
		}
	}
	return d
}

func contains(entries []gateway.ChannelEntry, id string) bool {
	for _, ch := range entries {
		if ch.ID == id {
			return true
		}
	}
	return false
}
