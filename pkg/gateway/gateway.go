package gateway

import (
	"context"
	"time"
)

// RemoteGateway is the boundary to the remote drops service.
// Every operation returns either a payload, ErrAuthInvalid, or a *RemoteError.
type RemoteGateway interface {
	FetchProfile(ctx context.Context) (*Profile, error)
	FetchInventory(ctx context.Context) ([]InventoryItem, error)
	FetchChannels(ctx context.Context, game string) ([]ChannelEntry, error)
	FetchPriorityPlan(ctx context.Context, priorityGames []string) (*PriorityPlan, error)
	SendWatchPing(ctx context.Context, target PingTarget) error
	ClaimDrop(ctx context.Context, ref ClaimRef) error
}

// DropStatus is the remote-reported state of an inventory item.
type DropStatus string

const (
	StatusLocked   DropStatus = "locked"
	StatusProgress DropStatus = "progress"
	StatusClaimed  DropStatus = "claimed"
)

// Profile is the authenticated user.
type Profile struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
}

// ClaimRef identifies a drop instance for the claim operation.
type ClaimRef struct {
	DropInstanceID string `json:"dropInstanceId,omitempty"`
	DropID         string `json:"dropId"`
	CampaignID     string `json:"campaignId,omitempty"`
}

// InventoryItem is one drop in the user's reward inventory.
type InventoryItem struct {
	ID              string     `json:"id"`
	CampaignID      string     `json:"campaignId"`
	Game            string     `json:"game"`
	Title           string     `json:"title"`
	RequiredMinutes int        `json:"requiredMinutes"`
	EarnedMinutes   int        `json:"earnedMinutes"`
	Status          DropStatus `json:"status"`
	Excluded        bool       `json:"excluded,omitempty"`
	StartsAt        time.Time  `json:"startsAt"`
	EndsAt          time.Time  `json:"endsAt"`
	ClaimRef        *ClaimRef  `json:"claimRef,omitempty"`
}

// RemainingMinutes returns the minutes still needed, never negative.
func (i InventoryItem) RemainingMinutes() int {
	if r := i.RequiredMinutes - i.EarnedMinutes; r > 0 {
		return r
	}
	return 0
}

// Claimable reports whether the auto-claim path may claim this item.
func (i InventoryItem) Claimable() bool {
	if i.Status == StatusClaimed || i.ClaimRef == nil {
		return false
	}
	return i.RequiredMinutes == 0 || i.EarnedMinutes >= i.RequiredMinutes
}

// ChannelEntry is a live channel streaming a game.
type ChannelEntry struct {
	ID                string `json:"id"`
	Login             string `json:"login"`
	DisplayName       string `json:"displayName"`
	Title             string `json:"title"`
	Viewers           int    `json:"viewers"`
	Language          string `json:"language"`
	ThumbnailTemplate string `json:"thumbnailTemplate"`
	Game              string `json:"game"`
	StreamID          string `json:"streamId,omitempty"`
}

// PriorityPlan is the remote ordering of games worth farming.
type PriorityPlan struct {
	Order []string `json:"order"`
}

// PingTarget is what a watch ping is sent for.
type PingTarget struct {
	ChannelID string `json:"channelId"`
	Login     string `json:"login"`
	StreamID  string `json:"streamId,omitempty"`
}

// WatchingTarget is the single channel currently farmed.
type WatchingTarget struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Game        string `json:"game"`
	Login       string `json:"login"`
	ChannelID   string `json:"channelId"`
	StreamID    string `json:"streamId,omitempty"`
}

// PingTarget returns the heartbeat addressing for the target.
func (w WatchingTarget) PingTarget() PingTarget {
	return PingTarget{ChannelID: w.ChannelID, Login: w.Login, StreamID: w.StreamID}
}

// TargetFromChannel builds a watching target for a channel entry.
func TargetFromChannel(ch ChannelEntry) WatchingTarget {
	return WatchingTarget{
		ID:          ch.ID,
		DisplayName: ch.DisplayName,
		Game:        ch.Game,
		Login:       ch.Login,
		ChannelID:   ch.ID,
		StreamID:    ch.StreamID,
	}
}
