package mock

import (
	"context"
	"sync"

	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
)

// Gateway is a mock implementation of gateway.RemoteGateway for testing.
// Set a Func field to override an operation; otherwise the Default* data is returned.
type Gateway struct {
	FetchProfileFunc      func(ctx context.Context) (*gateway.Profile, error)
	FetchInventoryFunc    func(ctx context.Context) ([]gateway.InventoryItem, error)
	FetchChannelsFunc     func(ctx context.Context, game string) ([]gateway.ChannelEntry, error)
	FetchPriorityPlanFunc func(ctx context.Context, games []string) (*gateway.PriorityPlan, error)
	SendWatchPingFunc     func(ctx context.Context, target gateway.PingTarget) error
	ClaimDropFunc         func(ctx context.Context, ref gateway.ClaimRef) error

	// Default data
	DefaultProfile   *gateway.Profile
	DefaultInventory []gateway.InventoryItem
	DefaultChannels  map[string][]gateway.ChannelEntry
	DefaultPlan      *gateway.PriorityPlan

	mu sync.Mutex

	// Call tracking
	InventoryCalls int
	ChannelCalls   []string
	PlanCalls      [][]string
	PingCalls      []gateway.PingTarget
	ClaimCalls     []gateway.ClaimRef
}

// NewGateway creates a mock gateway with an empty inventory.
func NewGateway() *Gateway {
	return &Gateway{
		DefaultProfile:  &gateway.Profile{ID: "user-1", Login: "farmer", DisplayName: "Farmer"},
		DefaultChannels: make(map[string][]gateway.ChannelEntry),
	}
}

func (g *Gateway) FetchProfile(ctx context.Context) (*gateway.Profile, error) {
	if g.FetchProfileFunc != nil {
		return g.FetchProfileFunc(ctx)
	}
	return g.DefaultProfile, nil
}

func (g *Gateway) FetchInventory(ctx context.Context) ([]gateway.InventoryItem, error) {
	g.mu.Lock()
	g.InventoryCalls++
	items := append([]gateway.InventoryItem(nil), g.DefaultInventory...)
	g.mu.Unlock()

	if g.FetchInventoryFunc != nil {
		return g.FetchInventoryFunc(ctx)
	}
	return items, nil
}

func (g *Gateway) FetchChannels(ctx context.Context, game string) ([]gateway.ChannelEntry, error) {
	g.mu.Lock()
	g.ChannelCalls = append(g.ChannelCalls, game)
	channels := append([]gateway.ChannelEntry(nil), g.DefaultChannels[game]...)
	g.mu.Unlock()

	if g.FetchChannelsFunc != nil {
		return g.FetchChannelsFunc(ctx, game)
	}
	return channels, nil
}

func (g *Gateway) FetchPriorityPlan(ctx context.Context, games []string) (*gateway.PriorityPlan, error) {
	g.mu.Lock()
	g.PlanCalls = append(g.PlanCalls, games)
	plan := g.DefaultPlan
	g.mu.Unlock()

	if g.FetchPriorityPlanFunc != nil {
		return g.FetchPriorityPlanFunc(ctx, games)
	}
	if plan == nil {
		return &gateway.PriorityPlan{}, nil
	}
	return plan, nil
}

func (g *Gateway) SendWatchPing(ctx context.Context, target gateway.PingTarget) error {
	g.mu.Lock()
	g.PingCalls = append(g.PingCalls, target)
	g.mu.Unlock()

	if g.SendWatchPingFunc != nil {
		return g.SendWatchPingFunc(ctx, target)
	}
	return nil
}

func (g *Gateway) ClaimDrop(ctx context.Context, ref gateway.ClaimRef) error {
	g.mu.Lock()
	g.ClaimCalls = append(g.ClaimCalls, ref)
	g.mu.Unlock()

	if g.ClaimDropFunc != nil {
		return g.ClaimDropFunc(ctx, ref)
	}
	return nil
}

// SetInventory replaces the default inventory.
func (g *Gateway) SetInventory(items []gateway.InventoryItem) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DefaultInventory = append([]gateway.InventoryItem(nil), items...)
}

// SetChannels replaces the default channel list of game.
func (g *Gateway) SetChannels(game string, channels []gateway.ChannelEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DefaultChannels[game] = append([]gateway.ChannelEntry(nil), channels...)
}

// InventoryCallCount returns the number of inventory fetches so far.
func (g *Gateway) InventoryCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.InventoryCalls
}

// ClaimCallCount returns the number of claim attempts so far.
func (g *Gateway) ClaimCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.ClaimCalls)
}

// PingCallCount returns the number of watch pings so far.
func (g *Gateway) PingCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.PingCalls)
}

// ChannelCallCount returns the number of channel fetches so far.
func (g *Gateway) ChannelCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.ChannelCalls)
}

// Plans returns a copy of the priority lists the plan was requested for.
func (g *Gateway) Plans() [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]string(nil), g.PlanCalls...)
}

// Pings returns a copy of the recorded ping targets.
func (g *Gateway) Pings() []gateway.PingTarget {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.PingTarget(nil), g.PingCalls...)
}

var _ gateway.RemoteGateway = (*Gateway)(nil)
