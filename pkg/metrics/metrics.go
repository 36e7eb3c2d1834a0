// Package metrics defines the Prometheus collectors of the drop farmer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "drop_farmer"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeAuth    = "auth_invalid"
)

var (
	InventoryRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_refreshes_total",
			Help:      "Total number of inventory fetches by outcome",
		},
		[]string{"outcome"},
	)

	ClaimAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_attempts_total",
			Help:      "Total number of drop claim attempts by outcome",
		},
		[]string{"outcome"},
	)

	WatchPingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_pings_total",
			Help:      "Total number of watch heartbeat pings by outcome",
		},
		[]string{"outcome"},
	)

	ChannelFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_fetches_total",
			Help:      "Total number of channel list fetches by outcome",
		},
		[]string{"outcome"},
	)

	MinutesEarnedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "minutes_earned_total",
			Help:      "Total drop minutes earned across inventory snapshots",
		},
	)

	AutoSwitchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_switches_total",
			Help:      "Total number of automatic channel switches",
		},
	)

	Watching = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watching",
			Help:      "1 while a channel is being watched",
		},
	)

	ActiveDropRemainingMinutes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_drop_remaining_minutes",
			Help:      "Projected minutes left on the active drop",
		},
	)
)

// Collectors returns every collector of this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		InventoryRefreshesTotal,
		ClaimAttemptsTotal,
		WatchPingsTotal,
		ChannelFetchesTotal,
		MinutesEarnedTotal,
		AutoSwitchesTotal,
		Watching,
		ActiveDropRemainingMinutes,
	}
}

// Register adds the collectors to registry.
func Register(registry prometheus.Registerer) {
	registry.MustRegister(Collectors()...)
}
