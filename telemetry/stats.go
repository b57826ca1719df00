package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for one tick window.
type WindowStats struct {
	WindowStartTick uint64  `csv:"-"`
	WindowEndTick   uint64  `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Transport events during window
	Intents         int `csv:"intents"`
	Grants          int `csv:"grants"`
	Denials         int `csv:"denials"`
	Handoffs        int `csv:"handoffs"`
	HandoffFailures int `csv:"handoff_failures"`
	Spawns          int `csv:"spawns"`
	Deliveries      int `csv:"deliveries"`
	StalledTicks    int `csv:"stalled_ticks"`

	// Sampled at window end
	ItemsOnGrid  int `csv:"items_on_grid"`
	BusyMachines int `csv:"busy_machines"`

	// Contention: ticks agents waited between first denial and grant
	GrantWaitMean float64 `csv:"grant_wait_mean"`
	GrantWaitStd  float64 `csv:"grant_wait_std"`
	GrantWaitP90  float64 `csv:"grant_wait_p90"`

	// Power budget (per-tick means over the window)
	PowerAvailableMean float64 `csv:"power_available_mean"`
	PowerGrantedMean   float64 `csv:"power_granted_mean"`
	PowerUtilization   float64 `csv:"power_utilization"`
}

// ComputeWaitStats calculates mean, standard deviation, and the 90th
// percentile of grant wait samples.
func ComputeWaitStats(samples []float64) (mean, std, p90 float64) {
	n := len(samples)
	if n == 0 {
		return 0, 0, 0
	}

	mean = stat.Mean(samples, nil)
	if n > 1 {
		std = math.Sqrt(stat.Variance(samples, nil))
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)
	p90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)

	return mean, std, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStartTick),
		slog.Uint64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("intents", s.Intents),
		slog.Int("grants", s.Grants),
		slog.Int("denials", s.Denials),
		slog.Int("handoffs", s.Handoffs),
		slog.Int("handoff_failures", s.HandoffFailures),
		slog.Int("spawns", s.Spawns),
		slog.Int("deliveries", s.Deliveries),
		slog.Int("stalled_ticks", s.StalledTicks),
		slog.Int("items_on_grid", s.ItemsOnGrid),
		slog.Int("busy_machines", s.BusyMachines),
		slog.Float64("grant_wait_mean", s.GrantWaitMean),
		slog.Float64("grant_wait_std", s.GrantWaitStd),
		slog.Float64("grant_wait_p90", s.GrantWaitP90),
		slog.Float64("power_available_mean", s.PowerAvailableMean),
		slog.Float64("power_granted_mean", s.PowerGrantedMean),
		slog.Float64("power_utilization", s.PowerUtilization),
	)
}
