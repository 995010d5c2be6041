package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population counts at window end
	Predators int `csv:"predators"`
	Prey      int `csv:"prey"`
	Workers   int `csv:"workers"`
	Resources int `csv:"resources"`

	// Events during window
	Spawns          int `csv:"spawns"`
	Deaths          int `csv:"deaths"`
	Attacks         int `csv:"attacks"`
	Kills           int `csv:"kills"`
	Flees           int `csv:"flees"`
	PathsComputed   int `csv:"paths_computed"`
	PathsFailed     int `csv:"paths_failed"`
	StuckRecoveries int `csv:"stuck_recoveries"`
	TasksCompleted  int `csv:"tasks_completed"`
	SpawnsSkipped   int `csv:"spawns_skipped"`

	// Agent vitals sampled at window end
	HealthMean float64 `csv:"health_mean"`
	HealthStd  float64 `csv:"health_std"`
	EnergyMean float64 `csv:"energy_mean"`
	EnergyStd  float64 `csv:"energy_std"`
	EnergyP10  float64 `csv:"energy_p10"`
	EnergyP50  float64 `csv:"energy_p50"`
	EnergyP90  float64 `csv:"energy_p90"`
}

// meanStd computes the mean and standard deviation of values.
// Returns zeros for an empty sample.
func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean = stat.Mean(values, nil)
	if len(values) > 1 {
		std = stat.StdDev(values, nil)
	}
	return mean, std
}

// Percentile calculates the p-th percentile of values, p in [0, 1].
// The input is copied and sorted; returns 0 for an empty sample.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("predators", s.Predators),
		slog.Int("prey", s.Prey),
		slog.Int("workers", s.Workers),
		slog.Int("resources", s.Resources),
		slog.Int("spawns", s.Spawns),
		slog.Int("deaths", s.Deaths),
		slog.Int("attacks", s.Attacks),
		slog.Int("kills", s.Kills),
		slog.Int("flees", s.Flees),
		slog.Int("paths_computed", s.PathsComputed),
		slog.Int("paths_failed", s.PathsFailed),
		slog.Int("stuck_recoveries", s.StuckRecoveries),
		slog.Int("tasks_completed", s.TasksCompleted),
		slog.Float64("health_mean", s.HealthMean),
		slog.Float64("energy_mean", s.EnergyMean),
	)
}
