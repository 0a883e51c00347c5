package metrics

import (
	"math"
	"sort"
)

// OperationStats aggregates one operation name. Times are in seconds.
type OperationStats struct {
	Operation   string  `json:"operation"`
	Count       int     `json:"count"`
	Successes   int     `json:"successes"`
	Failures    int     `json:"failures"`
	SuccessRate float64 `json:"success_rate"`
	Min         float64 `json:"min_duration"`
	Max         float64 `json:"max_duration"`
	Avg         float64 `json:"avg_duration"`
}

// Summary aggregates a set of metrics.
type Summary struct {
	Total       int              `json:"total_operations"`
	Successes   int              `json:"successful_operations"`
	Failures    int              `json:"failed_operations"`
	SuccessRate float64          `json:"success_rate"`
	Operations  []OperationStats `json:"operations"`
}

// Summarize computes totals and per-operation statistics. Success rates are
// percentages.
func Summarize(metrics []Metric) Summary {
	var s Summary
	byOp := make(map[string]*OperationStats)
	totals := make(map[string]float64)
	for _, m := range metrics {
		s.Total++
		stats, ok := byOp[m.Operation]
		if !ok {
			stats = &OperationStats{Operation: m.Operation, Min: math.Inf(1)}
			byOp[m.Operation] = stats
		}
		stats.Count++
		if m.Success {
			s.Successes++
			stats.Successes++
		} else {
			s.Failures++
			stats.Failures++
		}
		seconds := m.Duration.Seconds()
		totals[m.Operation] += seconds
		stats.Min = math.Min(stats.Min, seconds)
		stats.Max = math.Max(stats.Max, seconds)
	}
	s.SuccessRate = rate(s.Successes, s.Total)

	s.Operations = make([]OperationStats, 0, len(byOp))
	for name, stats := range byOp {
		stats.SuccessRate = rate(stats.Successes, stats.Count)
		stats.Avg = totals[name] / float64(stats.Count)
		s.Operations = append(s.Operations, *stats)
	}
	sort.Slice(s.Operations, func(i, j int) bool {
		return s.Operations[i].Operation < s.Operations[j].Operation
	})
	return s
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
