package domain

import "fmt"

// MergeMetrics folds delta into existing with additive per-key semantics.
// Absent keys start at zero; keys never present in delta are untouched, so
// previously recorded dimensions are never removed. The inputs are not
// mutated.
func MergeMetrics(existing, delta Metrics) Metrics {
	out := existing.Clone()
	for k, v := range delta {
		out[k] += v
	}
	return out
}

// MetricPolicy declares per-metric domains; metrics listed as non-negative
// reject any delta that would take their accumulated value below zero.
type MetricPolicy struct {
	nonNegative map[string]bool
}

func NewMetricPolicy(nonNegative []string) MetricPolicy {
	set := make(map[string]bool, len(nonNegative))
	for _, name := range nonNegative {
		if name != "" {
			set[name] = true
		}
	}
	return MetricPolicy{nonNegative: set}
}

// ApplyStatDelta merges delta into a player's metrics, enforcing the policy.
// Pure with respect to its inputs; persisting the result is the caller's job.
func (p MetricPolicy) ApplyStatDelta(existing, delta Metrics) (Metrics, error) {
	merged := MergeMetrics(existing, delta)
	for k := range delta {
		if p.nonNegative[k] && merged[k] < 0 {
			return nil, fmt.Errorf("metric %q would become %d: %w", k, merged[k], ErrInvalidMetricValue)
		}
	}
	return merged, nil
}
