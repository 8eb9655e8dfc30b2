// File: internal/observability/stats.go
package observability

import "sort"

// PerformanceStats are percentile statistics derived on demand from the
// sliding duration window. Values are milliseconds.
type PerformanceStats struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ComputeStats computes percentiles, min and max over a copy of the given
// durations. Percentiles read sorted[floor(len*fraction)] with no
// interpolation. An empty input yields all-zero stats.
func ComputeStats(durations []float64) PerformanceStats {
	if len(durations) == 0 {
		return PerformanceStats{}
	}

	sorted := append([]float64(nil), durations...)
	sort.Float64s(sorted)

	at := func(fraction float64) float64 {
		idx := int(float64(len(sorted)) * fraction)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}

	return PerformanceStats{
		P50: at(0.5),
		P90: at(0.9),
		P95: at(0.95),
		P99: at(0.99),
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
	}
}
