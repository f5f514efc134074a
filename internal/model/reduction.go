package model

import "math"

// NeutralReduction is the metric reported when there was nothing to reduce.
const NeutralReduction ReductionMetric = 0

// reductionPrecision is the number of decimal places kept in the metric.
const reductionPrecision = 4

// ReductionMetric summarizes how much smaller the purged css is than the
// original: 1 - purged/original over every stylesheet of a run.
// 0 means nothing was removed and 1 means everything was.
type ReductionMetric float64

// ComputeReduction computes the metric for a set of purge results.
// The result depends only on the byte totals, so the order of results does
// not matter. When the total original size is zero the neutral value is
// returned.
func ComputeReduction(results []PurgeResult) ReductionMetric {
	var original, purged int64
	for _, r := range results {
		original += int64(r.OriginalSize)
		purged += int64(r.PurgedSize)
	}
	if original <= 0 {
		return NeutralReduction
	}

	ratio := 1 - float64(purged)/float64(original)
	scale := math.Pow(10, reductionPrecision)
	return ReductionMetric(math.Round(ratio*scale) / scale)
}

// Percent returns the metric as a percentage.
func (m ReductionMetric) Percent() float64 {
	return float64(m) * 100
}

// Float64 returns the metric as a plain float.
func (m ReductionMetric) Float64() float64 {
	return float64(m)
}
