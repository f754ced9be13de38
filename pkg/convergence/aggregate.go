package convergence

import (
	"math"
	"sort"
)

// Aggregate combines all trials of one (engine, test) pair into a single
// AggregatedResult.
//
// Failed trials contribute to Dist.Count and Errors only; successful
// trials contribute each finite metric value to the corresponding Dist
// array. A non-finite or missing value is dropped from the arrays but the
// trial still counts toward Dist.Count. Aggregation is a pure function of
// the input set: shuffling the input changes only the array order, never
// the derived statistics, and the input is not mutated.
func Aggregate(results []RunResult) AggregatedResult {
	agg := AggregatedResult{Dist: Dist{Count: len(results)}}
	if len(results) > 0 {
		agg.Engine = results[0].Engine
		agg.TestID = results[0].TestID
		agg.Label = results[0].Label
		agg.Format = results[0].Format
	}

	for _, r := range results {
		if r.Error != "" {
			agg.Errors = append(agg.Errors, r.Error)
			continue
		}
		agg.Dist.T85 = appendFinite(agg.Dist.T85, r.T85)
		agg.Dist.T95 = appendFinite(agg.Dist.T95, r.T95)
		agg.Dist.VisIndex = appendFinite(agg.Dist.VisIndex, r.VisIndex)
	}

	agg.T85 = summarize(agg.Dist.T85)
	agg.T95 = summarize(agg.Dist.T95)
	agg.VisIndex = summarize(agg.Dist.VisIndex)
	return agg
}

func appendFinite(dst []float64, v *float64) []float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return dst
	}
	return append(dst, *v)
}

func summarize(vals []float64) MetricSummary {
	if len(vals) == 0 {
		return MetricSummary{}
	}
	return MetricSummary{
		Median: ptr(round4(Median(vals))),
		P10:    ptr(round4(Percentile(vals, 10))),
		P90:    ptr(round4(Percentile(vals, 90))),
	}
}

// Median returns the middle value of vals, averaging the two middle
// elements for even counts. Returns NaN for an empty slice. The input is
// not mutated; a copy is sorted internally.
func Median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return math.NaN()
	}
	s := sortedCopy(vals)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Percentile returns the p-th percentile (0-100) of vals using linear
// interpolation between closest ranks: for sorted values and index
// i = p/100*(n-1), the result interpolates between s[floor(i)] and
// s[ceil(i)]. Returns NaN for an empty slice. The input is not mutated.
func Percentile(vals []float64, p float64) float64 {
	n := len(vals)
	if n == 0 {
		return math.NaN()
	}
	s := sortedCopy(vals)
	if n == 1 {
		return s[0]
	}
	idx := p / 100 * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo < 0 {
		return s[0]
	}
	if hi >= n {
		return s[n-1]
	}
	if lo == hi {
		return s[lo]
	}
	frac := idx - float64(lo)
	return s[lo] + frac*(s[hi]-s[lo])
}

func sortedCopy(vals []float64) []float64 {
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)
	return s
}
