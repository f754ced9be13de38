package convergence

import "math"

// Thresholds for the time-to-completeness metrics.
const (
	thresholdT85 = 0.85
	thresholdT95 = 0.95
)

// Analyze reduces a timeline to its point metrics, using the last frame
// as the convergence target.
//
// Degenerate inputs have defined outputs rather than errors: an empty
// timeline yields all-nil metrics, a single-frame timeline is treated as
// instantaneous convergence (completeness 1.0 at offset 0, all metrics 0),
// and a zero-duration timeline (tEnd <= t0) yields all-zero metrics.
//
// A similarity failure (mismatched frame dimensions) is propagated: it
// signals a capture-region defect, not an analyzable timeline.
func Analyze(tl Timeline) (Metrics, error) {
	if len(tl) == 0 {
		return Metrics{}, nil
	}
	if len(tl) == 1 {
		return Metrics{T85: ptr(0), T95: ptr(0), VisIndex: ptr(0)}, nil
	}

	target := tl[len(tl)-1]
	completeness := make([]float64, len(tl))
	for i := range tl {
		score, err := Similarity(tl[i].Img, target.Img)
		if err != nil {
			return Metrics{}, err
		}
		completeness[i] = clamp01(score)
	}

	t0 := tl[0].T
	tEnd := tl[len(tl)-1].T
	if tEnd <= t0 {
		return Metrics{T85: ptr(0), T95: ptr(0), VisIndex: ptr(0)}, nil
	}

	var m Metrics
	for i := range tl {
		if m.T85 == nil && completeness[i] >= thresholdT85 {
			m.T85 = ptr(round4(tl[i].T))
		}
		if m.T95 == nil && completeness[i] >= thresholdT95 {
			m.T95 = ptr(round4(tl[i].T))
		}
	}

	// Left-Riemann integral of incompleteness, normalized by total
	// elapsed time. Lower means faster visual convergence.
	var area float64
	for i := 1; i < len(tl); i++ {
		area += (1 - completeness[i-1]) * (tl[i].T - tl[i-1].T)
	}
	m.VisIndex = ptr(round4(area / (tEnd - t0)))

	return m, nil
}

// round4 rounds to 4 decimal digits for stable comparison and
// serialization of derived metrics.
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func ptr(v float64) *float64 {
	return &v
}
