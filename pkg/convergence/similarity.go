package convergence

import (
	"errors"
	"fmt"
	"image"
)

// ErrDimensionMismatch is returned when two frames of different sizes are
// compared. Capture regions are fixed per trial, so a mismatch indicates a
// region-computation defect upstream, not a recoverable condition.
var ErrDimensionMismatch = errors.New("frame dimensions differ")

// channelTolerance is the per-channel difference below which two pixels
// are considered equal. It absorbs anti-aliased edges and sub-perceptual
// decode differences without hiding real paint progress.
const channelTolerance = 16

// Similarity returns a score in [0,1] for two equal-size rasters: 1.0 for
// pixel-identical (within the per-channel tolerance), lower the more
// pixels differ. The score is 1 - mismatched/total.
//
// Deterministic for identical inputs; neither image is modified.
func Similarity(a, b *image.RGBA) (float64, error) {
	aw, ah := a.Bounds().Dx(), a.Bounds().Dy()
	bw, bh := b.Bounds().Dx(), b.Bounds().Dy()
	if aw != bw || ah != bh {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, aw, ah, bw, bh)
	}

	total := aw * ah
	if total == 0 {
		return 1, nil
	}

	mismatched := 0
	for y := 0; y < ah; y++ {
		ao := a.PixOffset(a.Bounds().Min.X, a.Bounds().Min.Y+y)
		bo := b.PixOffset(b.Bounds().Min.X, b.Bounds().Min.Y+y)
		for x := 0; x < aw; x++ {
			if !pixelsMatch(a.Pix[ao:ao+4], b.Pix[bo:bo+4]) {
				mismatched++
			}
			ao += 4
			bo += 4
		}
	}

	return 1 - float64(mismatched)/float64(total), nil
}

// pixelsMatch compares one RGBA pixel per channel under channelTolerance.
func pixelsMatch(pa, pb []byte) bool {
	for c := 0; c < 4; c++ {
		d := int(pa[c]) - int(pb[c])
		if d < 0 {
			d = -d
		}
		if d > channelTolerance {
			return false
		}
	}
	return true
}
