package screening

import "fmt"

// ValidatePartition checks that bands cover every integer in [0, max] exactly
// once. Bands must be listed in ascending order.
func ValidatePartition(bands []Band, max int) error {
	if len(bands) == 0 {
		return fmt.Errorf("%w: no bands", ErrInvalidPartition)
	}
	if max < 0 {
		return fmt.Errorf("%w: negative max score %d", ErrInvalidPartition, max)
	}

	next := 0
	for i, b := range bands {
		if b.Label == "" {
			return fmt.Errorf("%w: band %d has no label", ErrInvalidPartition, i)
		}
		if b.Low > b.High {
			return fmt.Errorf("%w: band %q is inverted (%d-%d)", ErrInvalidPartition, b.Label, b.Low, b.High)
		}
		switch {
		case b.Low > next:
			return fmt.Errorf("%w: gap %d-%d before band %q", ErrInvalidPartition, next, b.Low-1, b.Label)
		case b.Low < next:
			return fmt.Errorf("%w: band %q overlaps previous band at %d", ErrInvalidPartition, b.Label, b.Low)
		}
		next = b.High + 1
	}

	if last := bands[len(bands)-1]; last.High != max {
		return fmt.Errorf("%w: bands end at %d, max score is %d", ErrInvalidPartition, last.High, max)
	}
	return nil
}

// resolveBand returns the band containing score. Scores outside the
// partition clamp to the nearest end; clamped reports whether that happened.
func resolveBand(bands []Band, score int) (band Band, clamped bool) {
	for _, b := range bands {
		if b.Contains(score) {
			return b, false
		}
	}
	if score < bands[0].Low {
		return bands[0], true
	}
	return bands[len(bands)-1], true
}
