package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unbounded stands in for a missing ceiling maximum (largest exactly
// representable integer).
const Unbounded float64 = 1<<53 - 1

// Ceiling is an inclusive spending-ceiling range encoded as "<min>_<max>".
// Either side may be blank: a blank min means 0, a blank max means Unbounded.
type Ceiling struct {
	min, max       float64
	hasMin, hasMax bool
	set            bool
}

// Range returns the ceiling [min, max].
func Range(min, max float64) Ceiling {
	return Ceiling{min: min, max: max, hasMin: true, hasMax: true, set: true}
}

// AtLeast returns the ceiling [min, Unbounded].
func AtLeast(min float64) Ceiling {
	return Ceiling{min: min, hasMin: true, set: true}
}

// AtMost returns the ceiling [0, max].
func AtMost(max float64) Ceiling {
	return Ceiling{max: max, hasMax: true, set: true}
}

// ParseCeiling decodes the channel encoding. The empty string is the empty
// ceiling; a value without the separator or with non-numeric bounds fails with
// ErrInvalidValue.
func ParseCeiling(s string) (Ceiling, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ceiling{}, nil
	}

	minRaw, maxRaw, ok := strings.Cut(s, periodSeparator)
	if !ok {
		return Ceiling{}, fmt.Errorf("%w: ceiling %q", ErrInvalidValue, s)
	}

	c := Ceiling{set: true}
	if minRaw = strings.TrimSpace(minRaw); minRaw != "" {
		v, err := parseAmount(minRaw)
		if err != nil {
			return Ceiling{}, fmt.Errorf("%w: ceiling min %q", ErrInvalidValue, minRaw)
		}
		c.min, c.hasMin = v, true
	}
	if maxRaw = strings.TrimSpace(maxRaw); maxRaw != "" {
		v, err := parseAmount(maxRaw)
		if err != nil {
			return Ceiling{}, fmt.Errorf("%w: ceiling max %q", ErrInvalidValue, maxRaw)
		}
		c.max, c.hasMax = v, true
	}
	return c, nil
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("amount out of range: %s", s)
	}
	return v, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// String returns the channel encoding; ParseCeiling(c.String()) equals c.
func (c Ceiling) String() string {
	if !c.set {
		return ""
	}
	var b strings.Builder
	if c.hasMin {
		b.WriteString(formatAmount(c.min))
	}
	b.WriteString(periodSeparator)
	if c.hasMax {
		b.WriteString(formatAmount(c.max))
	}
	return b.String()
}

func (c Ceiling) IsZero() bool { return !c.set }

// Bounds returns the effective inclusive range with defaults applied.
func (c Ceiling) Bounds() (min, max float64) {
	min, max = 0, Unbounded
	if c.hasMin {
		min = c.min
	}
	if c.hasMax {
		max = c.max
	}
	return min, max
}

// Contains reports whether v lies in the inclusive range. The empty ceiling
// contains everything.
func (c Ceiling) Contains(v float64) bool {
	if !c.set {
		return true
	}
	min, max := c.Bounds()
	return v >= min && v <= max
}

func (c Ceiling) Equal(o Ceiling) bool {
	return c.set == o.set &&
		c.hasMin == o.hasMin && c.hasMax == o.hasMax &&
		(!c.hasMin || c.min == o.min) &&
		(!c.hasMax || c.max == o.max)
}
