package annotate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unit is the unit of a mass tolerance.
type Unit int

const (
	Dalton Unit = iota
	PPM
)

func (u Unit) String() string {
	if u == PPM {
		return "ppm"
	}
	return "da"
}

// Tolerance is a symmetric mass window, absolute or relative to the
// theoretical m/z.
type Tolerance struct {
	Value float64
	Unit  Unit
}

// ParseTolerance accepts forms like "20ppm", "20 ppm", "0.02da" and "0.02Th".
func ParseTolerance(text string) (Tolerance, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	var tol Tolerance
	switch {
	case strings.HasSuffix(s, "ppm"):
		tol.Unit, s = PPM, strings.TrimSuffix(s, "ppm")
	case strings.HasSuffix(s, "da"):
		s = strings.TrimSuffix(s, "da")
	case strings.HasSuffix(s, "th"):
		s = strings.TrimSuffix(s, "th")
	default:
		return Tolerance{}, fmt.Errorf("tolerance '%s' needs a unit (ppm or da)", text)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return Tolerance{}, fmt.Errorf("invalid tolerance '%s'", text)
	}
	tol.Value = v
	return tol, nil
}

func (t Tolerance) String() string {
	return strconv.FormatFloat(t.Value, 'f', -1, 64) + t.Unit.String()
}

// Width returns the half-width of the window in Dalton around a
// theoretical m/z.
func (t Tolerance) Width(theoretical float64) float64 {
	if t.Unit == PPM {
		return math.Abs(theoretical) * t.Value * 1e-6
	}
	return t.Value
}

// Within reports whether observed lies in the window around theoretical.
// Both bounds are inclusive.
func (t Tolerance) Within(theoretical, observed float64) bool {
	return math.Abs(observed-theoretical) <= t.Width(theoretical)
}

// bounds returns an m/z range that contains every theoretical value whose
// window can include observed.
func (t Tolerance) bounds(observed float64) (lo, hi float64) {
	if t.Unit == PPM {
		r := t.Value * 1e-6
		lo = observed / (1 + r)
		hi = observed * 2
		if r < 1 {
			hi = observed / (1 - r)
		}
		return lo - 1e-9, hi + 1e-9
	}
	return observed - t.Value - 1e-9, observed + t.Value + 1e-9
}

// PPMError is the signed error of observed relative to theoretical.
func PPMError(theoretical, observed float64) float64 {
	return (observed - theoretical) / theoretical * 1e6
}
