package fragment

import (
	"fmt"
	"strings"
)

// Series is a fragment ion type.
type Series int

const (
	A Series = iota
	B
	C
	X
	Y
	Z
	D
	V
	W
	Immonium
	Precursor
	GlycanB
	GlycanY
	GlycanInternal
	Diagnostic
)

var seriesNames = map[Series]string{
	A:              "a",
	B:              "b",
	C:              "c",
	X:              "x",
	Y:              "y",
	Z:              "z",
	D:              "d",
	V:              "v",
	W:              "w",
	Immonium:       "imm",
	Precursor:      "precursor",
	GlycanB:        "glycan_b",
	GlycanY:        "glycan_y",
	GlycanInternal: "glycan_internal",
	Diagnostic:     "diagnostic",
}

func (s Series) String() string {
	if name, ok := seriesNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Series(%d)", int(s))
}

// ParseSeries accepts the names printed by String, case-insensitively.
func ParseSeries(name string) (Series, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range seriesNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown ion series '%s'", name)
}

// NTerminal reports whether the series keeps the N-terminus.
func (s Series) NTerminal() bool { return s == A || s == B || s == C || s == D }

// CTerminal reports whether the series keeps the C-terminus.
func (s Series) CTerminal() bool { return s == X || s == Y || s == Z || s == V || s == W }

// Backbone reports whether the series is a/b/c/x/y/z.
func (s Series) Backbone() bool { return s <= Z }

// Satellite reports whether the series is d/v/w.
func (s Series) Satellite() bool { return s == D || s == V || s == W }

// Glycan reports whether the series is a glycosidic fragment.
func (s Series) Glycan() bool { return s == GlycanB || s == GlycanY || s == GlycanInternal }

// Priority orders series for annotation ties: backbone, precursor,
// satellite, glycan, then diagnostic and immonium ions.
func (s Series) Priority() int {
	switch {
	case s.Backbone():
		return 0
	case s == Precursor:
		return 1
	case s.Satellite():
		return 2
	case s.Glycan():
		return 3
	}
	return 4
}
