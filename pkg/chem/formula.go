package chem

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// MassMode selects how a formula is turned into a mass.
type MassMode int

const (
	Monoisotopic MassMode = iota
	Average
)

func (m MassMode) String() string {
	if m == Average {
		return "average"
	}
	return "monoisotopic"
}

// ParseMassMode accepts "mono", "monoisotopic", "avg" and "average".
func ParseMassMode(s string) (MassMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mono", "monoisotopic":
		return Monoisotopic, nil
	case "avg", "average":
		return Average, nil
	}
	return Monoisotopic, fmt.Errorf("unknown mass mode '%s'", s)
}

// Term is one (element, isotope) entry of a formula. Isotope 0 means the
// natural mixture.
type Term struct {
	Element Element
	Isotope uint16
	Count   int
}

// Formula is an exact signed elemental composition. Terms are kept sorted by
// element and isotope and never hold a zero count. Extra carries mass that has
// no known composition, such as an observed delta mass.
type Formula struct {
	terms []Term
	extra float64
}

// Common formulas.
var (
	Water           = NewFormula(Term{Element: H, Count: 2}, Term{Element: O, Count: 1})
	Ammonia         = NewFormula(Term{Element: N, Count: 1}, Term{Element: H, Count: 3})
	CarbonMonoxide  = NewFormula(Term{Element: C, Count: 1}, Term{Element: O, Count: 1})
	Hydrogen        = NewFormula(Term{Element: H, Count: 1})
	ElectronFormula = NewFormula(Term{Element: Electron, Count: 1})
	// Proton is a hydrogen atom that lost its electron.
	Proton = NewFormula(Term{Element: H, Count: 1}, Term{Element: Electron, Count: -1})
)

// NewFormula builds a formula from terms, merging duplicates and pruning
// zero counts.
func NewFormula(terms ...Term) Formula {
	return Formula{terms: normalize(append([]Term(nil), terms...))}
}

// MassOnly returns a formula with no composition and the given extra mass.
func MassOnly(mass float64) Formula {
	return Formula{extra: mass}
}

func normalize(terms []Term) []Term {
	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].Element != terms[j].Element {
			return terms[i].Element < terms[j].Element
		}
		return terms[i].Isotope < terms[j].Isotope
	})
	out := terms[:0]
	for _, t := range terms {
		if n := len(out); n > 0 && out[n-1].Element == t.Element && out[n-1].Isotope == t.Isotope {
			out[n-1].Count += t.Count
			continue
		}
		out = append(out, t)
	}
	pruned := out[:0]
	for _, t := range out {
		if t.Count != 0 {
			pruned = append(pruned, t)
		}
	}
	if len(pruned) == 0 {
		return nil
	}
	return pruned
}

// Terms returns a copy of the formula terms in canonical order.
func (f Formula) Terms() []Term {
	return append([]Term(nil), f.terms...)
}

// Extra returns the mass-only part of the formula.
func (f Formula) Extra() float64 { return f.extra }

// IsZero reports whether the formula is empty and has no extra mass.
func (f Formula) IsZero() bool { return len(f.terms) == 0 && f.extra == 0 }

// HasComposition reports whether the formula has any elemental terms.
func (f Formula) HasComposition() bool { return len(f.terms) > 0 }

// Add returns f + o.
func (f Formula) Add(o Formula) Formula {
	if len(o.terms) == 0 {
		return Formula{terms: f.terms, extra: f.extra + o.extra}
	}
	terms := make([]Term, 0, len(f.terms)+len(o.terms))
	terms = append(terms, f.terms...)
	terms = append(terms, o.terms...)
	return Formula{terms: normalize(terms), extra: f.extra + o.extra}
}

// Sub returns f - o.
func (f Formula) Sub(o Formula) Formula {
	return f.Add(o.Neg())
}

// Scale returns n copies of f.
func (f Formula) Scale(n int) Formula {
	if n == 0 {
		return Formula{}
	}
	terms := make([]Term, len(f.terms))
	for i, t := range f.terms {
		t.Count *= n
		terms[i] = t
	}
	return Formula{terms: terms, extra: f.extra * float64(n)}
}

// Neg returns -f.
func (f Formula) Neg() Formula { return f.Scale(-1) }

// Equal reports structural equality. Extra masses compare within 1e-9 Da.
func (f Formula) Equal(o Formula) bool {
	if len(f.terms) != len(o.terms) {
		return false
	}
	for i := range f.terms {
		if f.terms[i] != o.terms[i] {
			return false
		}
	}
	return math.Abs(f.extra-o.extra) < 1e-9
}

// Count returns the count for an element and isotope.
func (f Formula) Count(e Element, isotope uint16) int {
	for _, t := range f.terms {
		if t.Element == e && t.Isotope == isotope {
			return t.Count
		}
	}
	return 0
}

// Charge returns the net charge implied by missing or extra electrons.
func (f Formula) Charge() int {
	return -f.Count(Electron, 0)
}

// Mass evaluates the formula. It panics with *UnknownIsotopeError when a term
// is not in the element table.
func (f Formula) Mass(mode MassMode) float64 {
	mass := 0.0
	for _, t := range f.terms {
		info, ok := t.Element.Info()
		if !ok {
			panic(&UnknownIsotopeError{Element: t.Element, Isotope: t.Isotope})
		}
		var m float64
		switch {
		case t.Isotope != 0:
			var found bool
			m, found = t.Element.isotopeMass(t.Isotope)
			if !found {
				panic(&UnknownIsotopeError{Element: t.Element, Isotope: t.Isotope})
			}
		case mode == Average:
			m = info.Average
		default:
			m = info.Monoisotopic
		}
		mass += float64(t.Count) * m
	}
	return mass + f.extra
}

// MonoisotopicMass is shorthand for Mass(Monoisotopic).
func (f Formula) MonoisotopicMass() float64 { return f.Mass(Monoisotopic) }

// AverageMass is shorthand for Mass(Average).
func (f Formula) AverageMass() float64 { return f.Mass(Average) }

// WithIsotope replaces every natural-abundance count of e by the given isotope.
func (f Formula) WithIsotope(e Element, isotope uint16) Formula {
	terms := f.Terms()
	for i, t := range terms {
		if t.Element == e && t.Isotope == 0 {
			terms[i].Isotope = isotope
		}
	}
	return Formula{terms: normalize(terms), extra: f.extra}
}

// String renders the formula in ProForma formula notation: carbon and hydrogen
// first, then the other elements alphabetically, isotopes as [13C2].
func (f Formula) String() string {
	terms := f.Terms()
	rank := func(t Term) (int, string) {
		switch t.Element {
		case C:
			return 0, ""
		case H:
			return 1, ""
		case Electron:
			return 3, ""
		}
		return 2, t.Element.Symbol()
	}
	sort.SliceStable(terms, func(i, j int) bool {
		ri, si := rank(terms[i])
		rj, sj := rank(terms[j])
		if ri != rj {
			return ri < rj
		}
		if si != sj {
			return si < sj
		}
		return terms[i].Isotope < terms[j].Isotope
	})

	var sb strings.Builder
	for _, t := range terms {
		if t.Isotope != 0 {
			fmt.Fprintf(&sb, "[%d%s%d]", t.Isotope, t.Element.Symbol(), t.Count)
			continue
		}
		sb.WriteString(t.Element.Symbol())
		if t.Count != 1 {
			sb.WriteString(strconv.Itoa(t.Count))
		}
	}
	if f.extra != 0 || sb.Len() == 0 {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(strconv.FormatFloat(f.extra, 'f', -1, 64))
	}
	return sb.String()
}
