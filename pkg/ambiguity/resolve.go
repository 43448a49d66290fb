// Package ambiguity expands the positional ambiguity of a peptidoform into
// concrete variants. Expansion is lazy: a VariantSet enumerates placements on
// demand and only Default materializes a single one.
package ambiguity

import (
	"fmt"
	"iter"
	"math"
	"math/big"
	"sort"

	"github.com/ChrisMcGann/PFKey/pkg/ontology"
	"github.com/ChrisMcGann/PFKey/pkg/peptide"
)

// InvalidPlacementError reports a modification whose placement rules leave
// fewer admissible residues than it needs.
type InvalidPlacementError struct {
	Modification string
	Label        string
	Admissible   int
	Required     int
}

func (e *InvalidPlacementError) Error() string {
	name := e.Modification
	if e.Label != "" {
		name += "#" + e.Label
	}
	return fmt.Sprintf("modification '%s' needs %d site(s) but its rules admit %d", name, e.Required, e.Admissible)
}

type candidate struct {
	index     int
	score     *float64
	preferred bool
}

// slot is one modification to place: k of the candidate residues.
type slot struct {
	name       string
	mod        peptide.Modification
	count      int
	candidates []candidate
}

// Choice records where one slot was placed.
type Choice struct {
	Slot  string
	Sites []int
}

// Variant is one concrete placement. Score sums the localization scores of
// the chosen sites; Scored is false when none of them had a score.
type Variant struct {
	Peptidoform peptide.Peptidoform
	Path        []Choice
	Score       float64
	Scored      bool
}

// VariantSet is the restartable set of placements of one peptidoform.
type VariantSet struct {
	base  peptide.Peptidoform
	slots []slot
}

// Resolve validates the fixed modifications of p against their placement
// rules and collects the ambiguous ones into slots.
func Resolve(p peptide.Peptidoform) (*VariantSet, error) {
	for i, el := range p.Sequence {
		for _, m := range el.Mods {
			if m.Kind == peptide.Named && !m.Allowed(p.Site(i)) {
				return nil, &InvalidPlacementError{Modification: m.Name(), Required: 1}
			}
		}
	}
	for _, term := range []struct {
		mods []peptide.Modification
		t    ontology.Terminal
	}{{p.NTerm, ontology.NTerminal}, {p.CTerm, ontology.CTerminal}} {
		for _, m := range term.mods {
			if m.Kind == peptide.Named && !m.Allowed(p.TerminalSite(term.t)) {
				return nil, &InvalidPlacementError{Modification: m.Name(), Required: 1}
			}
		}
	}

	set := &VariantSet{base: p.Clone()}
	set.base.Ambiguous = nil
	set.base.Unknown = nil

	for _, g := range p.Ambiguous {
		s := slot{name: g.Label, mod: g.Mod.WithoutLabel(), count: 1}
		for _, site := range g.Sites {
			if site.Index < 0 || site.Index >= p.Len() || !g.Mod.Allowed(p.Site(site.Index)) {
				continue
			}
			s.candidates = append(s.candidates, candidate{index: site.Index, score: site.Score, preferred: site.Preferred})
		}
		if len(s.candidates) < s.count {
			return nil, &InvalidPlacementError{Modification: g.Mod.Name(), Label: g.Label, Admissible: len(s.candidates), Required: s.count}
		}
		set.slots = append(set.slots, s)
	}

	for _, u := range p.Unknown {
		if u.Count < 1 {
			continue
		}
		start, end := 0, p.Len()
		if u.Ranged {
			start, end = max(u.Start, 0), min(u.End, p.Len())
		}
		s := slot{name: u.Mod.Name(), mod: u.Mod, count: u.Count}
		for i := start; i < end; i++ {
			if u.Mod.Allowed(p.Site(i)) {
				s.candidates = append(s.candidates, candidate{index: i})
			}
		}
		if len(s.candidates) < s.count {
			return nil, &InvalidPlacementError{Modification: u.Mod.Name(), Admissible: len(s.candidates), Required: s.count}
		}
		set.slots = append(set.slots, s)
	}
	return set, nil
}

// Count returns the number of variants, the product over slots of C(n, k).
// It saturates at math.MaxInt64.
func (s *VariantSet) Count() int64 {
	total := big.NewInt(1)
	var b big.Int
	for _, sl := range s.slots {
		total.Mul(total, b.Binomial(int64(len(sl.candidates)), int64(sl.count)))
	}
	if !total.IsInt64() {
		return math.MaxInt64
	}
	return total.Int64()
}

// Ambiguous reports whether more than one variant exists.
func (s *VariantSet) Ambiguous() bool { return s.Count() > 1 }

// All enumerates every variant in a fixed order. The sequence may be ranged
// over more than once.
func (s *VariantSet) All() iter.Seq[Variant] {
	return func(yield func(Variant) bool) {
		combos := make([][]int, len(s.slots))
		for i, sl := range s.slots {
			combos[i] = firstCombination(sl.count)
		}
		for {
			if !yield(s.build(combos)) {
				return
			}
			k := len(s.slots) - 1
			for ; k >= 0; k-- {
				if nextCombination(combos[k], len(s.slots[k].candidates)) {
					break
				}
				combos[k] = firstCombination(s.slots[k].count)
			}
			if k < 0 {
				return
			}
		}
	}
}

// Limit enumerates at most n variants.
func (s *VariantSet) Limit(n int) iter.Seq[Variant] {
	return func(yield func(Variant) bool) {
		if n <= 0 {
			return
		}
		seen := 0
		for v := range s.All() {
			if !yield(v) {
				return
			}
			seen++
			if seen == n {
				return
			}
		}
	}
}

// Default returns the most specific placement: preferred sites first, then
// the highest scores, then the earliest candidates.
func (s *VariantSet) Default() Variant {
	combos := make([][]int, len(s.slots))
	for i, sl := range s.slots {
		order := make([]int, len(sl.candidates))
		for j := range order {
			order[j] = j
		}
		sort.SliceStable(order, func(a, b int) bool {
			ca, cb := sl.candidates[order[a]], sl.candidates[order[b]]
			if ca.preferred != cb.preferred {
				return ca.preferred
			}
			return scoreOf(ca) > scoreOf(cb)
		})
		chosen := append([]int(nil), order[:sl.count]...)
		sort.Ints(chosen)
		combos[i] = chosen
	}
	return s.build(combos)
}

func scoreOf(c candidate) float64 {
	if c.score == nil {
		return math.Inf(-1)
	}
	return *c.score
}

func (s *VariantSet) build(combos [][]int) Variant {
	v := Variant{Peptidoform: s.base.Clone()}
	for i, sl := range s.slots {
		choice := Choice{Slot: sl.name, Sites: make([]int, len(combos[i]))}
		for j, c := range combos[i] {
			cand := sl.candidates[c]
			choice.Sites[j] = cand.index
			el := &v.Peptidoform.Sequence[cand.index]
			el.Mods = append(el.Mods, sl.mod)
			if cand.score != nil {
				v.Score += *cand.score
				v.Scored = true
			}
		}
		v.Path = append(v.Path, choice)
	}
	return v
}

func firstCombination(k int) []int {
	c := make([]int, k)
	for i := range c {
		c[i] = i
	}
	return c
}

// nextCombination advances c to the next k-subset of [0,n) in lexicographic
// order and reports false after the last one.
func nextCombination(c []int, n int) bool {
	k := len(c)
	i := k - 1
	for i >= 0 && c[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	c[i]++
	for j := i + 1; j < k; j++ {
		c[j] = c[j-1] + 1
	}
	return true
}
