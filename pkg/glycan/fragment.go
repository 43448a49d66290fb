package glycan

import "github.com/ChrisMcGann/PFKey/pkg/chem"

// FragmentKind separates the glycan fragment series.
type FragmentKind int

const (
	// B ions keep the non-reducing end only.
	B FragmentKind = iota
	// Y ions keep the reducing end, still attached to the peptide.
	Y
	// Internal ions are cleaved on both sides.
	Internal
)

func (k FragmentKind) String() string {
	switch k {
	case B:
		return "B"
	case Y:
		return "Y"
	}
	return "internal"
}

// Fragment is one glycan sub-composition produced by glycosidic cleavage.
// For Y fragments Formula holds only the retained monosaccharides; the caller
// adds the peptide.
type Fragment struct {
	Kind        FragmentKind
	Composition Composition
	Formula     chem.Formula
}

// Label returns a short annotation such as "B[HexNAc2]" or "Y[0]".
func (f Fragment) Label() string {
	comp := f.Composition.String()
	if comp == "" {
		comp = "0"
	}
	if f.Kind == Internal {
		return "int[" + comp + "]"
	}
	return f.Kind.String() + "[" + comp + "]"
}

// Fragments enumerates the B, Y and internal fragments of the composition,
// treating it as a chain in composition order, reducing end first, with one
// cleavable linkage per step. Each distinct sub-composition is reported once
// per kind.
func (c Composition) Fragments() []Fragment {
	runs := make(Composition, 0, len(c))
	for _, part := range c {
		if part.Count > 0 {
			runs = append(runs, part)
		}
	}
	n := runs.Size()
	var out []Fragment
	seen := make(map[FragmentKind]map[string]bool)
	emit := func(kind FragmentKind, comp Composition) {
		key := comp.String()
		if seen[kind] == nil {
			seen[kind] = make(map[string]bool)
		}
		if seen[kind][key] {
			return
		}
		seen[kind][key] = true
		out = append(out, Fragment{Kind: kind, Composition: comp, Formula: comp.Formula()})
	}

	// Y keeps units [0, k) for k < n.
	for k := 0; k < n; k++ {
		emit(Y, runs.span(0, k))
	}
	// B keeps units [n-j, n) for j >= 1.
	for j := 1; j <= n; j++ {
		emit(B, runs.span(n-j, n))
	}
	// Internal keeps units [i, j) with 1 <= i < j <= n-1. Inside one run
	// only the length matters; a span reaching into a later run is fixed by
	// its start position and its end position.
	offsets := make([]int, len(runs)+1)
	for r, part := range runs {
		offsets[r+1] = offsets[r] + part.Count
	}
	for r, part := range runs {
		lo := max(offsets[r], 1)
		for l := 1; l <= min(offsets[r+1], n-1)-lo; l++ {
			emit(Internal, Composition{{Mono: part.Mono, Count: l}})
		}
		for i := lo; i < offsets[r+1]; i++ {
			for s := r + 1; s < len(runs); s++ {
				for j := offsets[s] + 1; j <= offsets[s+1] && j <= n-1; j++ {
					emit(Internal, runs.span(i, j))
				}
			}
		}
	}
	return out
}

// span returns the sub-composition of units [from, to) of the chain.
func (c Composition) span(from, to int) Composition {
	var comp Composition
	pos := 0
	for _, part := range c {
		lo, hi := max(from, pos), min(to, pos+part.Count)
		if hi > lo {
			comp = append(comp, Count{Mono: part.Mono, Count: hi - lo})
		}
		pos += part.Count
	}
	return comp
}
