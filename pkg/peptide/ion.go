package peptide

import (
	"fmt"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
)

// SiteRef points at a residue of one peptidoform in an ion.
type SiteRef struct {
	Peptidoform int
	Index       int
}

// Link joins two sites of a PeptidoformIon. Kind is CrossLink or Branch.
type Link struct {
	Label string
	Kind  ModKind
	A, B  SiteRef
}

// Adduct is one charge carrier species, for example 2 Na+.
type Adduct struct {
	Count   int
	Formula chem.Formula // the neutral atoms, or a single electron
	Charge  int          // per ion
}

// Carrier returns the formula of one ion of this adduct including the
// electron change.
func (a Adduct) Carrier() chem.Formula {
	if a.Formula.Equal(chem.ElectronFormula) {
		return a.Formula
	}
	return a.Formula.Add(chem.ElectronFormula.Scale(-a.Charge))
}

// Charge is a precursor charge state with optional explicit adducts. Without
// adducts the charge is carried by protons.
type Charge struct {
	Total   int
	Adducts []Adduct
}

// Carriers returns the summed formula of all charge carriers.
func (c Charge) Carriers() chem.Formula {
	if len(c.Adducts) == 0 {
		return chem.Proton.Scale(c.Total)
	}
	var f chem.Formula
	for _, a := range c.Adducts {
		f = f.Add(a.Carrier().Scale(a.Count))
	}
	return f
}

// InvalidChargeError reports a zero charge, or a charge range that is empty
// or includes 0. A single charge has Min == Max.
type InvalidChargeError struct {
	Min, Max int
}

func (e *InvalidChargeError) Error() string {
	if e.Min == e.Max {
		return fmt.Sprintf("invalid charge %d: must not be 0", e.Min)
	}
	return fmt.Sprintf("invalid charge range %d..%d: must be non-empty and exclude 0", e.Min, e.Max)
}

// PeptidoformIon is one or more peptidoforms joined by cross-links or
// branches, stored as an arena indexed by Link sites.
type PeptidoformIon struct {
	Peptidoforms []Peptidoform
	Links        []Link
	Charge       *Charge
}

// Formula is the neutral formula of all joined peptidoforms. Each cross-link
// or branch condenses nothing by itself; linker chemistry is carried by the
// linker modification.
func (ion *PeptidoformIon) Formula() chem.Formula {
	var f chem.Formula
	for i := range ion.Peptidoforms {
		f = f.Add(ion.Peptidoforms[i].Formula())
	}
	return f
}

// Mass returns the neutral mass.
func (ion *PeptidoformIon) Mass(mode chem.MassMode) float64 {
	return ion.Formula().Mass(mode)
}

// MZ returns the precursor m/z for the ion's charge, or for z protons when
// the ion has no charge of its own. A zero charge is an
// *InvalidChargeError.
func (ion *PeptidoformIon) MZ(mode chem.MassMode, z int) (float64, error) {
	charge := Charge{Total: z}
	if ion.Charge != nil {
		charge = *ion.Charge
	}
	if charge.Total == 0 {
		return 0, &InvalidChargeError{}
	}
	total := ion.Formula().Add(charge.Carriers())
	mz := total.Mass(mode) / float64(charge.Total)
	if mz < 0 {
		return -mz, nil
	}
	return mz, nil
}

// LinksAt returns the links touching a site.
func (ion *PeptidoformIon) LinksAt(ref SiteRef) []Link {
	var out []Link
	for _, l := range ion.Links {
		if l.A == ref || l.B == ref {
			out = append(out, l)
		}
	}
	return out
}

// Partners returns the indices of the peptidoforms reachable from start over
// links, excluding start itself, in breadth-first order. Paths never pass
// through a blocked peptidoform.
func (ion *PeptidoformIon) Partners(start int, blocked ...int) []int {
	seen := map[int]bool{start: true}
	for _, b := range blocked {
		seen[b] = true
	}
	queue := []int{start}
	var out []int
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, l := range ion.Links {
			var next int
			switch {
			case l.A.Peptidoform == cur:
				next = l.B.Peptidoform
			case l.B.Peptidoform == cur:
				next = l.A.Peptidoform
			default:
				continue
			}
			if !seen[next] {
				seen[next] = true
				out = append(out, next)
				queue = append(queue, next)
			}
		}
	}
	return out
}

// CompoundPeptidoformIon is a chimeric set of peptidoform ions. It is the
// top-level result of parsing.
type CompoundPeptidoformIon struct {
	Members []PeptidoformIon
}

// Singular returns the only peptidoform when the compound is one linear
// peptidoform.
func (c *CompoundPeptidoformIon) Singular() (*Peptidoform, bool) {
	if len(c.Members) != 1 || len(c.Members[0].Peptidoforms) != 1 {
		return nil, false
	}
	return &c.Members[0].Peptidoforms[0], true
}
