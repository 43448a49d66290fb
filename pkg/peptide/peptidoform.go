package peptide

import (
	"fmt"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/ontology"
)

// SequenceElement is one backbone position. AmbiguousGroup is non-zero when
// the residue is part of a (?...) stretch of unknown order; elements of the
// same stretch share the id.
type SequenceElement struct {
	AminoAcid      AminoAcid
	Mods           []Modification
	AmbiguousGroup int
}

// GlobalTarget is one "@" target of a fixed global modification. Residue 0
// matches any residue at a terminal target.
type GlobalTarget struct {
	Residue  AminoAcid
	Terminal ontology.Terminal
}

// GlobalModification is either an isotope label (<13C>) or a fixed
// modification applied to every matching site (<[Carbamidomethyl]@C>).
type GlobalModification struct {
	Isotope    bool
	Element    chem.Element
	MassNumber uint16

	Mod     Modification
	Targets []GlobalTarget
}

// Matches reports whether a fixed global modification applies to the element
// at index in a peptide of length n.
func (g GlobalModification) Matches(aa AminoAcid, index, n int, terminal ontology.Terminal) bool {
	for _, t := range g.Targets {
		if t.Terminal != terminal {
			continue
		}
		switch terminal {
		case ontology.NTerminal:
			if index != 0 {
				continue
			}
		case ontology.CTerminal:
			if index != n-1 {
				continue
			}
		}
		if t.Residue == 0 || t.Residue == aa {
			return true
		}
	}
	return false
}

// UnknownModification is placed somewhere on the peptidoform. Ranged
// modifications are limited to residues Start..End-1, written as
// "(SEQ)[mod]"; the others are written in front as "[mod]^count?".
type UnknownModification struct {
	Mod    Modification
	Count  int
	Ranged bool
	Start  int
	End    int
}

// AmbiguousSite is one candidate position of a labelled group.
type AmbiguousSite struct {
	Index     int
	Score     *float64
	Preferred bool
}

// AmbiguousGroup is a modification whose position is one of Sites, written
// with a shared label (S[Phospho#g1]T[#g1]). Prefix groups were defined in
// the unknown-position section ([Phospho#s1]?) and have no preferred site.
type AmbiguousGroup struct {
	Label  string
	Mod    Modification
	Sites  []AmbiguousSite
	Prefix bool
}

// Peptidoform is one linear chain with all its modifications.
type Peptidoform struct {
	Sequence  []SequenceElement
	NTerm     []Modification
	CTerm     []Modification
	Labile    []Modification
	Global    []GlobalModification
	Unknown   []UnknownModification
	Ambiguous []AmbiguousGroup
}

// Len returns the number of residues.
func (p *Peptidoform) Len() int { return len(p.Sequence) }

// Site describes residue index for placement rules.
func (p *Peptidoform) Site(index int) ontology.Site {
	return ontology.Site{
		Residue: byte(p.Sequence[index].AminoAcid),
		First:   index == 0,
		Last:    index == len(p.Sequence)-1,
	}
}

// TerminalSite describes a terminal modification slot.
func (p *Peptidoform) TerminalSite(t ontology.Terminal) ontology.Site {
	site := ontology.Site{Terminal: t}
	if len(p.Sequence) == 0 {
		return site
	}
	if t == ontology.NTerminal {
		site.Residue = byte(p.Sequence[0].AminoAcid)
		site.First = true
	} else {
		site.Residue = byte(p.Sequence[len(p.Sequence)-1].AminoAcid)
		site.Last = true
	}
	return site
}

func sumMods(mods []Modification) chem.Formula {
	var f chem.Formula
	for _, m := range mods {
		f = f.Add(m.Chemistry())
	}
	return f
}

// globalFixed sums the fixed global modifications that apply at index for
// the given terminal slot.
func (p *Peptidoform) globalFixed(index int, terminal ontology.Terminal) chem.Formula {
	var f chem.Formula
	if index < 0 || index >= len(p.Sequence) {
		return f
	}
	aa := p.Sequence[index].AminoAcid
	for _, g := range p.Global {
		if !g.Isotope && g.Matches(aa, index, len(p.Sequence), terminal) {
			f = f.Add(g.Mod.Chemistry())
		}
	}
	return f
}

// ResidueFormula is the residue at index with its own modifications and the
// fixed global modifications that apply to it. Isotope labels are not
// applied; see ApplyIsotopes.
func (p *Peptidoform) ResidueFormula(index int) chem.Formula {
	el := p.Sequence[index]
	return el.AminoAcid.Formula().Add(sumMods(el.Mods)).Add(p.globalFixed(index, ontology.NotTerminal))
}

// NTermFormula is the N-terminal hydrogen plus N-terminal modifications.
func (p *Peptidoform) NTermFormula() chem.Formula {
	return chem.Hydrogen.Add(sumMods(p.NTerm)).Add(p.globalFixed(0, ontology.NTerminal))
}

// CTermFormula is the C-terminal hydroxyl plus C-terminal modifications.
func (p *Peptidoform) CTermFormula() chem.Formula {
	oh := chem.Water.Sub(chem.Hydrogen)
	return oh.Add(sumMods(p.CTerm)).Add(p.globalFixed(len(p.Sequence)-1, ontology.CTerminal))
}

// UnplacedFormula sums the modifications not (yet) attached to a residue:
// unknown-position, ranged and ambiguous-group modifications.
func (p *Peptidoform) UnplacedFormula() chem.Formula {
	var f chem.Formula
	for _, u := range p.Unknown {
		f = f.Add(u.Mod.Chemistry().Scale(u.Count))
	}
	for _, g := range p.Ambiguous {
		f = f.Add(g.Mod.Chemistry())
	}
	return f
}

// LabileFormula sums the labile modifications.
func (p *Peptidoform) LabileFormula() chem.Formula { return sumMods(p.Labile) }

// ApplyIsotopes applies the global isotope labels to a formula.
func (p *Peptidoform) ApplyIsotopes(f chem.Formula) chem.Formula {
	for _, g := range p.Global {
		if g.Isotope {
			f = f.WithIsotope(g.Element, g.MassNumber)
		}
	}
	return f
}

// BareFormula is the neutral chain without labile modifications and without
// isotope labels.
func (p *Peptidoform) BareFormula() chem.Formula {
	f := p.NTermFormula().Add(p.CTermFormula())
	for i := range p.Sequence {
		f = f.Add(p.ResidueFormula(i))
	}
	return f.Add(p.UnplacedFormula())
}

// Formula is the full neutral molecule including labile modifications, with
// isotope labels applied.
func (p *Peptidoform) Formula() chem.Formula {
	return p.ApplyIsotopes(p.BareFormula().Add(p.LabileFormula()))
}

// HasAmbiguity reports whether any modification still lacks a single
// position.
func (p *Peptidoform) HasAmbiguity() bool {
	return len(p.Unknown) > 0 || len(p.Ambiguous) > 0
}

// Clone returns a deep copy. Nil slices stay nil.
func (p Peptidoform) Clone() Peptidoform {
	out := p
	if p.Sequence != nil {
		out.Sequence = make([]SequenceElement, len(p.Sequence))
		for i, el := range p.Sequence {
			el.Mods = cloneMods(el.Mods)
			out.Sequence[i] = el
		}
	}
	out.NTerm = cloneMods(p.NTerm)
	out.CTerm = cloneMods(p.CTerm)
	out.Labile = cloneMods(p.Labile)
	if p.Global != nil {
		out.Global = append([]GlobalModification(nil), p.Global...)
	}
	if p.Unknown != nil {
		out.Unknown = append([]UnknownModification(nil), p.Unknown...)
	}
	if p.Ambiguous != nil {
		out.Ambiguous = make([]AmbiguousGroup, len(p.Ambiguous))
		for i, g := range p.Ambiguous {
			g.Sites = append([]AmbiguousSite(nil), g.Sites...)
			out.Ambiguous[i] = g
		}
	}
	return out
}

func cloneMods(mods []Modification) []Modification {
	if mods == nil {
		return nil
	}
	return append([]Modification(nil), mods...)
}

// SequenceString returns the bare residue letters.
func (p *Peptidoform) SequenceString() string {
	b := make([]byte, len(p.Sequence))
	for i, el := range p.Sequence {
		b[i] = byte(el.AminoAcid)
	}
	return string(b)
}

// UnresolvedLabelError reports a cross-link, branch or ambiguity label that
// is referenced but never defined.
type UnresolvedLabelError struct {
	Label string
}

func (e *UnresolvedLabelError) Error() string {
	return fmt.Sprintf("label '#%s' has no defining modification", e.Label)
}
