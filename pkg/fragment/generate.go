// Package fragment computes theoretical product ions of peptidoform ions.
package fragment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PFKey/pkg/ambiguity"
	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/glycan"
	"github.com/ChrisMcGann/PFKey/pkg/peptide"
)

// Fragment is one theoretical ion. Formula is the neutral formula; MZ adds
// Charge carriers. Start and End delimit the backbone residues it contains.
type Fragment struct {
	Series  Series
	Ordinal int
	Start   int
	End     int
	Charge  int
	Formula chem.Formula
	Neutral float64
	MZ      float64
	// Loss is the formula of a neutral loss, empty for intact ions.
	Loss string
	// Name identifies non-backbone ions: the immonium residue, the glycan
	// fragment or the diagnostic formula.
	Name        string
	Peptidoform int
	Member      int
}

// Label returns an annotation such as "b3", "y7^2-H2O" or "imm(M[Oxidation])".
func (f Fragment) Label() string {
	var sb strings.Builder
	switch {
	case f.Series.Backbone() || f.Series.Satellite():
		sb.WriteString(f.Series.String())
		sb.WriteString(strconv.Itoa(f.Ordinal))
	case f.Series == Precursor:
		sb.WriteString("M")
	case f.Series == Immonium:
		sb.WriteString("imm(" + f.Name + ")")
	case f.Series == Diagnostic:
		sb.WriteString("diag(" + f.Name + ")")
	default:
		sb.WriteString(f.Name)
	}
	if f.Charge != 1 {
		sb.WriteString("^")
		sb.WriteString(strconv.Itoa(f.Charge))
	}
	if f.Loss != "" {
		sb.WriteString("-")
		sb.WriteString(f.Loss)
	}
	return sb.String()
}

type generator struct {
	model    Model
	ion      *peptide.PeptidoformIon
	resolved []peptide.Peptidoform
	out      []Fragment
}

// Generate fragments every peptidoform of the ion. Ambiguous modifications
// are placed at their default positions; use GenerateVariants for the
// alternatives. A cross-linked partner chain stays attached, with its
// linker, to the residue it is linked to.
func Generate(ion *peptide.PeptidoformIon, model Model) ([]Fragment, error) {
	if err := model.Charge.Validate(); err != nil {
		return nil, err
	}
	g := &generator{model: model, ion: ion}
	for i := range ion.Peptidoforms {
		set, err := ambiguity.Resolve(ion.Peptidoforms[i])
		if err != nil {
			return nil, fmt.Errorf("peptidoform %d: %w", i, err)
		}
		g.resolved = append(g.resolved, set.Default().Peptidoform)
	}
	for i := range g.resolved {
		g.peptidoform(i)
	}
	if model.Has(Precursor) {
		g.precursor()
	}
	return g.out, nil
}

// GenerateCompound fragments every chimeric member independently and tags
// the fragments with the member index.
func GenerateCompound(c *peptide.CompoundPeptidoformIon, model Model) ([]Fragment, error) {
	var out []Fragment
	for i := range c.Members {
		frags, err := Generate(&c.Members[i], model)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		for j := range frags {
			frags[j].Member = i
		}
		out = append(out, frags...)
	}
	return out, nil
}

// VariantFragments pairs one ambiguity variant with its fragments.
type VariantFragments struct {
	Variant   ambiguity.Variant
	Fragments []Fragment
}

// GenerateVariants fragments up to limit variants of an ambiguity set; a
// limit of 0 or less enumerates all of them.
func GenerateVariants(set *ambiguity.VariantSet, model Model, limit int) ([]VariantFragments, error) {
	seq := set.All()
	if limit > 0 {
		seq = set.Limit(limit)
	}
	var out []VariantFragments
	for v := range seq {
		ion := &peptide.PeptidoformIon{Peptidoforms: []peptide.Peptidoform{v.Peptidoform}}
		frags, err := Generate(ion, model)
		if err != nil {
			return nil, err
		}
		out = append(out, VariantFragments{Variant: v, Fragments: frags})
	}
	return out, nil
}

func chainFormula(pf *peptide.Peptidoform) chem.Formula {
	return pf.ApplyIsotopes(pf.BareFormula())
}

// attachments returns, per residue of peptidoform pi, the formula of the
// partner chains linked there. Chains reachable only through another
// partner are attached together with that partner.
func (g *generator) attachments(pi int) []chem.Formula {
	att := make([]chem.Formula, g.resolved[pi].Len())
	assigned := map[int]bool{pi: true}
	for idx := range att {
		here := peptide.SiteRef{Peptidoform: pi, Index: idx}
		for _, l := range g.ion.LinksAt(here) {
			there := l.B
			if l.B == here {
				there = l.A
			}
			if assigned[there.Peptidoform] {
				continue
			}
			group := append([]int{there.Peptidoform}, g.ion.Partners(there.Peptidoform, pi)...)
			for _, cur := range group {
				if assigned[cur] {
					continue
				}
				assigned[cur] = true
				att[idx] = att[idx].Add(chainFormula(&g.resolved[cur]))
			}
		}
	}
	return att
}

// modLosses collects the ontology neutral losses of the residues in
// [start,end).
func modLosses(pf *peptide.Peptidoform, start, end int) []chem.Formula {
	var out []chem.Formula
	for i := start; i < end && i < pf.Len(); i++ {
		for _, m := range pf.Sequence[i].Mods {
			if def := m.Definition(); def != nil {
				out = append(out, def.NeutralLosses(pf.Site(i))...)
			}
		}
	}
	return out
}

func (g *generator) peptidoform(pi int) {
	pf := &g.resolved[pi]
	n := pf.Len()
	att := g.attachments(pi)

	res := make([]chem.Formula, n)
	prefix := make([]chem.Formula, n+1)
	attPrefix := make([]chem.Formula, n+1)
	prefix[0] = pf.NTermFormula().Sub(chem.Hydrogen)
	for i := 0; i < n; i++ {
		res[i] = pf.ResidueFormula(i)
		prefix[i+1] = prefix[i].Add(res[i])
		attPrefix[i+1] = attPrefix[i].Add(att[i])
	}
	cterm := pf.CTermFormula().Add(chem.Hydrogen)
	total := prefix[n].Sub(prefix[0])

	emit := func(s Series, ordinal, start, end int, raw, attached chem.Formula) {
		if !g.model.Has(s) {
			return
		}
		f := Fragment{
			Series: s, Ordinal: ordinal, Start: start, End: end,
			Formula: pf.ApplyIsotopes(raw).Add(attached), Peptidoform: pi,
		}
		g.withLosses(f, pf, s.Backbone())
	}

	for k := 1; k < n; k++ {
		nRaw, nAtt := prefix[k], attPrefix[k]
		emit(A, k, 0, k, nRaw.Sub(chem.CarbonMonoxide), nAtt)
		emit(B, k, 0, k, nRaw, nAtt)
		emit(C, k, 0, k, nRaw.Add(chem.Ammonia), nAtt)
		for _, sat := range pf.Sequence[k-1].AminoAcid.SatelliteLosses() {
			emit(D, k, 0, k, nRaw.Sub(chem.CarbonMonoxide).Sub(sat), nAtt)
		}

		first := n - k
		cRaw := total.Sub(prefix[first].Sub(prefix[0])).Add(cterm)
		cAtt := attPrefix[n].Sub(attPrefix[first])
		emit(X, k, first, n, cRaw.Add(chem.CarbonMonoxide).Sub(chem.Hydrogen.Scale(2)), cAtt)
		emit(Y, k, first, n, cRaw, cAtt)
		zRaw := cRaw.Sub(chem.Ammonia).Add(chem.Hydrogen)
		emit(Z, k, first, n, zRaw, cAtt)
		aa := pf.Sequence[first].AminoAcid
		for _, sat := range aa.SatelliteLosses() {
			emit(W, k, first, n, zRaw.Sub(sat), cAtt)
		}
		if !aa.Placeholder() {
			emit(V, k, first, n, cRaw.Sub(aa.SideChain()).Add(chem.Hydrogen), cAtt)
		}
	}

	if g.model.Has(Immonium) {
		seen := make(map[string]bool)
		for i := 0; i < n; i++ {
			el := pf.Sequence[i]
			if el.AminoAcid.Placeholder() && len(el.Mods) == 0 {
				continue
			}
			name := el.AminoAcid.String()
			for _, m := range el.Mods {
				name += "[" + m.String() + "]"
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			f := Fragment{
				Series: Immonium, Ordinal: 1, Start: i, End: i + 1, Name: name,
				Formula: pf.ApplyIsotopes(res[i].Sub(chem.CarbonMonoxide)), Peptidoform: pi,
			}
			g.singlyCharged(f)
		}
	}

	if g.model.Diagnostic {
		g.diagnostics(pf, pi)
	}
	if g.model.Glycan {
		g.glycans(pf, pi)
	}
}

func (g *generator) diagnostics(pf *peptide.Peptidoform, pi int) {
	seen := make(map[string]bool)
	visit := func(m peptide.Modification) {
		def := m.Definition()
		if def == nil {
			return
		}
		for _, ion := range def.DiagnosticIons {
			name := ion.String()
			if seen[name] {
				continue
			}
			seen[name] = true
			g.singlyCharged(Fragment{Series: Diagnostic, Name: name, Formula: ion, Peptidoform: pi})
		}
	}
	for _, el := range pf.Sequence {
		for _, m := range el.Mods {
			visit(m)
		}
	}
	for _, group := range [][]peptide.Modification{pf.NTerm, pf.CTerm, pf.Labile} {
		for _, m := range group {
			visit(m)
		}
	}
	for _, gm := range pf.Global {
		if !gm.Isotope {
			visit(gm.Mod)
		}
	}
}

func glycanOf(m peptide.Modification) glycan.Composition {
	switch {
	case m.Kind == peptide.GlycanMod:
		return m.Glycan
	case m.Kind == peptide.Named && m.Def != nil:
		return m.Def.Glycan
	}
	return nil
}

func (g *generator) glycans(pf *peptide.Peptidoform, pi int) {
	precursor := g.precursorBare()
	seen := make(map[string]bool)
	emit := func(f Fragment) {
		key := f.Name + "/" + f.Formula.String()
		if seen[key] {
			return
		}
		seen[key] = true
		g.charged(f)
	}
	attached := func(m peptide.Modification, at int) {
		comp := glycanOf(m)
		if len(comp) == 0 {
			return
		}
		for _, gf := range comp.Fragments() {
			f := Fragment{Name: gf.Label(), Start: at, End: at + 1, Peptidoform: pi}
			switch gf.Kind {
			case glycan.B:
				f.Series, f.Formula = GlycanB, gf.Formula
			case glycan.Y:
				if at < 0 {
					continue
				}
				f.Series = GlycanY
				f.Formula = precursor.Sub(comp.Formula()).Add(gf.Formula)
			default:
				f.Series, f.Formula = GlycanInternal, gf.Formula
			}
			emit(f)
		}
	}
	for i, el := range pf.Sequence {
		for _, m := range el.Mods {
			attached(m, i)
		}
	}
	for _, m := range pf.Labile {
		attached(m, -1)
	}
}

// precursorBare is the ion without labile modifications.
func (g *generator) precursorBare() chem.Formula {
	var f chem.Formula
	for i := range g.resolved {
		f = f.Add(chainFormula(&g.resolved[i]))
	}
	return f
}

func (g *generator) precursor() {
	var full chem.Formula
	for i := range g.resolved {
		full = full.Add(g.resolved[i].Formula())
	}
	end := 0
	if len(g.resolved) > 0 {
		end = g.resolved[0].Len()
	}
	base := Fragment{Series: Precursor, End: end, Formula: full}
	g.withLosses(base, nil, true)

	bare := g.precursorBare()
	if lost := full.Sub(bare); !lost.IsZero() {
		f := base
		f.Formula = bare
		f.Loss = lost.String()
		g.charged(f)
	}
}

// withLosses emits f and, for backbone and precursor ions, its neutral loss
// variants. A nil pf means the precursor: losses of every chain apply.
func (g *generator) withLosses(f Fragment, pf *peptide.Peptidoform, losses bool) {
	g.charged(f)
	if !losses {
		return
	}
	var all []chem.Formula
	all = append(all, g.model.Losses...)
	if g.model.NeutralLosses {
		if pf != nil {
			all = append(all, modLosses(pf, f.Start, f.End)...)
		} else {
			for i := range g.resolved {
				all = append(all, modLosses(&g.resolved[i], 0, g.resolved[i].Len())...)
			}
		}
	}
	seen := make(map[string]bool)
	for _, loss := range all {
		name := loss.String()
		if seen[name] {
			continue
		}
		seen[name] = true
		lf := f
		lf.Formula = f.Formula.Sub(loss)
		lf.Loss = name
		g.charged(lf)
	}
}

// allowed reports whether fragment charge z fits the precursor charge.
func (g *generator) allowed(z int) bool {
	if g.ion.Charge == nil {
		return true
	}
	total := g.ion.Charge.Total
	if (z > 0) != (total > 0) {
		return false
	}
	return abs(z) <= abs(total)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// charged expands f over the model charge range. Precursor ions with an
// explicit charge state use that state and its adducts instead.
func (g *generator) charged(f Fragment) {
	mode := g.model.MassMode
	neutral := f.Formula.Mass(mode)
	if f.Series == Precursor && g.ion.Charge != nil {
		c := *g.ion.Charge
		f.Charge = c.Total
		f.Neutral = neutral
		f.MZ = abs64(f.Formula.Add(c.Carriers()).Mass(mode) / float64(c.Total))
		g.out = append(g.out, f)
		return
	}
	for _, z := range g.model.Charge.Charges() {
		if !g.allowed(z) {
			continue
		}
		cf := f
		cf.Charge = z
		cf.Neutral = neutral
		cf.MZ = abs64(f.Formula.Add(chem.Proton.Scale(z)).Mass(mode) / float64(z))
		g.out = append(g.out, cf)
	}
}

// singlyCharged emits f at charge +1 or -1, following the model polarity.
func (g *generator) singlyCharged(f Fragment) {
	z := 1
	if g.model.Charge.Max < 0 {
		z = -1
	}
	if !g.allowed(z) {
		return
	}
	mode := g.model.MassMode
	f.Charge = z
	f.Neutral = f.Formula.Mass(mode)
	f.MZ = abs64(f.Formula.Add(chem.Proton.Scale(z)).Mass(mode))
	g.out = append(g.out, f)
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
