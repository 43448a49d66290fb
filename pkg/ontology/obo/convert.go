package obo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/glycan"
	"github.com/ChrisMcGann/PFKey/pkg/ontology"
)

// SkipError reports a term left out of a converted table.
type SkipError struct {
	ID     string
	Reason error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skipped %s: %v", e.ID, e.Reason)
}

func (e *SkipError) Unwrap() error { return e.Reason }

// setChemistry stores f as a formula, or as a bare mass when f has no
// composition left to write.
func setChemistry(e *ontology.TableEntry, f chem.Formula, mass string) error {
	if f.HasComposition() {
		e.Formula = f.String()
		return nil
	}
	if mass == "" {
		zero := 0.0
		e.Mass = &zero
		return nil
	}
	m, err := strconv.ParseFloat(mass, 64)
	if err != nil {
		return fmt.Errorf("bad mass '%s'", mass)
	}
	e.Mass = &m
	return nil
}

// accession returns the part of "UNIMOD:35" after the colon when the prefix
// matches.
func accession(s *Stanza, prefix string) (string, bool) {
	p, id, ok := strings.Cut(s.Tag("id"), ":")
	if !ok || !strings.EqualFold(p, prefix) {
		return "", false
	}
	return id, true
}

// ruleSet merges placement rules that share position and losses, so that
// "K anywhere" and "R anywhere" become "KR anywhere".
type ruleSet struct {
	order []string
	rules map[string]*ontology.TableRule
}

func (rs *ruleSet) add(residue, position string, losses []string) {
	if rs.rules == nil {
		rs.rules = make(map[string]*ontology.TableRule)
	}
	key := position + "|" + strings.Join(losses, ",")
	if residue == "" {
		key = "term|" + key
	}
	r, ok := rs.rules[key]
	if !ok {
		r = &ontology.TableRule{Position: position, Losses: losses}
		rs.rules[key] = r
		rs.order = append(rs.order, key)
	}
	if !strings.Contains(r.Residues, residue) {
		r.Residues += residue
	}
}

func (rs *ruleSet) list() []ontology.TableRule {
	out := make([]ontology.TableRule, 0, len(rs.order))
	for _, key := range rs.order {
		out = append(out, *rs.rules[key])
	}
	return out
}

// site maps an ontology site spelling to a residue letter and position. A
// terminus gives an empty residue.
func site(text, anywhere string) (residue, position string, ok bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	switch t {
	case "n-term", "any n-term":
		return "", "any_n_term", true
	case "c-term", "any c-term":
		return "", "any_c_term", true
	case "protein n-term":
		return "", "protein_n_term", true
	case "protein c-term":
		return "", "protein_c_term", true
	case "x":
		return "", anywhere, true
	case "":
		return "", "", false
	}
	if len(t) == 1 && t[0] >= 'a' && t[0] <= 'z' {
		return strings.ToUpper(t), anywhere, true
	}
	return "", "", false
}

// unimodPosition maps spec_N_position values.
func unimodPosition(text string) string {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "any n-term":
		return "any_n_term"
	case "any c-term":
		return "any_c_term"
	case "protein n-term":
		return "protein_n_term"
	case "protein c-term":
		return "protein_c_term"
	}
	return "anywhere"
}

// Unimod converts the Unimod OBO release. Placement rules come from the
// spec_N_site and spec_N_position properties, neutral losses from
// spec_N_neutral_loss_M_composition.
func Unimod(doc *Document) ([]ontology.TableEntry, []error) {
	var out []ontology.TableEntry
	var skipped []error
	for _, s := range doc.Terms() {
		id, ok := accession(s, "UNIMOD")
		if !ok || id == "0" {
			continue
		}
		e := ontology.TableEntry{ID: id, Name: s.Tag("name")}
		f, err := UnimodFormula(s.Prop("delta_composition"))
		if err == nil {
			err = setChemistry(&e, f, s.Prop("delta_mono_mass"))
		}
		if err != nil {
			skipped = append(skipped, &SkipError{ID: "UNIMOD:" + id, Reason: err})
			continue
		}

		var specs []int
		for name := range s.Props {
			if n, ok := specIndex(name, "_site"); ok {
				specs = append(specs, n)
			}
		}
		sort.Ints(specs)
		var rules ruleSet
		for _, n := range specs {
			prefix := "spec_" + strconv.Itoa(n) + "_"
			position := unimodPosition(s.Prop(prefix + "position"))
			residue, pos, ok := site(s.Prop(prefix+"site"), position)
			if !ok {
				continue
			}
			// A terminal site is protein or peptide level as its position says.
			if residue == "" && position != "anywhere" {
				pos = position
			}
			rules.add(residue, pos, unimodLosses(s, prefix))
		}
		e.Rules = rules.list()
		out = append(out, e)
	}
	return out, skipped
}

// specIndex extracts N from "spec_N<suffix>".
func specIndex(name, suffix string) (int, bool) {
	if !strings.HasPrefix(name, "spec_") || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "spec_"), suffix))
	return n, err == nil
}

func unimodLosses(s *Stanza, prefix string) []string {
	var losses []string
	for name, values := range s.Props {
		if !strings.HasPrefix(name, prefix+"neutral_loss_") || !strings.HasSuffix(name, "_composition") {
			continue
		}
		for _, v := range values {
			f, err := UnimodFormula(v)
			if err != nil || !f.HasComposition() {
				continue
			}
			losses = append(losses, f.String())
		}
	}
	sort.Strings(losses)
	return losses
}

// psimodRules reads the Origin and TermSpec properties.
func psimodRules(s *Stanza) ([]ontology.TableRule, int) {
	position := "anywhere"
	switch strings.ToLower(s.Prop("TermSpec")) {
	case "n-term":
		position = "any_n_term"
	case "c-term":
		position = "any_c_term"
	}
	origins := strings.Split(s.Prop("Origin"), ",")
	var rules ruleSet
	n := 0
	for _, o := range origins {
		residue, pos, ok := site(o, position)
		if !ok {
			continue
		}
		n++
		rules.add(residue, pos, nil)
	}
	return rules.list(), n
}

// PSIMOD converts the PSI-MOD OBO release. Terms without a DiffFormula fall
// back to DiffMono; terms with neither are skipped. Cross-link terms get a
// valence equal to their number of origins.
func PSIMOD(doc *Document) ([]ontology.TableEntry, []error) {
	var out []ontology.TableEntry
	var skipped []error
	for _, s := range doc.Terms() {
		id, ok := accession(s, "MOD")
		if !ok {
			continue
		}
		e, err := psimodEntry(s, id)
		if err != nil {
			skipped = append(skipped, &SkipError{ID: "MOD:" + id, Reason: err})
			continue
		}
		out = append(out, e)
	}
	return out, skipped
}

func psimodEntry(s *Stanza, id string) (ontology.TableEntry, error) {
	e := ontology.TableEntry{ID: id, Name: s.Tag("name")}
	formula, mass := s.Prop("DiffFormula"), s.Prop("DiffMono")
	if formula == "" && mass == "" {
		return e, fmt.Errorf("no DiffFormula or DiffMono")
	}
	var f chem.Formula
	if formula != "" {
		var err error
		if f, err = PSIMODFormula(formula); err != nil {
			return e, err
		}
	}
	if err := setChemistry(&e, f, mass); err != nil {
		return e, err
	}
	var origins int
	e.Rules, origins = psimodRules(s)
	if origins > 1 && strings.Contains(strings.ToLower(e.Name), "cross-link") {
		e.Valence = origins
	}
	return e, nil
}

// RESID derives the RESID table from the RESID cross references carried in
// PSI-MOD definitions. RESID entries keep only the delta mass, and the
// first PSI-MOD term naming an accession wins.
func RESID(doc *Document) ([]ontology.TableEntry, []error) {
	var out []ontology.TableEntry
	var skipped []error
	seen := make(map[string]bool)
	for _, s := range doc.Terms() {
		for _, ref := range s.DefRefs() {
			p, id, ok := strings.Cut(ref, ":")
			if !ok || p != "RESID" || seen[id] {
				continue
			}
			seen[id] = true
			mass, err := strconv.ParseFloat(s.Prop("DiffMono"), 64)
			if err != nil {
				skipped = append(skipped, &SkipError{ID: ref, Reason: fmt.Errorf("no DiffMono on %s", s.Tag("id"))})
				continue
			}
			name := s.Tag("name")
			if names := s.Synonyms("RESID-name"); len(names) > 0 {
				name = names[0]
			}
			rules, _ := psimodRules(s)
			out = append(out, ontology.TableEntry{ID: id, Name: name, Mass: &mass, Rules: rules})
		}
	}
	return out, skipped
}

// XLMOD converts the XLMOD OBO release. Only reagent terms with a
// bridgeFormula (valence 2) or deadEndFormula (valence 1), or a
// monoIsotopicMass with reactionSites, are kept.
func XLMOD(doc *Document) ([]ontology.TableEntry, []error) {
	var out []ontology.TableEntry
	var skipped []error
	for _, s := range doc.Terms() {
		id, ok := accession(s, "XLMOD")
		if !ok {
			continue
		}
		sites, _ := strconv.Atoi(s.Prop("reactionSites"))
		mass := s.Prop("monoIsotopicMass")
		e := ontology.TableEntry{ID: id, Name: s.Tag("name")}
		formula := s.Prop("bridgeFormula")
		switch {
		case formula != "":
			e.Valence = 2
		case s.Prop("deadEndFormula") != "":
			formula = s.Prop("deadEndFormula")
		case mass == "" || sites == 0:
			continue
		case sites > 1:
			e.Valence = sites
		}
		var f chem.Formula
		var err error
		if formula != "" {
			f, err = XLMODFormula(formula)
		}
		if err == nil {
			err = setChemistry(&e, f, mass)
		}
		if err != nil {
			skipped = append(skipped, &SkipError{ID: "XLMOD:" + id, Reason: err})
			continue
		}

		// "(K,S,T,Y,Protein N-term)&(E,D)" lists the sites of each end.
		var rules ruleSet
		for _, side := range strings.Split(s.Prop("specificities"), "&") {
			for _, o := range strings.Split(strings.Trim(strings.TrimSpace(side), "()"), ",") {
				if residue, pos, ok := site(o, "anywhere"); ok {
					rules.add(residue, pos, nil)
				}
			}
		}
		e.Rules = rules.list()
		out = append(out, e)
	}
	return out, skipped
}

// gnoComposition is the GNOme property holding the short composition,
// e.g. "HexNAc(2)Hex(5)".
const gnoComposition = "GNO:00000101"

// GNO converts the GNOme OBO release. Only terms with a composition the
// glycan package can read are kept; the accession doubles as the name.
func GNO(doc *Document) ([]ontology.TableEntry, []error) {
	var out []ontology.TableEntry
	var skipped []error
	for _, s := range doc.Terms() {
		id, ok := accession(s, "GNO")
		if !ok {
			continue
		}
		text := s.Prop(gnoComposition)
		if text == "" {
			continue
		}
		comp, err := glycan.ParseComposition(text)
		if err != nil {
			skipped = append(skipped, &SkipError{ID: "GNO:" + id, Reason: err})
			continue
		}
		out = append(out, ontology.TableEntry{
			ID:          id,
			Name:        id,
			Composition: comp.String(),
			Rules:       []ontology.TableRule{{Residues: "NST", Position: "anywhere"}},
		})
	}
	return out, skipped
}
