// Package proforma parses ProForma 2.0 peptidoform notation into the
// peptide model. Parsing is a single left-to-right pass followed by label
// resolution; every malformed input gives a typed error.
package proforma

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/ontology"
	"github.com/ChrisMcGann/PFKey/pkg/peptide"
)

type parser struct {
	text   string
	pos    int
	tables *ontology.Tables

	// links collects cross-link and branch occurrences of the current ion.
	links []linkOccurrence
}

type linkOccurrence struct {
	label   string
	kind    peptide.ModKind
	site    peptide.SiteRef
	mod     int
	defines bool
}

type ambiguityOccurrence struct {
	label  string
	index  int
	prefix bool
	pm     parsedMod
}

// Parse reads ProForma notation. Nil tables select ontology.Default().
func Parse(text string, tables *ontology.Tables) (*peptide.CompoundPeptidoformIon, error) {
	if tables == nil {
		tables = ontology.Default()
	}
	p := &parser{text: text, tables: tables}
	return p.compound()
}

// ParsePeptidoform parses notation that must describe a single linear
// peptidoform, without cross-links or chimeric members.
func ParsePeptidoform(text string, tables *ontology.Tables) (*peptide.Peptidoform, error) {
	c, err := Parse(text, tables)
	if err != nil {
		return nil, err
	}
	pf, ok := c.Singular()
	if !ok {
		return nil, &SyntaxError{Offset: 0, Expected: "a single peptidoform", Found: fmt.Sprintf("%d members", len(c.Members))}
	}
	return pf, nil
}

func (p *parser) peek() byte {
	if p.pos >= len(p.text) {
		return 0
	}
	return p.text[p.pos]
}

func (p *parser) errorf(expected string) error {
	return &SyntaxError{Offset: p.pos, Expected: expected, Found: found(p.text, p.pos)}
}

func (p *parser) compound() (*peptide.CompoundPeptidoformIon, error) {
	c := &peptide.CompoundPeptidoformIon{}
	for {
		ion, err := p.ion()
		if err != nil {
			return nil, err
		}
		c.Members = append(c.Members, *ion)
		if p.pos >= len(p.text) {
			return c, nil
		}
		if p.peek() != '+' {
			return nil, p.errorf("'+', '//', charge or end of input")
		}
		p.pos++
	}
}

func (p *parser) ion() (*peptide.PeptidoformIon, error) {
	ion := &peptide.PeptidoformIon{}
	p.links = nil
	for {
		pf, err := p.peptidoform(len(ion.Peptidoforms))
		if err != nil {
			return nil, err
		}
		ion.Peptidoforms = append(ion.Peptidoforms, *pf)
		if strings.HasPrefix(p.text[p.pos:], "//") {
			p.pos += 2
			continue
		}
		break
	}
	if p.peek() == '/' {
		charge, err := p.charge()
		if err != nil {
			return nil, err
		}
		ion.Charge = charge
	}
	if err := resolveLinks(ion, p.links); err != nil {
		return nil, err
	}
	return ion, nil
}

type prefixEntry struct {
	pm     parsedMod
	count  int
	caret  bool
	offset int
}

func (p *parser) peptidoform(index int) (*peptide.Peptidoform, error) {
	pf := &peptide.Peptidoform{}
	var ambiguous []ambiguityOccurrence

	for p.peek() == '<' {
		g, err := p.global()
		if err != nil {
			return nil, err
		}
		pf.Global = append(pf.Global, g)
	}

	nterm := false
	if p.peek() == '[' {
		var entries []prefixEntry
		for p.peek() == '[' {
			e := prefixEntry{offset: p.pos, count: 1}
			pm, err := p.modification()
			if err != nil {
				return nil, err
			}
			e.pm = pm
			if p.peek() == '^' {
				p.pos++
				start := p.pos
				for p.pos < len(p.text) && p.text[p.pos] >= '0' && p.text[p.pos] <= '9' {
					p.pos++
				}
				n, err := strconv.Atoi(p.text[start:p.pos])
				if err != nil || n < 1 || p.pos-start > 6 {
					p.pos = start
					return nil, p.errorf("positive count after '^'")
				}
				e.count, e.caret = n, true
			}
			entries = append(entries, e)
		}
		switch p.peek() {
		case '?':
			p.pos++
			for _, e := range entries {
				switch e.pm.class {
				case noLabel:
					pf.Unknown = append(pf.Unknown, peptide.UnknownModification{Mod: e.pm.mod, Count: e.count})
				case ambiguityLabel:
					if e.pm.ref || e.caret || e.pm.score != nil {
						return nil, &LabelError{Offset: e.offset, Label: e.pm.label, Message: "unknown-position group needs a single scoreless definition"}
					}
					ambiguous = append(ambiguous, ambiguityOccurrence{label: e.pm.label, index: -1, prefix: true, pm: e.pm})
				default:
					return nil, &LabelError{Offset: e.offset, Label: e.pm.label, Message: "cross-links are not allowed on unknown-position modifications"}
				}
			}
		case '-':
			p.pos++
			for _, e := range entries {
				if e.caret {
					return nil, &SyntaxError{Offset: e.offset, Expected: "'?' after a counted modification", Found: "'-'"}
				}
				if e.pm.class != noLabel {
					return nil, &LabelError{Offset: e.offset, Label: e.pm.label, Message: "labels are not allowed on terminal modifications"}
				}
				pf.NTerm = append(pf.NTerm, e.pm.mod)
			}
			nterm = true
		default:
			return nil, p.errorf("'?' or '-' after prefix modification")
		}
	}

	if !nterm {
		for p.peek() == '{' {
			b, err := p.readBlock('{', '}')
			if err != nil {
				return nil, err
			}
			pm, err := p.parseBlock(b)
			if err != nil {
				return nil, err
			}
			if pm.class != noLabel {
				return nil, &LabelError{Offset: b.offset, Label: pm.label, Message: "labels are not allowed on labile modifications"}
			}
			pf.Labile = append(pf.Labile, pm.mod)
		}
		if p.peek() == '[' {
			mods, err := p.terminalMods()
			if err != nil {
				return nil, err
			}
			if p.peek() != '-' {
				return nil, p.errorf("'-' after N-terminal modification")
			}
			p.pos++
			pf.NTerm = mods
		}
	}

	occ, err := p.sequence(pf, index)
	if err != nil {
		return nil, err
	}
	ambiguous = append(ambiguous, occ...)

	if p.peek() == '-' {
		p.pos++
		if p.peek() != '[' {
			return nil, p.errorf("'[' after '-'")
		}
		mods, err := p.terminalMods()
		if err != nil {
			return nil, err
		}
		pf.CTerm = mods
	}

	if err := resolveAmbiguity(pf, ambiguous); err != nil {
		return nil, err
	}
	return pf, nil
}

func (p *parser) terminalMods() ([]peptide.Modification, error) {
	var mods []peptide.Modification
	for p.peek() == '[' {
		pm, err := p.modification()
		if err != nil {
			return nil, err
		}
		if pm.class != noLabel {
			return nil, &LabelError{Offset: pm.offset, Label: pm.label, Message: "labels are not allowed on terminal modifications"}
		}
		mods = append(mods, pm.mod)
	}
	return mods, nil
}

func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }

func (p *parser) sequence(pf *peptide.Peptidoform, index int) ([]ambiguityOccurrence, error) {
	var occ []ambiguityOccurrence
	group := 0
	for {
		c := p.peek()
		switch {
		case isLetter(c):
			o, err := p.residue(pf, index, 0)
			if err != nil {
				return nil, err
			}
			occ = append(occ, o...)
		case c == '(':
			open := p.pos
			p.pos++
			unordered := p.peek() == '?'
			if unordered {
				p.pos++
				group++
			}
			start := len(pf.Sequence)
			for isLetter(p.peek()) {
				g := 0
				if unordered {
					g = group
				}
				o, err := p.residue(pf, index, g)
				if err != nil {
					return nil, err
				}
				occ = append(occ, o...)
			}
			if len(pf.Sequence) == start {
				return nil, p.errorf("amino acid")
			}
			if p.peek() != ')' {
				return nil, p.errorf(fmt.Sprintf("amino acid or ')' closing offset %d", open))
			}
			p.pos++
			if unordered {
				continue
			}
			if p.peek() != '[' {
				return nil, p.errorf("'[' after ranged group")
			}
			for p.peek() == '[' {
				pm, err := p.modification()
				if err != nil {
					return nil, err
				}
				if pm.class != noLabel {
					return nil, &LabelError{Offset: pm.offset, Label: pm.label, Message: "labels are not allowed on ranged modifications"}
				}
				pf.Unknown = append(pf.Unknown, peptide.UnknownModification{
					Mod: pm.mod, Count: 1, Ranged: true, Start: start, End: len(pf.Sequence),
				})
			}
		default:
			if len(pf.Sequence) == 0 {
				return nil, p.errorf("amino acid")
			}
			return occ, nil
		}
	}
}

func (p *parser) residue(pf *peptide.Peptidoform, index, group int) ([]ambiguityOccurrence, error) {
	aa, ok := peptide.ParseAminoAcid(p.peek())
	if !ok {
		return nil, p.errorf("amino acid")
	}
	p.pos++
	at := len(pf.Sequence)
	el := peptide.SequenceElement{AminoAcid: aa, AmbiguousGroup: group}
	var occ []ambiguityOccurrence
	for p.peek() == '[' {
		pm, err := p.modification()
		if err != nil {
			return nil, err
		}
		switch pm.class {
		case ambiguityLabel:
			occ = append(occ, ambiguityOccurrence{label: pm.label, index: at, pm: pm})
		case crossLinkLabel, branchLabel:
			el.Mods = append(el.Mods, pm.mod)
			p.links = append(p.links, linkOccurrence{
				label:   pm.label,
				kind:    pm.mod.Kind,
				site:    peptide.SiteRef{Peptidoform: index, Index: at},
				mod:     len(el.Mods) - 1,
				defines: !pm.ref,
			})
		default:
			el.Mods = append(el.Mods, pm.mod)
		}
	}
	pf.Sequence = append(pf.Sequence, el)
	return occ, nil
}

// global reads <13C>, <D> or <[Mod]@targets>.
func (p *parser) global() (peptide.GlobalModification, error) {
	var g peptide.GlobalModification
	open := p.pos
	p.pos++
	if p.peek() == '[' {
		pm, err := p.modification()
		if err != nil {
			return g, err
		}
		if pm.class != noLabel {
			return g, &LabelError{Offset: pm.offset, Label: pm.label, Message: "labels are not allowed on global modifications"}
		}
		if p.peek() != '@' {
			return g, p.errorf("'@' and target residues")
		}
		p.pos++
		g.Mod = pm.mod
		for {
			start := p.pos
			for p.pos < len(p.text) && p.text[p.pos] != ',' && p.text[p.pos] != '>' {
				p.pos++
			}
			t, ok := parseTarget(p.text[start:p.pos])
			if !ok {
				return g, &SyntaxError{Offset: start, Expected: "residue, N-term or C-term target", Found: fmt.Sprintf("%q", p.text[start:p.pos])}
			}
			g.Targets = append(g.Targets, t)
			if p.peek() == ',' {
				p.pos++
				continue
			}
			if p.peek() != '>' {
				return g, p.errorf(fmt.Sprintf("'>' closing offset %d", open))
			}
			p.pos++
			return g, nil
		}
	}

	start := p.pos
	for p.pos < len(p.text) && p.text[p.pos] != '>' {
		p.pos++
	}
	if p.pos >= len(p.text) {
		return g, p.errorf(fmt.Sprintf("'>' closing offset %d", open))
	}
	e, mass, ok := parseIsotope(p.text[start:p.pos])
	if !ok {
		return g, &SyntaxError{Offset: start, Expected: "isotope such as 13C or D", Found: fmt.Sprintf("%q", p.text[start:p.pos])}
	}
	p.pos++
	g.Isotope, g.Element, g.MassNumber = true, e, mass
	return g, nil
}

func parseTarget(s string) (peptide.GlobalTarget, bool) {
	var t peptide.GlobalTarget
	upper := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(upper, "N-TERM"):
		t.Terminal = ontology.NTerminal
		upper = upper[len("N-TERM"):]
	case strings.HasPrefix(upper, "C-TERM"):
		t.Terminal = ontology.CTerminal
		upper = upper[len("C-TERM"):]
	}
	if t.Terminal != ontology.NotTerminal {
		if upper == "" {
			return t, true
		}
		if upper[0] != ':' {
			return t, false
		}
		upper = upper[1:]
	}
	if len(upper) != 1 {
		return t, false
	}
	aa, ok := peptide.ParseAminoAcid(upper[0])
	t.Residue = aa
	return t, ok
}

func parseIsotope(s string) (chem.Element, uint16, bool) {
	if strings.EqualFold(s, "D") {
		return chem.H, 2, true
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i > 4 || i == len(s) {
		return 0, 0, false
	}
	n, _ := strconv.Atoi(s[:i])
	symbol := strings.ToUpper(s[i:i+1]) + strings.ToLower(s[i+1:])
	e, ok := chem.ElementBySymbol(symbol)
	if !ok || e == chem.Electron || !e.HasIsotope(uint16(n)) {
		return 0, 0, false
	}
	return e, uint16(n), true
}

// charge reads "/2" or "/3[+2Na+,+H+]".
func (p *parser) charge() (*peptide.Charge, error) {
	p.pos++
	start := p.pos
	if p.peek() == '-' || p.peek() == '+' {
		p.pos++
	}
	digits := p.pos
	for p.pos < len(p.text) && p.text[p.pos] >= '0' && p.text[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == digits || p.pos-digits > 6 {
		p.pos = digits
		return nil, p.errorf("charge state")
	}
	total, _ := strconv.Atoi(p.text[start:p.pos])
	if total == 0 {
		return nil, &SyntaxError{Offset: start, Expected: "non-zero charge", Found: "0", Err: &peptide.InvalidChargeError{}}
	}
	c := &peptide.Charge{Total: total}
	if p.peek() != '[' {
		return c, nil
	}
	b, err := p.readBlock('[', ']')
	if err != nil {
		return nil, err
	}
	sum := 0
	for _, a := range splitTop(b, ',') {
		adduct, err := parseAdduct(a)
		if err != nil {
			return nil, err
		}
		sum += adduct.Count * adduct.Charge
		c.Adducts = append(c.Adducts, adduct)
	}
	if sum != total {
		return nil, &SyntaxError{Offset: b.offset, Expected: fmt.Sprintf("adducts with total charge %d", total), Found: strconv.Itoa(sum)}
	}
	return c, nil
}

// parseAdduct reads one "+2Na+" style entry: count, formula, ion charge.
func parseAdduct(a part) (peptide.Adduct, error) {
	var adduct peptide.Adduct
	s := strings.TrimSpace(a.text)
	bad := func(expected string) error {
		return &SyntaxError{Offset: a.offset, Expected: expected, Found: fmt.Sprintf("%q", a.text)}
	}
	sign, i := 1, 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		if s[i] == '-' {
			sign = -1
		}
		i++
	}
	j := i
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	count := 1
	if j > i {
		if j-i > 6 {
			return adduct, bad("adduct count")
		}
		count, _ = strconv.Atoi(s[i:j])
	}
	if count == 0 {
		return adduct, bad("non-zero adduct count")
	}
	rest := s[j:]
	k := len(rest)
	for k > 0 && rest[k-1] >= '0' && rest[k-1] <= '9' {
		k--
	}
	magnitude := 1
	if k < len(rest) {
		if len(rest)-k > 6 {
			return adduct, bad("adduct charge")
		}
		magnitude, _ = strconv.Atoi(rest[k:])
	}
	if k == 0 || rest[k-1] != '+' && rest[k-1] != '-' || magnitude == 0 {
		return adduct, bad("adduct like +Na+ or +e-")
	}
	if rest[k-1] == '-' {
		magnitude = -magnitude
	}
	f, err := chem.ParseFormula(rest[:k-1])
	if err != nil {
		return adduct, bad("adduct formula")
	}
	adduct.Count = sign * count
	adduct.Formula = f
	adduct.Charge = magnitude
	return adduct, nil
}

// resolveAmbiguity groups the labelled occurrences of one peptidoform.
func resolveAmbiguity(pf *peptide.Peptidoform, occ []ambiguityOccurrence) error {
	var order []string
	byLabel := make(map[string][]ambiguityOccurrence)
	for _, o := range occ {
		if _, ok := byLabel[o.label]; !ok {
			order = append(order, o.label)
		}
		byLabel[o.label] = append(byLabel[o.label], o)
	}
	for _, label := range order {
		g := peptide.AmbiguousGroup{Label: label}
		defined := false
		for _, o := range byLabel[label] {
			if !o.pm.ref {
				if defined {
					return &LabelError{Offset: o.pm.offset, Label: label, Message: "defined more than once"}
				}
				defined = true
				g.Mod = o.pm.mod.WithoutLabel()
				g.Prefix = o.prefix
			}
			if !o.prefix {
				g.Sites = append(g.Sites, peptide.AmbiguousSite{Index: o.index, Score: o.pm.score, Preferred: !o.pm.ref})
			}
		}
		if !defined {
			return &peptide.UnresolvedLabelError{Label: label}
		}
		sort.SliceStable(g.Sites, func(i, j int) bool { return g.Sites[i].Index < g.Sites[j].Index })
		pf.Ambiguous = append(pf.Ambiguous, g)
	}
	return nil
}

// resolveLinks turns cross-link and branch labels into links. The first
// occurrence of a label links to every later one; a label seen once is a
// dead-end linker. Linkers repeated after the first are marked secondary so
// their mass counts once.
func resolveLinks(ion *peptide.PeptidoformIon, occ []linkOccurrence) error {
	var order []string
	byLabel := make(map[string][]linkOccurrence)
	for _, o := range occ {
		if _, ok := byLabel[o.label]; !ok {
			order = append(order, o.label)
		}
		byLabel[o.label] = append(byLabel[o.label], o)
	}
	for _, label := range order {
		list := byLabel[label]
		definer := -1
		for i, o := range list {
			if !o.defines {
				continue
			}
			if definer < 0 {
				definer = i
				continue
			}
			ion.Peptidoforms[o.site.Peptidoform].Sequence[o.site.Index].Mods[o.mod].Secondary = true
		}
		if definer < 0 {
			return &peptide.UnresolvedLabelError{Label: label}
		}
		for _, o := range list[1:] {
			ion.Links = append(ion.Links, peptide.Link{Label: label, Kind: o.kind, A: list[0].site, B: o.site})
		}
	}
	return nil
}
