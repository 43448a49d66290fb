package proforma

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/glycan"
	"github.com/ChrisMcGann/PFKey/pkg/ontology"
	"github.com/ChrisMcGann/PFKey/pkg/peptide"
)

type labelClass int

const (
	noLabel labelClass = iota
	ambiguityLabel
	crossLinkLabel
	branchLabel
)

// parsedMod is one modification block before label resolution. A reference
// carries a label but no chemistry, as in [#XL1] or [#g1(0.2)].
type parsedMod struct {
	mod    peptide.Modification
	ref    bool
	class  labelClass
	label  string
	score  *float64
	offset int
}

type part struct {
	offset int
	text   string
}

// readBlock reads a span that starts with open at p.pos and returns its
// content. Nested open/close pairs and backslash escapes stay inside.
func (p *parser) readBlock(open, close byte) (part, error) {
	start := p.pos
	p.pos++
	depth := 0
	for p.pos < len(p.text) {
		c := p.text[p.pos]
		switch c {
		case '\\':
			p.pos += 2
			continue
		case open:
			depth++
		case close:
			if depth == 0 {
				b := part{offset: start + 1, text: p.text[start+1 : p.pos]}
				p.pos++
				return b, nil
			}
			depth--
		}
		p.pos++
	}
	p.pos = len(p.text)
	return part{}, &SyntaxError{Offset: len(p.text), Expected: fmt.Sprintf("'%c' closing offset %d", close, start), Found: "end of input"}
}

// splitTop splits on sep outside nested square brackets, honouring escapes.
func splitTop(b part, sep byte) []part {
	var out []part
	depth, from := 0, 0
	for i := 0; i < len(b.text); i++ {
		switch c := b.text[i]; {
		case c == '\\':
			i++
		case c == '[':
			depth++
		case c == ']':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			out = append(out, part{offset: b.offset + from, text: b.text[from:i]})
			from = i + 1
		}
	}
	return append(out, part{offset: b.offset + from, text: b.text[from:]})
}

// cutLabel separates "Phospho#g1(0.5)" into body and label text.
func cutLabel(b part) (body part, label string, hasLabel bool) {
	depth := 0
	for i := 0; i < len(b.text); i++ {
		switch c := b.text[i]; {
		case c == '\\':
			i++
		case c == '[':
			depth++
		case c == ']':
			if depth > 0 {
				depth--
			}
		case c == '#' && depth == 0:
			return part{offset: b.offset, text: b.text[:i]}, b.text[i+1:], true
		}
	}
	return b, "", false
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func (pm *parsedMod) setLabel(text string, offset int) error {
	name, rest, hasScore := strings.Cut(text, "(")
	if name == "" {
		return &SyntaxError{Offset: offset, Expected: "label name after '#'", Found: fmt.Sprintf("%q", text)}
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return &SyntaxError{Offset: offset + i, Expected: "label character", Found: fmt.Sprintf("%q", c)}
		}
	}
	upper := strings.ToUpper(name)
	switch {
	case upper == "BRANCH":
		pm.class, pm.label = branchLabel, upper
	case strings.HasPrefix(upper, "XL"):
		pm.class, pm.label = crossLinkLabel, upper
	default:
		pm.class, pm.label = ambiguityLabel, strings.ToLower(name)
	}
	if !hasScore {
		return nil
	}
	if pm.class != ambiguityLabel {
		return &LabelError{Offset: offset, Label: pm.label, Message: "only ambiguity labels carry a localization score"}
	}
	num, ok := strings.CutSuffix(rest, ")")
	score, err := strconv.ParseFloat(num, 64)
	if !ok || err != nil || !isNumber(num, false) && !isNumber(num, true) {
		return &SyntaxError{Offset: offset + len(name) + 1, Expected: "score like (0.75)", Found: fmt.Sprintf("%q", "("+rest)}
	}
	pm.score = &score
	return nil
}

// modification reads one [..] block at p.pos.
func (p *parser) modification() (parsedMod, error) {
	b, err := p.readBlock('[', ']')
	if err != nil {
		return parsedMod{}, err
	}
	return p.parseBlock(b)
}

func (p *parser) parseBlock(b part) (parsedMod, error) {
	pm := parsedMod{offset: b.offset}
	var resolved []peptide.Modification
	var info []string
	labelled := false
	for _, alt := range splitTop(b, '|') {
		body, label, hasLabel := cutLabel(alt)
		if hasLabel {
			if labelled {
				return pm, &LabelError{Offset: alt.offset, Label: label, Message: "a block carries at most one label"}
			}
			labelled = true
			if err := pm.setLabel(label, body.offset+len(body.text)+1); err != nil {
				return pm, err
			}
		}
		text := strings.TrimSpace(body.text)
		switch {
		case text == "":
			if !hasLabel {
				return pm, &SyntaxError{Offset: body.offset, Expected: "modification", Found: "empty block"}
			}
		case len(text) >= 5 && strings.EqualFold(text[:5], "INFO:"):
			info = append(info, unescape(text[5:]))
		default:
			m, err := p.resolve(text, body.offset)
			if err != nil {
				return pm, err
			}
			resolved = append(resolved, m)
		}
	}

	switch {
	case len(resolved) > 0:
		pm.mod = resolved[0]
		pm.mod.Alternatives = resolved[1:]
		if len(pm.mod.Alternatives) == 0 {
			pm.mod.Alternatives = nil
		}
		pm.mod.Info = info
	case len(info) > 0:
		pm.mod = peptide.Modification{Kind: peptide.InfoMod, Info: info}
	default:
		pm.ref = true
		if len(splitTop(b, '|')) > 1 {
			return pm, &SyntaxError{Offset: b.offset, Expected: "a single label reference", Found: fmt.Sprintf("%q", b.text)}
		}
	}

	switch pm.class {
	case crossLinkLabel, branchLabel:
		kind := peptide.CrossLink
		if pm.class == branchLabel {
			kind = peptide.Branch
		}
		link := peptide.Modification{Kind: kind, Label: pm.label}
		if !pm.ref {
			if pm.mod.Kind == peptide.InfoMod {
				return pm, &LabelError{Offset: b.offset, Label: pm.label, Message: "linker has no chemistry"}
			}
			linker := pm.mod
			link.Alternatives, link.Info = linker.Alternatives, linker.Info
			linker.Alternatives, linker.Info = nil, nil
			link.Linker = &linker
		}
		pm.mod = link
	case ambiguityLabel:
		if !pm.ref && pm.mod.Kind == peptide.InfoMod {
			return pm, &LabelError{Offset: b.offset, Label: pm.label, Message: "ambiguous modification has no chemistry"}
		}
		pm.mod.Label = pm.label
		pm.mod.Score = pm.score
	}
	return pm, nil
}

// isNumber matches [+-]digits[.digits]; the sign is required when signed.
func isNumber(s string, signed bool) bool {
	if signed {
		if s == "" || s[0] != '+' && s[0] != '-' {
			return false
		}
		s = s[1:]
	}
	digits, dot := 0, false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}

func parseMass(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// resolve turns the body of one alternative into a modification.
func (p *parser) resolve(text string, offset int) (peptide.Modification, error) {
	fail := func(err error) (peptide.Modification, error) {
		return peptide.Modification{}, &ModificationError{Offset: offset, Text: text, Err: err}
	}
	if isNumber(text, true) {
		return peptide.NewDeltaMass(parseMass(text)), nil
	}
	if isNumber(text, false) {
		return fail(&ontology.MissingOntologyPrefixError{ID: text})
	}

	if prefix, rest, ok := strings.Cut(text, ":"); ok {
		rest = strings.TrimSpace(rest)
		switch strings.ToLower(strings.TrimSpace(prefix)) {
		case "formula":
			f, err := chem.ParseFormula(rest)
			if err != nil {
				return fail(err)
			}
			return peptide.NewFormula(f), nil
		case "glycan":
			c, err := glycan.ParseComposition(rest)
			if err != nil {
				return fail(err)
			}
			return peptide.NewGlycan(c), nil
		case "obs":
			if !isNumber(rest, true) {
				return fail(fmt.Errorf("observed mass '%s' is not a signed number", rest))
			}
			m := peptide.NewDeltaMass(parseMass(rest))
			m.Observed = true
			return m, nil
		}
		if o, byID, ok := ontology.ParsePrefix(prefix); ok {
			switch {
			case byID:
				def, err := p.tables.ByID(o, unescape(rest))
				if err != nil {
					return fail(err)
				}
				m := peptide.NewNamed(def)
				m.ByID = true
				return m, nil
			case isNumber(rest, true):
				m := peptide.NewDeltaMass(parseMass(rest))
				m.Origin = o
				return m, nil
			default:
				def, err := p.tables.ByName(o, unescape(rest))
				if err != nil {
					return fail(err)
				}
				m := peptide.NewNamed(def)
				m.Prefixed = true
				return m, nil
			}
		}
	}

	def, err := p.tables.Resolve(unescape(text))
	if err != nil {
		return fail(err)
	}
	return peptide.NewNamed(def), nil
}
