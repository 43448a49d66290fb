package peptide

import (
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/ontology"
)

func writeMods(sb *strings.Builder, mods []Modification) {
	for _, m := range mods {
		sb.WriteString("[")
		sb.WriteString(m.String())
		sb.WriteString("]")
	}
}

func (g GlobalModification) String() string {
	if g.Isotope {
		return "<" + strconv.Itoa(int(g.MassNumber)) + g.Element.Symbol() + ">"
	}
	var sb strings.Builder
	sb.WriteString("<[")
	sb.WriteString(g.Mod.String())
	sb.WriteString("]")
	for i, t := range g.Targets {
		if i == 0 {
			sb.WriteString("@")
		} else {
			sb.WriteString(",")
		}
		switch t.Terminal {
		case ontology.NTerminal:
			sb.WriteString("N-term")
		case ontology.CTerminal:
			sb.WriteString("C-term")
		}
		if t.Residue != 0 {
			if t.Terminal != ontology.NotTerminal {
				sb.WriteString(":")
			}
			sb.WriteByte(byte(t.Residue))
		}
	}
	sb.WriteString(">")
	return sb.String()
}

func scoreSuffix(label string, score *float64) string {
	s := "#" + label
	if score != nil {
		s += "(" + strconv.FormatFloat(*score, 'f', -1, 64) + ")"
	}
	return s
}

// String renders the peptidoform in ProForma notation.
func (p *Peptidoform) String() string {
	var sb strings.Builder
	for _, g := range p.Global {
		sb.WriteString(g.String())
	}

	unknown := false
	for _, u := range p.Unknown {
		if u.Ranged {
			continue
		}
		unknown = true
		sb.WriteString("[")
		sb.WriteString(u.Mod.String())
		sb.WriteString("]")
		if u.Count > 1 {
			sb.WriteString("^")
			sb.WriteString(strconv.Itoa(u.Count))
		}
	}
	for _, g := range p.Ambiguous {
		if !g.Prefix {
			continue
		}
		unknown = true
		sb.WriteString("[")
		sb.WriteString(g.Mod.WithoutLabel().String())
		sb.WriteString("#")
		sb.WriteString(g.Label)
		sb.WriteString("]")
	}
	if unknown {
		sb.WriteString("?")
	}

	for _, m := range p.Labile {
		sb.WriteString("{")
		sb.WriteString(m.String())
		sb.WriteString("}")
	}

	if len(p.NTerm) > 0 {
		writeMods(&sb, p.NTerm)
		sb.WriteString("-")
	}

	// Group markers per residue.
	markers := make(map[int][]string)
	for _, g := range p.Ambiguous {
		for _, s := range g.Sites {
			if s.Preferred && !g.Prefix {
				markers[s.Index] = append(markers[s.Index], g.Mod.WithoutLabel().String()+scoreSuffix(g.Label, s.Score))
			} else {
				markers[s.Index] = append(markers[s.Index], scoreSuffix(g.Label, s.Score))
			}
		}
	}
	rangeEnds := make(map[int][]Modification)
	rangeStarts := make(map[int]bool)
	for _, u := range p.Unknown {
		if !u.Ranged {
			continue
		}
		rangeStarts[u.Start] = true
		for n := 0; n < u.Count; n++ {
			rangeEnds[u.End] = append(rangeEnds[u.End], u.Mod)
		}
	}

	for i, el := range p.Sequence {
		if rangeStarts[i] {
			sb.WriteString("(")
		}
		if el.AmbiguousGroup != 0 && (i == 0 || p.Sequence[i-1].AmbiguousGroup != el.AmbiguousGroup) {
			sb.WriteString("(?")
		}
		sb.WriteByte(byte(el.AminoAcid))
		writeMods(&sb, el.Mods)
		for _, m := range markers[i] {
			sb.WriteString("[")
			sb.WriteString(m)
			sb.WriteString("]")
		}
		if el.AmbiguousGroup != 0 && (i == len(p.Sequence)-1 || p.Sequence[i+1].AmbiguousGroup != el.AmbiguousGroup) {
			sb.WriteString(")")
		}
		if mods, ok := rangeEnds[i+1]; ok {
			sb.WriteString(")")
			writeMods(&sb, mods)
		}
	}

	if len(p.CTerm) > 0 {
		sb.WriteString("-")
		writeMods(&sb, p.CTerm)
	}
	return sb.String()
}

func (a Adduct) String() string {
	var sb strings.Builder
	if a.Count < 0 {
		sb.WriteString("-")
	} else {
		sb.WriteString("+")
	}
	if n := abs(a.Count); n != 1 {
		sb.WriteString(strconv.Itoa(n))
	}
	if a.Formula.Equal(chem.ElectronFormula) {
		sb.WriteString("e")
	} else {
		sb.WriteString(a.Formula.String())
	}
	if a.Charge < 0 {
		sb.WriteString("-")
	} else {
		sb.WriteString("+")
	}
	if n := abs(a.Charge); n != 1 {
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (c Charge) String() string {
	s := "/" + strconv.Itoa(c.Total)
	if len(c.Adducts) > 0 {
		parts := make([]string, len(c.Adducts))
		for i, a := range c.Adducts {
			parts[i] = a.String()
		}
		s += "[" + strings.Join(parts, ",") + "]"
	}
	return s
}

// String renders the ion; cross-linked peptidoforms are joined with "//".
func (ion *PeptidoformIon) String() string {
	parts := make([]string, len(ion.Peptidoforms))
	for i := range ion.Peptidoforms {
		parts[i] = ion.Peptidoforms[i].String()
	}
	s := strings.Join(parts, "//")
	if ion.Charge != nil {
		s += ion.Charge.String()
	}
	return s
}

// String renders the compound; chimeric members are joined with "+".
func (c *CompoundPeptidoformIon) String() string {
	parts := make([]string, len(c.Members))
	for i := range c.Members {
		parts[i] = c.Members[i].String()
	}
	return strings.Join(parts, "+")
}
