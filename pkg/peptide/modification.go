package peptide

import (
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/glycan"
	"github.com/ChrisMcGann/PFKey/pkg/ontology"
)

// ModKind tags the variant held by a Modification.
type ModKind int

const (
	// Named is an ontology definition, by name or accession.
	Named ModKind = iota
	// DeltaMass is a bare mass shift such as +15.995.
	DeltaMass
	// FormulaMod is an explicit elemental formula.
	FormulaMod
	// GlycanMod is a monosaccharide composition.
	GlycanMod
	// CrossLink joins two sites through a linker.
	CrossLink
	// Branch joins a residue to the terminus of another peptidoform.
	Branch
	// InfoMod is free text without chemistry.
	InfoMod
)

func (k ModKind) String() string {
	switch k {
	case Named:
		return "named"
	case DeltaMass:
		return "delta mass"
	case FormulaMod:
		return "formula"
	case GlycanMod:
		return "glycan"
	case CrossLink:
		return "cross-link"
	case Branch:
		return "branch"
	}
	return "info"
}

// Modification is a tagged union over the ProForma modification kinds. Only
// the fields of its Kind are meaningful.
type Modification struct {
	Kind ModKind

	// Named
	Def      *ontology.Definition
	ByID     bool // written as an accession (UNIMOD:35)
	Prefixed bool // written with a name prefix (U:Oxidation)

	// DeltaMass. Origin is the ontology prefix (U:+15.995), zero when bare.
	Mass     float64
	Origin   ontology.Ontology
	Observed bool // Obs:+79.978

	// FormulaMod
	Formula chem.Formula

	// GlycanMod
	Glycan glycan.Composition

	// CrossLink and Branch. Linker is nil for a bare reference such as
	// [#XL1]. Secondary marks repeats of a linker whose mass is already
	// counted at its first occurrence.
	Linker    *Modification
	Secondary bool

	// Label names the cross-link, branch or ambiguity group without '#'.
	Label string
	Score *float64

	// Alternatives are the other pipe-separated interpretations. They do
	// not contribute mass.
	Alternatives []Modification
	Info         []string
}

// NewNamed wraps an ontology definition.
func NewNamed(def *ontology.Definition) Modification {
	return Modification{Kind: Named, Def: def}
}

// NewDeltaMass builds a mass-only modification.
func NewDeltaMass(mass float64) Modification {
	return Modification{Kind: DeltaMass, Mass: mass}
}

// NewFormula builds an explicit formula modification.
func NewFormula(f chem.Formula) Modification {
	return Modification{Kind: FormulaMod, Formula: f}
}

// NewGlycan builds a glycan composition modification.
func NewGlycan(c glycan.Composition) Modification {
	return Modification{Kind: GlycanMod, Glycan: c}
}

// Chemistry returns the formula delta the modification adds.
func (m Modification) Chemistry() chem.Formula {
	switch m.Kind {
	case Named:
		if m.Def != nil {
			return m.Def.Formula
		}
	case DeltaMass:
		return chem.MassOnly(m.Mass)
	case FormulaMod:
		return m.Formula
	case GlycanMod:
		return m.Glycan.Formula()
	case CrossLink, Branch:
		if m.Linker != nil && !m.Secondary {
			return m.Linker.Chemistry()
		}
	}
	return chem.Formula{}
}

// Definition returns the ontology definition behind the modification, also
// for cross-linkers, or nil.
func (m Modification) Definition() *ontology.Definition {
	switch m.Kind {
	case Named:
		return m.Def
	case CrossLink, Branch:
		if m.Linker != nil {
			return m.Linker.Definition()
		}
	}
	return nil
}

// Allowed reports whether the ontology placement rules admit the site. Mods
// without a definition may go anywhere.
func (m Modification) Allowed(site ontology.Site) bool {
	def := m.Definition()
	if def == nil {
		return true
	}
	return def.Allowed(site)
}

// IsReference reports whether the modification only points at a label
// defined elsewhere.
func (m Modification) IsReference() bool {
	return (m.Kind == CrossLink || m.Kind == Branch) && m.Linker == nil
}

// WithoutLabel returns a copy with the ambiguity label and score removed.
func (m Modification) WithoutLabel() Modification {
	m.Label = ""
	m.Score = nil
	return m
}

// Name is a short human readable name.
func (m Modification) Name() string {
	switch m.Kind {
	case Named:
		if m.Def != nil {
			return m.Def.Name
		}
	case CrossLink, Branch:
		if m.Linker != nil {
			return m.Linker.Name()
		}
		return "#" + m.Label
	case InfoMod:
		if len(m.Info) > 0 {
			return m.Info[0]
		}
	}
	return m.body()
}

// String renders the content of a ProForma modification block, without the
// surrounding brackets.
func (m Modification) String() string {
	var sb strings.Builder
	sb.WriteString(m.body())
	if m.Label != "" {
		sb.WriteString("#")
		sb.WriteString(m.Label)
		if m.Score != nil {
			sb.WriteString("(")
			sb.WriteString(strconv.FormatFloat(*m.Score, 'f', -1, 64))
			sb.WriteString(")")
		}
	}
	for _, alt := range m.Alternatives {
		sb.WriteString("|")
		sb.WriteString(alt.String())
	}
	if m.Kind != InfoMod {
		for _, info := range m.Info {
			sb.WriteString("|INFO:")
			sb.WriteString(escape(info))
		}
	}
	return sb.String()
}

func (m Modification) body() string {
	switch m.Kind {
	case Named:
		if m.Def == nil {
			return ""
		}
		if m.ByID {
			return m.Def.Accession()
		}
		if m.Prefixed {
			return m.Def.Ontology.NamePrefix() + ":" + escape(m.Def.Name)
		}
		return escape(m.Def.Name)
	case DeltaMass:
		mass := FormatMass(m.Mass)
		switch {
		case m.Observed:
			return "Obs:" + mass
		case m.Origin != 0:
			return m.Origin.NamePrefix() + ":" + mass
		}
		return mass
	case FormulaMod:
		return "Formula:" + m.Formula.String()
	case GlycanMod:
		return "Glycan:" + m.Glycan.String()
	case CrossLink, Branch:
		if m.Linker != nil {
			return m.Linker.body()
		}
		return ""
	case InfoMod:
		parts := make([]string, len(m.Info))
		for i, info := range m.Info {
			parts[i] = "INFO:" + escape(info)
		}
		return strings.Join(parts, "|")
	}
	return ""
}

// FormatMass renders a signed delta mass, e.g. "+15.9949" or "-18.01".
func FormatMass(mass float64) string {
	s := strconv.FormatFloat(mass, 'f', -1, 64)
	if mass >= 0 {
		return "+" + s
	}
	return s
}

// escape protects characters that would end or split a modification block.
// Balanced brackets, as in "Cation:Mg[II]", are kept as they are.
func escape(s string) string {
	if !strings.ContainsAny(s, "[]|\\#") {
		return s
	}
	matched := make([]bool, len(s))
	var open []int
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			open = append(open, i)
		case ']':
			if n := len(open); n > 0 {
				matched[open[n-1]] = true
				matched[i] = true
				open = open[:n-1]
			}
		}
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case (c == '[' || c == ']') && !matched[i]:
			sb.WriteByte('\\')
		case c == '|' || c == '\\' || c == '#':
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
