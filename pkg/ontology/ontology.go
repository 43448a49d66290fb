// Package ontology holds the read-only modification tables (Unimod, PSI-MOD,
// RESID, XLMOD and GNO) that notation parsing and fragmentation resolve
// names and accessions against.
package ontology

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/glycan"
)

// Ontology is one of the supported controlled vocabularies.
type Ontology int

const (
	Unimod Ontology = iota + 1
	PSIMOD
	RESID
	XLMOD
	GNO
)

// Priority is the order in which ontologies are searched for unprefixed names.
var Priority = []Ontology{Unimod, PSIMOD, RESID, XLMOD, GNO}

func (o Ontology) String() string {
	switch o {
	case Unimod:
		return "Unimod"
	case PSIMOD:
		return "PSI-MOD"
	case RESID:
		return "RESID"
	case XLMOD:
		return "XLMOD"
	case GNO:
		return "GNO"
	}
	return "unknown"
}

// NamePrefix is the short ProForma prefix used with names, e.g. "U".
func (o Ontology) NamePrefix() string {
	switch o {
	case Unimod:
		return "U"
	case PSIMOD:
		return "M"
	case RESID:
		return "R"
	case XLMOD:
		return "X"
	case GNO:
		return "G"
	}
	return ""
}

// IDPrefix is the ProForma prefix used with accessions, e.g. "UNIMOD".
func (o Ontology) IDPrefix() string {
	switch o {
	case Unimod:
		return "UNIMOD"
	case PSIMOD:
		return "MOD"
	case RESID:
		return "RESID"
	case XLMOD:
		return "XLMOD"
	case GNO:
		return "GNO"
	}
	return ""
}

// FormatID renders an accession in the ontology's canonical width.
func (o Ontology) FormatID(id string) string {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(id), "AA"))
	if err != nil {
		return id
	}
	switch o {
	case PSIMOD, XLMOD:
		return fmt.Sprintf("%05d", n)
	case RESID:
		return fmt.Sprintf("AA%04d", n)
	case Unimod:
		return strconv.Itoa(n)
	}
	return id
}

// normalizeID maps the different spellings of one accession to one key.
func normalizeID(o Ontology, id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	if o == GNO {
		return id
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, "AA"))
	if err != nil {
		return id
	}
	return strconv.Itoa(n)
}

// ParsePrefix recognises ontology prefixes, case-insensitively. byID reports
// whether the prefix introduces an accession rather than a name.
func ParsePrefix(prefix string) (o Ontology, byID bool, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(prefix)) {
	case "U":
		return Unimod, false, true
	case "UNIMOD":
		return Unimod, true, true
	case "M":
		return PSIMOD, false, true
	case "MOD":
		return PSIMOD, true, true
	case "R":
		return RESID, false, true
	case "RESID":
		return RESID, true, true
	case "X":
		return XLMOD, false, true
	case "XLMOD":
		return XLMOD, true, true
	case "G":
		return GNO, false, true
	case "GNO":
		return GNO, true, true
	}
	return 0, false, false
}

// Position restricts where on a peptide a rule applies.
type Position int

const (
	Anywhere Position = iota
	AnyNTerm
	AnyCTerm
	ProteinNTerm
	ProteinCTerm
)

// ParsePosition converts the table spelling of a position.
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "anywhere":
		return Anywhere, nil
	case "any_n_term", "n-term":
		return AnyNTerm, nil
	case "any_c_term", "c-term":
		return AnyCTerm, nil
	case "protein_n_term":
		return ProteinNTerm, nil
	case "protein_c_term":
		return ProteinCTerm, nil
	}
	return Anywhere, fmt.Errorf("unknown position '%s'", s)
}

// Terminal identifies a terminal modification slot.
type Terminal int

const (
	NotTerminal Terminal = iota
	NTerminal
	CTerminal
)

// Site describes a candidate attachment point. Residue is the upper-case
// one-letter code of the residue at (or next to) the site. First and Last mark
// the first and last residue of the peptide; Terminal marks the terminal
// modification slots themselves.
type Site struct {
	Residue  byte
	First    bool
	Last     bool
	Terminal Terminal
}

// PlacementRule allows a modification on the listed residues (any residue
// when empty) at a position. Neutral losses apply when the rule matched.
type PlacementRule struct {
	Residues      string
	Position      Position
	NeutralLosses []chem.Formula
}

// Allows reports whether the rule admits the site.
func (r PlacementRule) Allows(site Site) bool {
	if r.Residues != "" && (site.Residue == 0 || !strings.ContainsRune(r.Residues, rune(site.Residue))) {
		return false
	}
	switch r.Position {
	case AnyNTerm, ProteinNTerm:
		return site.Terminal == NTerminal || (site.Terminal == NotTerminal && site.First)
	case AnyCTerm, ProteinCTerm:
		return site.Terminal == CTerminal || (site.Terminal == NotTerminal && site.Last)
	}
	return site.Terminal == NotTerminal
}

// Definition is one ontology entry.
type Definition struct {
	Ontology       Ontology
	ID             string
	Name           string
	Formula        chem.Formula
	Rules          []PlacementRule
	DiagnosticIons []chem.Formula
	// Valence is 2 for cross-linkers and branches, 1 otherwise.
	Valence int
	Glycan  glycan.Composition
}

// Allowed reports whether any placement rule admits the site. A definition
// without rules may go anywhere, including the terminal slots.
func (d *Definition) Allowed(site Site) bool {
	if len(d.Rules) == 0 {
		return true
	}
	for _, r := range d.Rules {
		if r.Allows(site) {
			return true
		}
	}
	return false
}

// NeutralLosses returns the losses of every rule that admits the site.
func (d *Definition) NeutralLosses(site Site) []chem.Formula {
	var losses []chem.Formula
	for _, r := range d.Rules {
		if r.Allows(site) {
			losses = append(losses, r.NeutralLosses...)
		}
	}
	return losses
}

// IsCrossLinker reports whether the definition links two sites.
func (d *Definition) IsCrossLinker() bool { return d.Valence >= 2 }

// Accession renders the definition as "UNIMOD:35".
func (d *Definition) Accession() string {
	return d.Ontology.IDPrefix() + ":" + d.Ontology.FormatID(d.ID)
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Accession())
}
