package ontology

import (
	"embed"
	"fmt"
	"io"
	"math"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/glycan"
)

//go:embed data/*.yaml
var bundled embed.FS

var bundledFiles = map[Ontology]string{
	Unimod: "data/unimod.yaml",
	PSIMOD: "data/psimod.yaml",
	RESID:  "data/resid.yaml",
	XLMOD:  "data/xlmod.yaml",
	GNO:    "data/gno.yaml",
}

// massTolerance decides when two ontologies agree on a name's mass.
const massTolerance = 1e-5

// Tables is an immutable set of ontology definitions. It is safe for
// concurrent use once built.
type Tables struct {
	byName map[Ontology]map[string]*Definition
	byID   map[Ontology]map[string]*Definition
	all    []*Definition
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// Default returns the bundled tables, loading them on first use. A broken
// bundled table is a build defect and panics.
func Default() *Tables {
	defaultOnce.Do(func() {
		var defs []*Definition
		for _, o := range Priority {
			f, err := bundled.Open(bundledFiles[o])
			if err != nil {
				panic(fmt.Sprintf("ontology: open %s: %v", bundledFiles[o], err))
			}
			loaded, err := Load(o, f)
			f.Close()
			if err != nil {
				panic(fmt.Sprintf("ontology: %s: %v", bundledFiles[o], err))
			}
			defs = append(defs, loaded...)
		}
		defaultTables = NewTables(defs...)
	})
	return defaultTables
}

// NewTables indexes the given definitions. Later definitions with the same
// name or accession in one ontology replace earlier ones.
func NewTables(defs ...*Definition) *Tables {
	t := &Tables{
		byName: make(map[Ontology]map[string]*Definition),
		byID:   make(map[Ontology]map[string]*Definition),
	}
	for _, d := range defs {
		if t.byName[d.Ontology] == nil {
			t.byName[d.Ontology] = make(map[string]*Definition)
			t.byID[d.Ontology] = make(map[string]*Definition)
		}
		t.byName[d.Ontology][strings.ToLower(d.Name)] = d
		if d.ID != "" {
			t.byID[d.Ontology][normalizeID(d.Ontology, d.ID)] = d
		}
		t.all = append(t.all, d)
	}
	return t
}

// TableRule is one placement rule of a table entry. Position uses the
// spellings accepted by ParsePosition.
type TableRule struct {
	Residues string   `yaml:"residues,omitempty"`
	Position string   `yaml:"position"`
	Losses   []string `yaml:"losses,flow,omitempty"`
}

// TableEntry is one definition as stored in a YAML table. Exactly one of
// Formula, Mass or Composition is set.
type TableEntry struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Formula     string      `yaml:"formula,omitempty"`
	Mass        *float64    `yaml:"mass,omitempty"`
	Composition string      `yaml:"composition,omitempty"`
	Valence     int         `yaml:"valence,omitempty"`
	Rules       []TableRule `yaml:"rules,omitempty"`
	Diagnostic  []string    `yaml:"diagnostic,flow,omitempty"`
}

// TableFile returns the file name of an ontology's table, e.g. "unimod.yaml".
func TableFile(o Ontology) string {
	return path.Base(bundledFiles[o])
}

// WriteTable writes entries in the form Load reads, preceded by a comment
// line when comment is not empty.
func WriteTable(w io.Writer, comment string, entries []TableEntry) error {
	if comment != "" {
		if _, err := fmt.Fprintf(w, "# %s\n", comment); err != nil {
			return err
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding table: %w", err)
	}
	return enc.Close()
}

// Load reads one ontology table in YAML form.
func Load(o Ontology, r io.Reader) ([]*Definition, error) {
	var entries []TableEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding %s table: %w", o, err)
	}

	defs := make([]*Definition, 0, len(entries))
	for i, e := range entries {
		def, err := e.definition(o)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i+1, e.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (e TableEntry) definition(o Ontology) (*Definition, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	def := &Definition{Ontology: o, ID: e.ID, Name: e.Name, Valence: 1}
	if e.Valence > 1 {
		def.Valence = e.Valence
	}

	switch {
	case e.Composition != "":
		comp, err := glycan.ParseComposition(e.Composition)
		if err != nil {
			return nil, err
		}
		def.Glycan = comp
		def.Formula = comp.Formula()
	case e.Formula != "":
		f, err := chem.ParseFormula(e.Formula)
		if err != nil {
			return nil, err
		}
		def.Formula = f
	case e.Mass != nil:
		def.Formula = chem.MassOnly(*e.Mass)
	default:
		return nil, fmt.Errorf("one of formula, mass or composition is required")
	}

	for _, r := range e.Rules {
		pos, err := ParsePosition(r.Position)
		if err != nil {
			return nil, err
		}
		rule := PlacementRule{Residues: strings.ToUpper(r.Residues), Position: pos}
		for _, loss := range r.Losses {
			f, err := chem.ParseFormula(loss)
			if err != nil {
				return nil, fmt.Errorf("neutral loss '%s': %w", loss, err)
			}
			rule.NeutralLosses = append(rule.NeutralLosses, f)
		}
		def.Rules = append(def.Rules, rule)
	}
	for _, ion := range e.Diagnostic {
		f, err := chem.ParseFormula(ion)
		if err != nil {
			return nil, fmt.Errorf("diagnostic ion '%s': %w", ion, err)
		}
		def.DiagnosticIons = append(def.DiagnosticIons, f)
	}
	return def, nil
}

// ByName finds a definition by its case-insensitive name.
func (t *Tables) ByName(o Ontology, name string) (*Definition, error) {
	if d, ok := t.byName[o][strings.ToLower(strings.TrimSpace(name))]; ok {
		return d, nil
	}
	return nil, &UnknownModificationError{Ontology: o, Name: name}
}

// ByID finds a definition by accession. Leading zeros and the RESID "AA"
// prefix are optional.
func (t *Tables) ByID(o Ontology, id string) (*Definition, error) {
	if d, ok := t.byID[o][normalizeID(o, id)]; ok {
		return d, nil
	}
	return nil, &UnknownModificationError{Ontology: o, Name: id, ByID: true}
}

// Resolve finds an unprefixed name by searching the ontologies in priority
// order. When two ontologies define the name with different masses the name
// is ambiguous; otherwise the first hit wins.
func (t *Tables) Resolve(name string) (*Definition, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	var first *Definition
	for _, o := range Priority {
		d, ok := t.byName[o][key]
		if !ok {
			continue
		}
		if first == nil {
			first = d
			continue
		}
		if math.Abs(first.Formula.MonoisotopicMass()-d.Formula.MonoisotopicMass()) > massTolerance {
			return nil, &AmbiguousPrefixError{Name: name, Ontologies: []Ontology{first.Ontology, d.Ontology}}
		}
	}
	if first == nil {
		return nil, &UnknownModificationError{Name: name}
	}
	return first, nil
}

// Search returns every definition whose monoisotopic delta lies within
// tolerance Da of mass, in priority order and then by name.
func (t *Tables) Search(mass, tolerance float64) []*Definition {
	var hits []*Definition
	for _, d := range t.all {
		if math.Abs(d.Formula.MonoisotopicMass()-mass) <= tolerance {
			hits = append(hits, d)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Ontology != hits[j].Ontology {
			return hits[i].Ontology < hits[j].Ontology
		}
		return hits[i].Name < hits[j].Name
	})
	return hits
}

// Len returns the number of definitions.
func (t *Tables) Len() int { return len(t.all) }

// UnknownModificationError is returned when a name or accession is absent.
type UnknownModificationError struct {
	Ontology Ontology // zero when every ontology was searched
	Name     string
	ByID     bool
}

func (e *UnknownModificationError) Error() string {
	if e.Ontology == 0 {
		return fmt.Sprintf("unknown modification '%s'", e.Name)
	}
	if e.ByID {
		return fmt.Sprintf("unknown %s accession '%s'", e.Ontology, e.Name)
	}
	return fmt.Sprintf("unknown %s modification '%s'", e.Ontology, e.Name)
}

// AmbiguousPrefixError is returned when an unprefixed name maps to different
// masses in more than one ontology.
type AmbiguousPrefixError struct {
	Name       string
	Ontologies []Ontology
}

func (e *AmbiguousPrefixError) Error() string {
	names := make([]string, len(e.Ontologies))
	for i, o := range e.Ontologies {
		names[i] = o.String()
	}
	return fmt.Sprintf("modification '%s' is defined with different masses in %s; add an ontology prefix", e.Name, strings.Join(names, " and "))
}

// MissingOntologyPrefixError is returned for a numeric accession given
// without an ontology prefix.
type MissingOntologyPrefixError struct {
	ID string
}

func (e *MissingOntologyPrefixError) Error() string {
	return fmt.Sprintf("accession '%s' needs an ontology prefix such as UNIMOD: or MOD:", e.ID)
}
