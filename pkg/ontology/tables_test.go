package ontology

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
)

func TestDefaultLookups(t *testing.T) {
	tables := Default()

	tests := []struct {
		name     string
		lookup   func() (*Definition, error)
		wantName string
		wantMass float64
	}{
		{
			name:     "unimod by name",
			lookup:   func() (*Definition, error) { return tables.ByName(Unimod, "Oxidation") },
			wantName: "Oxidation",
			wantMass: 15.994915,
		},
		{
			name:     "unimod by name is case insensitive",
			lookup:   func() (*Definition, error) { return tables.ByName(Unimod, "PHOSPHO") },
			wantName: "Phospho",
			wantMass: 79.966331,
		},
		{
			name:     "unimod by id",
			lookup:   func() (*Definition, error) { return tables.ByID(Unimod, "35") },
			wantName: "Oxidation",
			wantMass: 15.994915,
		},
		{
			name:     "psi-mod by zero padded id",
			lookup:   func() (*Definition, error) { return tables.ByID(PSIMOD, "00719") },
			wantName: "L-methionine sulfoxide",
			wantMass: 15.994915,
		},
		{
			name:     "resid delta mass",
			lookup:   func() (*Definition, error) { return tables.ByID(RESID, "AA0581") },
			wantName: "L-methionine sulfone",
			wantMass: 31.989829,
		},
		{
			name:     "xlmod linker",
			lookup:   func() (*Definition, error) { return tables.ByName(XLMOD, "dss") },
			wantName: "DSS",
			wantMass: 138.068080,
		},
		{
			name:     "gno composition",
			lookup:   func() (*Definition, error) { return tables.ByID(GNO, "g59626as") },
			wantName: "G59626AS",
			wantMass: 2*203.079373 + 5*162.052824,
		},
		{
			name:     "isotopic label",
			lookup:   func() (*Definition, error) { return tables.ByName(Unimod, "TMT6plex") },
			wantName: "TMT6plex",
			wantMass: 229.162932,
		},
		{
			name:     "name with brackets",
			lookup:   func() (*Definition, error) { return tables.Resolve("Cation:Mg[II]") },
			wantName: "Cation:Mg[II]",
			wantMass: 21.969392,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := tt.lookup()
			if err != nil {
				t.Fatalf("lookup error = %v", err)
			}
			if def.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", def.Name, tt.wantName)
			}
			if got := def.Formula.Mass(chem.Monoisotopic); math.Abs(got-tt.wantMass) > 1e-5 {
				t.Errorf("mass = %f, want %f", got, tt.wantMass)
			}
		})
	}
}

func TestResolvePriority(t *testing.T) {
	phosphoSerine := chem.MustFormula("HO3P")
	tables := NewTables(
		&Definition{Ontology: PSIMOD, ID: "00046", Name: "O-phospho-L-serine", Formula: phosphoSerine},
		&Definition{Ontology: RESID, ID: "AA0037", Name: "O-phospho-L-serine", Formula: chem.MassOnly(79.966331)},
		&Definition{Ontology: Unimod, ID: "1", Name: "Clash", Formula: chem.MustFormula("O")},
		&Definition{Ontology: XLMOD, ID: "1", Name: "Clash", Formula: chem.MustFormula("O2")},
	)

	def, err := tables.Resolve("o-phospho-l-serine")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if def.Ontology != PSIMOD {
		t.Errorf("Resolve() ontology = %v, want PSI-MOD (first hit, equal masses)", def.Ontology)
	}

	_, err = tables.Resolve("Clash")
	var ambiguous *AmbiguousPrefixError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("Resolve(Clash) error = %v, want *AmbiguousPrefixError", err)
	}
	if len(ambiguous.Ontologies) != 2 || ambiguous.Ontologies[0] != Unimod || ambiguous.Ontologies[1] != XLMOD {
		t.Errorf("Ontologies = %v, want [Unimod XLMOD]", ambiguous.Ontologies)
	}

	_, err = tables.Resolve("nothing")
	var unknown *UnknownModificationError
	if !errors.As(err, &unknown) {
		t.Errorf("Resolve(nothing) error = %v, want *UnknownModificationError", err)
	}
}

func TestPlacement(t *testing.T) {
	tables := Default()
	phospho, _ := tables.ByName(Unimod, "Phospho")
	acetyl, _ := tables.ByName(Unimod, "Acetyl")
	pyro, _ := tables.ByName(Unimod, "Gln->pyro-Glu")

	tests := []struct {
		name string
		def  *Definition
		site Site
		want bool
	}{
		{name: "phospho on serine", def: phospho, site: Site{Residue: 'S'}, want: true},
		{name: "phospho on alanine", def: phospho, site: Site{Residue: 'A'}, want: false},
		{name: "phospho on the n-terminal slot", def: phospho, site: Site{Residue: 'S', First: true, Terminal: NTerminal}, want: false},
		{name: "acetyl on the n-terminal slot", def: acetyl, site: Site{Residue: 'A', First: true, Terminal: NTerminal}, want: true},
		{name: "acetyl on first residue", def: acetyl, site: Site{Residue: 'A', First: true}, want: true},
		{name: "acetyl on inner alanine", def: acetyl, site: Site{Residue: 'A'}, want: false},
		{name: "pyro-glu on first glutamine", def: pyro, site: Site{Residue: 'Q', First: true}, want: true},
		{name: "pyro-glu on inner glutamine", def: pyro, site: Site{Residue: 'Q'}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.def.Allowed(tt.site); got != tt.want {
				t.Errorf("Allowed(%+v) = %v, want %v", tt.site, got, tt.want)
			}
		})
	}

	losses := phospho.NeutralLosses(Site{Residue: 'S'})
	if len(losses) != 1 || !losses[0].Equal(chem.MustFormula("H3PO4")) {
		t.Errorf("NeutralLosses(S) = %v, want [H3O4P]", losses)
	}
	if losses := phospho.NeutralLosses(Site{Residue: 'Y'}); len(losses) != 0 {
		t.Errorf("NeutralLosses(Y) = %v, want none", losses)
	}
}

func TestSearch(t *testing.T) {
	hits := Default().Search(15.9949, 0.001)
	var names []string
	for _, d := range hits {
		names = append(names, d.Accession())
	}
	if len(hits) < 2 || hits[0].Name != "Oxidation" {
		t.Errorf("Search(15.9949) = %v, want Oxidation first", strings.Join(names, ", "))
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing name", yaml: "- {id: '1', formula: O}"},
		{name: "bad formula", yaml: "- {id: '1', name: X, formula: Qq}"},
		{name: "no mass", yaml: "- {id: '1', name: X}"},
		{name: "bad position", yaml: "- {id: '1', name: X, formula: O, rules: [{position: middle}]}"},
		{name: "not a list", yaml: "name: X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(Unimod, strings.NewReader(tt.yaml)); err == nil {
				t.Errorf("Load() error = nil, want error")
			}
		})
	}
}

func TestAccession(t *testing.T) {
	tests := []struct {
		def  Definition
		want string
	}{
		{def: Definition{Ontology: Unimod, ID: "35"}, want: "UNIMOD:35"},
		{def: Definition{Ontology: PSIMOD, ID: "719"}, want: "MOD:00719"},
		{def: Definition{Ontology: RESID, ID: "AA0581"}, want: "RESID:AA0581"},
		{def: Definition{Ontology: GNO, ID: "G59626AS"}, want: "GNO:G59626AS"},
	}
	for _, tt := range tests {
		if got := tt.def.Accession(); got != tt.want {
			t.Errorf("Accession() = %q, want %q", got, tt.want)
		}
	}
}

func TestLabelAndAcylEntries(t *testing.T) {
	tables := Default()
	tests := []struct {
		name     string
		lookup   func() (*Definition, error)
		wantName string
		wantMass float64
		site     Site
	}{
		{
			name:     "silac lysine",
			lookup:   func() (*Definition, error) { return tables.Resolve("Label:13C(6)15N(2)") },
			wantName: "Label:13C(6)15N(2)",
			wantMass: 8.014199,
			site:     Site{Residue: 'K'},
		},
		{
			name:     "silac lysine by id",
			lookup:   func() (*Definition, error) { return tables.ByID(Unimod, "259") },
			wantName: "Label:13C(6)15N(2)",
			wantMass: 8.014199,
			site:     Site{Residue: 'K'},
		},
		{
			name:     "silac arginine",
			lookup:   func() (*Definition, error) { return tables.Resolve("Label:13C(6)15N(4)") },
			wantName: "Label:13C(6)15N(4)",
			wantMass: 10.008269,
			site:     Site{Residue: 'R'},
		},
		{
			name:     "propionyl",
			lookup:   func() (*Definition, error) { return tables.ByName(Unimod, "Propionyl") },
			wantName: "Propionyl",
			wantMass: 56.026215,
			site:     Site{Residue: 'K'},
		},
		{
			name:     "succinyl",
			lookup:   func() (*Definition, error) { return tables.ByName(Unimod, "succinyl") },
			wantName: "Succinyl",
			wantMass: 100.016044,
			site:     Site{Residue: 'K'},
		},
		{
			name:     "ammonia loss on n-terminal cysteine",
			lookup:   func() (*Definition, error) { return tables.ByName(Unimod, "Ammonia-loss") },
			wantName: "Ammonia-loss",
			wantMass: -17.026549,
			site:     Site{Residue: 'C', First: true},
		},
		{
			name:     "crotonyl",
			lookup:   func() (*Definition, error) { return tables.ByName(Unimod, "Crotonyl") },
			wantName: "Crotonyl",
			wantMass: 68.026215,
			site:     Site{Residue: 'K'},
		},
		{
			name:     "methionine loss",
			lookup:   func() (*Definition, error) { return tables.ByID(Unimod, "765") },
			wantName: "Met-loss",
			wantMass: -131.040485,
			site:     Site{Residue: 'M', First: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := tt.lookup()
			if err != nil {
				t.Fatalf("lookup error = %v", err)
			}
			if def.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", def.Name, tt.wantName)
			}
			if got := def.Formula.Mass(chem.Monoisotopic); math.Abs(got-tt.wantMass) > 1e-5 {
				t.Errorf("mass = %f, want %f", got, tt.wantMass)
			}
			if !def.Allowed(tt.site) {
				t.Errorf("Allowed(%c) = false, want true", tt.site.Residue)
			}
		})
	}
}

func TestWriteTableLoads(t *testing.T) {
	mass := 79.966331
	entries := []TableEntry{
		{ID: "259", Name: "Label:13C(6)15N(2)", Formula: "C-6[13C6]N-2[15N2]", Rules: []TableRule{{Residues: "K", Position: "anywhere"}}},
		{ID: "21", Name: "Phospho", Formula: "HO3P", Rules: []TableRule{
			{Residues: "ST", Position: "anywhere", Losses: []string{"H3O4P"}},
			{Residues: "Y", Position: "anywhere"},
		}},
		{ID: "AA0037", Name: "O-phospho-L-serine", Mass: &mass},
		{ID: "G59626AS", Name: "G59626AS", Composition: "HexNAc2Hex5"},
		{ID: "2001", Name: "DSS", Formula: "C8H10O2", Valence: 2},
	}
	var sb strings.Builder
	if err := WriteTable(&sb, "test table", entries); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	if !strings.HasPrefix(sb.String(), "# test table\n") {
		t.Errorf("table does not start with the comment:\n%s", sb.String())
	}

	var got []TableEntry
	if err := yaml.Unmarshal([]byte(sb.String()), &got); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if diff := cmp.Diff(entries, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	defs, err := Load(Unimod, strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("Load() error = %v\n%s", err, sb.String())
	}
	if len(defs) != len(entries) {
		t.Fatalf("Load() = %d definitions, want %d", len(defs), len(entries))
	}
	if got := defs[0].Formula.Mass(chem.Monoisotopic); math.Abs(got-8.014199) > 1e-5 {
		t.Errorf("label mass = %f, want 8.014199", got)
	}
	if losses := defs[1].NeutralLosses(Site{Residue: 'S'}); len(losses) != 1 {
		t.Errorf("NeutralLosses(S) = %v, want one loss", losses)
	}
	if !defs[4].IsCrossLinker() {
		t.Errorf("DSS is not a cross-linker")
	}
}

func TestTableFile(t *testing.T) {
	if got := TableFile(Unimod); got != "unimod.yaml" {
		t.Errorf("TableFile(Unimod) = %q, want unimod.yaml", got)
	}
}
