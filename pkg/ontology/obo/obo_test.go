package obo

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/PFKey/pkg/ontology"
)

func readTestdata(t *testing.T, name string) *Document {
	t.Helper()
	doc, err := ReadFile("testdata/" + name)
	require.NoError(t, err)
	return doc
}

func mass(m float64) *float64 { return &m }

func TestRead(t *testing.T) {
	text := `format-version: 1.2
! a comment line

[Term]
id: MOD:00046
name: O-phospho-L-serine
def: "Converts \"serine\"! to phosphoserine." [PubMed:12345, RESID:AA0037]
synonym: "PSer" EXACT PSI-MOD-label []
synonym: "O-phospho-L-serine" EXACT RESID-name []
xref: DiffMono: "79.966331"
property_value: reactionSites "2" xsd:nonNegativeInteger
is_a: MOD:00696 ! phosphorylated residue

[Typedef]
id: part_of
`
	doc, err := Read(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, doc.Stanzas, 2)
	if diff := cmp.Diff([]string{"1.2"}, doc.Header["format-version"]); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	terms := doc.Terms()
	require.Len(t, terms, 1)
	s := terms[0]
	tests := []struct {
		name string
		got  any
		want any
	}{
		{name: "comment stripped", got: s.Tag("is_a"), want: "MOD:00696"},
		{name: "xref property", got: s.Prop("DiffMono"), want: "79.966331"},
		{name: "typed property", got: s.Prop("reactionSites"), want: "2"},
		{name: "def refs", got: s.DefRefs(), want: []string{"PubMed:12345", "RESID:AA0037"}},
		{name: "typed synonyms", got: s.Synonyms("RESID-name"), want: []string{"O-phospho-L-serine"}},
		{name: "all synonyms", got: s.Synonyms(""), want: []string{"PSer", "O-phospho-L-serine"}},
		{name: "missing tag", got: s.Tag("comment"), want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadRejectsBadLine(t *testing.T) {
	_, err := Read(strings.NewReader("[Term]\nid: X:1\nnot a tag line\n"))
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "error = %v", err)
	if pe.Line != 3 {
		t.Errorf("Line = %d, want 3", pe.Line)
	}
}

func TestFormulas(t *testing.T) {
	tests := []struct {
		name    string
		parse   func(string) (string, error)
		text    string
		want    string
		wantErr bool
	}{
		{name: "unimod elements", parse: unimodString, text: "H(2) C(2) O", want: "C2H2O"},
		{name: "unimod isotopes", parse: unimodString, text: "C(-6) 13C(6) N(-2) 15N(2)", want: "C-6[13C6]N-2[15N2]"},
		{name: "unimod deuterium", parse: unimodString, text: "H(-1) 2H(3) C(2) O", want: "C2H-1[2H3]O"},
		{name: "unimod monosaccharides", parse: unimodString, text: "Hex(2) HexNAc", want: "C20H33NO15"},
		{name: "unimod bricks", parse: unimodString, text: "Ac Me(2)", want: "C4H6O"},
		{name: "unimod empty", parse: unimodString, text: "", want: "0"},
		{name: "unimod unknown brick", parse: unimodString, text: "Zz(2)", wantErr: true},
		{name: "unimod unclosed count", parse: unimodString, text: "H(2", wantErr: true},
		{name: "psimod", parse: psimodString, text: "C 2 H 2 N 0 O 1", want: "C2H2O"},
		{name: "psimod isotope", parse: psimodString, text: "(13)C 6 C -6", want: "C-6[13C6]"},
		{name: "psimod missing count", parse: psimodString, text: "C 2 H", wantErr: true},
		{name: "xlmod", parse: xlmodString, text: "C8 H10 O2", want: "C8H10O2"},
		{name: "xlmod deuterium and negation", parse: xlmodString, text: "C8 D4 -H4 O2", want: "C8H-4[2H4]O2"},
		{name: "xlmod isotope", parse: xlmodString, text: "13C6 -C6", want: "C-6[13C6]"},
		{name: "xlmod unknown element", parse: xlmodString, text: "Q2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.parse(tt.text)
			if tt.wantErr {
				var fe *FormulaError
				if !errors.As(err, &fe) {
					t.Errorf("error = %v, want *FormulaError", err)
				}
				return
			}
			require.NoError(t, err)
			if got != tt.want {
				t.Errorf("formula = %q, want %q", got, tt.want)
			}
		})
	}
}

func unimodString(text string) (string, error) {
	f, err := UnimodFormula(text)
	return f.String(), err
}

func psimodString(text string) (string, error) {
	f, err := PSIMODFormula(text)
	return f.String(), err
}

func xlmodString(text string) (string, error) {
	f, err := XLMODFormula(text)
	return f.String(), err
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		convert     func(*Document) ([]ontology.TableEntry, []error)
		want        []ontology.TableEntry
		wantSkipped []string
	}{
		{
			name:    "unimod",
			file:    "unimod.obo",
			convert: Unimod,
			want: []ontology.TableEntry{
				{ID: "1", Name: "Acetyl", Formula: "C2H2O", Rules: []ontology.TableRule{
					{Residues: "TK", Position: "anywhere"},
					{Position: "protein_n_term"},
				}},
				{ID: "21", Name: "Phospho", Formula: "HO3P", Rules: []ontology.TableRule{
					{Residues: "ST", Position: "anywhere", Losses: []string{"H3O4P"}},
					{Residues: "Y", Position: "anywhere"},
				}},
				{ID: "41", Name: "Hex", Formula: "C6H10O5", Rules: []ontology.TableRule{
					{Residues: "N", Position: "anywhere"},
				}},
				{ID: "56", Name: "Acetyl:2H(3)", Formula: "C2H-1[2H3]O", Rules: []ontology.TableRule{
					{Residues: "K", Position: "anywhere"},
					{Position: "any_n_term"},
				}},
				{ID: "259", Name: "Label:13C(6)15N(2)", Formula: "C-6[13C6]N-2[15N2]", Rules: []ontology.TableRule{
					{Residues: "K", Position: "anywhere"},
				}},
			},
			wantSkipped: []string{"UNIMOD:9999"},
		},
		{
			name:    "psimod",
			file:    "psimod.obo",
			convert: PSIMOD,
			want: []ontology.TableEntry{
				{ID: "00034", Name: "L-cystine (cross-link)", Formula: "H-2", Valence: 2, Rules: []ontology.TableRule{
					{Residues: "C", Position: "anywhere"},
				}},
				{ID: "00046", Name: "O-phospho-L-serine", Formula: "HO3P", Rules: []ontology.TableRule{
					{Residues: "S", Position: "anywhere"},
				}},
				{ID: "00394", Name: "acetylated residue", Formula: "C2H2O", Rules: []ontology.TableRule{
					{Position: "any_n_term"},
				}},
			},
			wantSkipped: []string{"MOD:00000"},
		},
		{
			name:    "resid from psimod",
			file:    "psimod.obo",
			convert: RESID,
			want: []ontology.TableEntry{
				{ID: "AA0025", Name: "L-cystine (cross-link)", Mass: mass(-2.015650), Rules: []ontology.TableRule{
					{Residues: "C", Position: "anywhere"},
				}},
				{ID: "AA0037", Name: "O-phospho-L-serine", Mass: mass(79.966331), Rules: []ontology.TableRule{
					{Residues: "S", Position: "anywhere"},
				}},
			},
		},
		{
			name:    "xlmod",
			file:    "xlmod.obo",
			convert: XLMOD,
			want: []ontology.TableEntry{
				{ID: "02001", Name: "DSS", Formula: "C8H10O2", Valence: 2, Rules: []ontology.TableRule{
					{Residues: "KSTY", Position: "anywhere"},
					{Position: "protein_n_term"},
				}},
				{ID: "02002", Name: "DSS hydrolyzed", Formula: "C8H12O3", Rules: []ontology.TableRule{
					{Residues: "KSTY", Position: "anywhere"},
					{Position: "protein_n_term"},
				}},
				{ID: "02100", Name: "heavy linker", Formula: "C8H-4[2H4]O2", Valence: 2, Rules: []ontology.TableRule{
					{Residues: "KED", Position: "anywhere"},
					{Position: "protein_c_term"},
				}},
			},
		},
		{
			name:    "gno",
			file:    "gno.obo",
			convert: GNO,
			want: []ontology.TableEntry{
				{ID: "G59626AS", Name: "G59626AS", Composition: "HexNAc2Hex5", Rules: []ontology.TableRule{
					{Residues: "NST", Position: "anywhere"},
				}},
			},
			wantSkipped: []string{"GNO:G00099XY"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, skipped := tt.convert(readTestdata(t, tt.file))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("entries mismatch (-want +got):\n%s", diff)
			}
			var ids []string
			for _, err := range skipped {
				var se *SkipError
				require.True(t, errors.As(err, &se), "skip error = %v", err)
				ids = append(ids, se.ID)
			}
			if diff := cmp.Diff(tt.wantSkipped, ids); diff != "" {
				t.Errorf("skipped mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestConvertedTablesLoad writes every converted table and reads it back
// through the same loader as the bundled tables.
func TestConvertedTablesLoad(t *testing.T) {
	sources := []struct {
		o       ontology.Ontology
		file    string
		convert func(*Document) ([]ontology.TableEntry, []error)
	}{
		{ontology.Unimod, "unimod.obo", Unimod},
		{ontology.PSIMOD, "psimod.obo", PSIMOD},
		{ontology.RESID, "psimod.obo", RESID},
		{ontology.XLMOD, "xlmod.obo", XLMOD},
		{ontology.GNO, "gno.obo", GNO},
	}
	var defs []*ontology.Definition
	for _, src := range sources {
		entries, _ := src.convert(readTestdata(t, src.file))
		var sb strings.Builder
		require.NoError(t, ontology.WriteTable(&sb, "test table", entries))
		loaded, err := ontology.Load(src.o, strings.NewReader(sb.String()))
		require.NoError(t, err, "table:\n%s", sb.String())
		require.Len(t, loaded, len(entries))
		defs = append(defs, loaded...)
	}
	tables := ontology.NewTables(defs...)

	silac, err := tables.ByID(ontology.Unimod, "259")
	require.NoError(t, err)
	if got := silac.Formula.MonoisotopicMass(); got < 8.0141 || got > 8.0143 {
		t.Errorf("Label:13C(6)15N(2) mass = %f, want 8.014199", got)
	}
	phospho, err := tables.ByName(ontology.Unimod, "phospho")
	require.NoError(t, err)
	require.Len(t, phospho.Rules, 2)
	require.Len(t, phospho.Rules[0].NeutralLosses, 1)

	dss, err := tables.ByID(ontology.XLMOD, "2001")
	require.NoError(t, err)
	require.True(t, dss.IsCrossLinker())

	_, err = tables.ByID(ontology.RESID, "AA0037")
	require.NoError(t, err)
	glycan, err := tables.ByID(ontology.GNO, "G59626AS")
	require.NoError(t, err)
	require.Equal(t, 7, glycan.Glycan.Size())
}
