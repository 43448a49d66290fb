package fragment

import (
	"context"
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/PFKey/pkg/ambiguity"
	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/peptide"
	"github.com/ChrisMcGann/PFKey/pkg/proforma"
)

func ionOf(t *testing.T, text string) *peptide.PeptidoformIon {
	t.Helper()
	c, err := proforma.Parse(text, nil)
	require.NoError(t, err)
	require.Len(t, c.Members, 1)
	return &c.Members[0]
}

func find(frags []Fragment, label string, peptidoform int) (Fragment, bool) {
	for _, f := range frags {
		if f.Label() == label && f.Peptidoform == peptidoform {
			return f, true
		}
	}
	return Fragment{}, false
}

func backboneModel(series ...Series) Model {
	return Model{Series: series, Charge: ChargeRange{Min: 1, Max: 1}}
}

func TestBackboneCountAndComplement(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "dipeptide", text: "AA"},
		{name: "peptide", text: "PEPTIDE"},
		{name: "modified", text: "[Acetyl]-EM[Oxidation]EVEES[Phospho]PEK-[Amidated]"},
		{name: "isotope label", text: "<13C>PEPTIDE"},
	}
	for _, tt := range tests {
		for _, mode := range []chem.MassMode{chem.Monoisotopic, chem.Average} {
			t.Run(tt.name+"/"+mode.String(), func(t *testing.T) {
				ion := ionOf(t, tt.text)
				pf := ion.Peptidoforms[0]
				n := pf.Len()
				model := backboneModel(B, Y)
				model.MassMode = mode
				frags, err := Generate(ion, model)
				require.NoError(t, err)

				var bs, ys []Fragment
				for _, f := range frags {
					switch f.Series {
					case B:
						bs = append(bs, f)
					case Y:
						ys = append(ys, f)
					default:
						t.Errorf("unexpected series %v", f.Series)
					}
				}
				if len(bs) != n-1 || len(ys) != n-1 {
					t.Fatalf("got %d b and %d y fragments, want %d each", len(bs), len(ys), n-1)
				}
				whole := pf.Formula().Mass(mode)
				for _, b := range bs {
					y, ok := find(ys, "y"+strconv.Itoa(n-b.Ordinal), 0)
					require.True(t, ok)
					if got := b.Neutral + y.Neutral; math.Abs(got-whole) > 1e-6 {
						t.Errorf("b%d + y%d = %.6f, want %.6f", b.Ordinal, n-b.Ordinal, got, whole)
					}
					if !b.Formula.Add(y.Formula).Equal(pf.Formula()) {
						t.Errorf("b%d + y%d formula = %v, want %v", b.Ordinal, n-b.Ordinal, b.Formula.Add(y.Formula), pf.Formula())
					}
				}
			})
		}
	}
}

func TestKnownMZ(t *testing.T) {
	ion := ionOf(t, "PEPTIDE")
	model := Model{Series: []Series{A, B, C, X, Y, Z, Immonium}, Charge: ChargeRange{Min: 1, Max: 2}}
	frags, err := Generate(ion, model)
	require.NoError(t, err)

	tests := []struct {
		label string
		want  float64
	}{
		{"b2", 227.102633},
		{"a2", 199.107718},
		{"c2", 244.129182},
		{"y1", 148.060434},
		{"y2", 263.087377},
		{"x1", 174.039699},
		{"z1", 132.041710},
		{"y2^2", 132.047327},
		{"imm(P)", 70.065125},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			f, ok := find(frags, tt.label, 0)
			if !ok {
				t.Fatalf("fragment %s not generated", tt.label)
			}
			if math.Abs(f.MZ-tt.want) > 1e-3 {
				t.Errorf("%s MZ = %.6f, want %.6f", tt.label, f.MZ, tt.want)
			}
		})
	}

	imm := 0
	for _, f := range frags {
		if f.Series == Immonium {
			imm++
		}
	}
	if imm != 5 {
		t.Errorf("immonium ions = %d, want 5 distinct residues", imm)
	}
}

func TestInvalidCharge(t *testing.T) {
	ion := ionOf(t, "PEPTIDE")
	for _, r := range []ChargeRange{{0, 2}, {-1, 1}, {3, 1}, {0, 0}} {
		_, err := Generate(ion, Model{Series: []Series{B}, Charge: r})
		var ic *InvalidChargeError
		if !errors.As(err, &ic) {
			t.Errorf("Generate(charge %v) error = %v, want InvalidChargeError", r, err)
		}
	}
	if _, err := Generate(ion, Model{Series: []Series{B}, Charge: ChargeRange{-2, -1}}); err != nil {
		t.Errorf("negative mode error = %v", err)
	}
}

func TestCrossLinkedPartnerStaysAttached(t *testing.T) {
	ion := ionOf(t, "SEK[XLMOD:02001#XL1]UENCE//EMEVTK[#XL1]SESPEK")
	frags, err := Generate(ion, backboneModel(B, Y))
	require.NoError(t, err)

	partner, err := proforma.ParsePeptidoform("EMEVTKSESPEK", nil)
	require.NoError(t, err)
	b2, ok := find(frags, "b2", 0)
	require.True(t, ok)
	b3, ok := find(frags, "b3", 0)
	require.True(t, ok)

	want := 128.094963 + 138.068080 + partner.Formula().MonoisotopicMass()
	if got := b3.Neutral - b2.Neutral; math.Abs(got-want) > 1e-4 {
		t.Errorf("b3 - b2 = %.5f, want %.5f", got, want)
	}

	y5, ok := find(frags, "y5", 0)
	require.True(t, ok)
	if y5.Neutral > b3.Neutral {
		t.Errorf("y5 without the linked lysine carries the partner chain")
	}

	// The second chain is fragmented too, with the first attached at K6.
	if _, ok := find(frags, "y7", 1); !ok {
		t.Errorf("partner chain not fragmented")
	}
}

func TestCrossLinkedChainOfThree(t *testing.T) {
	ion := ionOf(t, "AK[XLMOD:02001#XL1]A//K[#XL1]AK[XLMOD:02001#XL2]A//GK[#XL2]G")
	frags, err := Generate(ion, backboneModel(B))
	require.NoError(t, err)

	mass := func(seq string) float64 {
		pf, err := proforma.ParsePeptidoform(seq, nil)
		require.NoError(t, err)
		return pf.Formula().MonoisotopicMass()
	}
	const lys, ala, dss = 128.094963, 71.037114, 138.068080
	tests := []struct {
		name     string
		chain    int
		from, to string
		want     float64
	}{
		// The middle chain and the one behind it both hang off K2.
		{name: "both partners on first chain", chain: 0, from: "b1", to: "b2", want: lys + dss + mass("KAKA") + dss + mass("GKG")},
		{name: "no partner on middle alanine", chain: 1, from: "b1", to: "b2", want: ala},
		{name: "last chain on middle K3", chain: 1, from: "b2", to: "b3", want: lys + dss + mass("GKG")},
		{name: "first and middle on last chain", chain: 2, from: "b1", to: "b2", want: lys + mass("KAKA") + dss + mass("AKA") + dss},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, ok := find(frags, tt.from, tt.chain)
			require.True(t, ok)
			hi, ok := find(frags, tt.to, tt.chain)
			require.True(t, ok)
			if got := hi.Neutral - lo.Neutral; math.Abs(got-tt.want) > 1e-4 {
				t.Errorf("%s - %s = %.5f, want %.5f", tt.to, tt.from, got, tt.want)
			}
		})
	}
}

func TestGenerateCompound(t *testing.T) {
	c, err := proforma.Parse("PEPTIDE+PEPTIDF", nil)
	require.NoError(t, err)
	frags, err := GenerateCompound(c, backboneModel(B, Y))
	require.NoError(t, err)
	perMember := map[int]int{}
	for _, f := range frags {
		perMember[f.Member]++
	}
	if diff := cmp.Diff(map[int]int{0: 12, 1: 12}, perMember); diff != "" {
		t.Errorf("fragments per member mismatch (-want +got):\n%s", diff)
	}
}

func TestNeutralLossesAndDiagnostics(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		model   Model
		present []string
		absent  []string
	}{
		{
			name:    "phospho loss on fragments containing the site",
			text:    "PEPS[Phospho]TIDE",
			model:   Model{Series: []Series{B, Y}, Charge: ChargeRange{1, 1}, NeutralLosses: true},
			present: []string{"b4-H3O4P", "y5-H3O4P"},
			absent:  []string{"b3-H3O4P", "y4-H3O4P"},
		},
		{
			name:    "model losses",
			text:    "PEPTIDE",
			model:   Model{Series: []Series{B}, Charge: ChargeRange{1, 1}, Losses: []chem.Formula{chem.Water}},
			present: []string{"b3", "b3-H2O"},
		},
		{
			name:    "reporter ion",
			text:    "PEPTK[TMT6plex]",
			model:   Model{Charge: ChargeRange{1, 2}, Diagnostic: true},
			present: []string{"diag(C8H15N)"},
			absent:  []string{"diag(C8H15N)^2"},
		},
		{
			name:    "glycan oxonium and Y ions",
			text:    "N[Glycan:HexNAc2]K",
			model:   Model{Charge: ChargeRange{1, 1}, Glycan: true},
			present: []string{"B[HexNAc]", "B[HexNAc2]", "Y[0]", "Y[HexNAc]"},
		},
		{
			name:    "labile precursor loss",
			text:    "{Glycan:Hex}PEPTIDE",
			model:   Model{Series: []Series{Precursor}, Charge: ChargeRange{1, 1}},
			present: []string{"M", "M-C6H10O5"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frags, err := Generate(ionOf(t, tt.text), tt.model)
			require.NoError(t, err)
			for _, label := range tt.present {
				if _, ok := find(frags, label, 0); !ok {
					t.Errorf("fragment %s missing", label)
				}
			}
			for _, label := range tt.absent {
				if _, ok := find(frags, label, 0); ok {
					t.Errorf("fragment %s unexpected", label)
				}
			}
		})
	}
}

func TestReporterMZ(t *testing.T) {
	frags, err := Generate(ionOf(t, "PEPTK[TMT6plex]"), Model{Charge: ChargeRange{1, 1}, Diagnostic: true})
	require.NoError(t, err)
	f, ok := find(frags, "diag(C8H15N)", 0)
	require.True(t, ok)
	if math.Abs(f.MZ-126.127726) > 1e-4 {
		t.Errorf("reporter MZ = %.6f, want 126.127726", f.MZ)
	}
}

func TestGlycanOxoniumMZ(t *testing.T) {
	frags, err := Generate(ionOf(t, "N[Glycan:HexNAc2]K"), Model{Charge: ChargeRange{1, 1}, Glycan: true})
	require.NoError(t, err)
	f, ok := find(frags, "B[HexNAc]", 0)
	require.True(t, ok)
	if math.Abs(f.MZ-204.086649) > 1e-4 {
		t.Errorf("HexNAc oxonium MZ = %.6f, want 204.086649", f.MZ)
	}
}

func TestPrecursorAdducts(t *testing.T) {
	ion := ionOf(t, "PEPTIDE/2[+2Na+]")
	frags, err := Generate(ion, Model{Series: []Series{Precursor}, Charge: ChargeRange{1, 3}})
	require.NoError(t, err)
	require.Len(t, frags, 1)
	m := ion.Peptidoforms[0].Formula().MonoisotopicMass()
	want := (m + 2*(22.98976928-0.00054858)) / 2
	if got := frags[0].MZ; math.Abs(got-want) > 1e-4 {
		t.Errorf("precursor MZ = %.5f, want %.5f", got, want)
	}
	if frags[0].Charge != 2 {
		t.Errorf("precursor charge = %d, want 2", frags[0].Charge)
	}
}

func TestFragmentChargeCappedByPrecursor(t *testing.T) {
	model := Model{Series: []Series{B}, Charge: ChargeRange{1, 4}}
	frags, err := Generate(ionOf(t, "PEPTIDE/2"), model)
	require.NoError(t, err)
	for _, f := range frags {
		if f.Charge > 2 {
			t.Errorf("%s exceeds precursor charge", f.Label())
		}
	}
	if len(frags) != 12 {
		t.Errorf("got %d fragments, want 12", len(frags))
	}
}

func TestGenerateVariants(t *testing.T) {
	pf, err := proforma.ParsePeptidoform("[+10]?PEP", nil)
	require.NoError(t, err)
	set, err := ambiguity.Resolve(*pf)
	require.NoError(t, err)
	out, err := GenerateVariants(set, backboneModel(B, Y), 0)
	require.NoError(t, err)
	require.Len(t, out, 3)
	b1 := make(map[float64]bool)
	for _, v := range out {
		f, ok := find(v.Fragments, "b1", 0)
		require.True(t, ok)
		b1[math.Round(f.MZ*1000)] = true
	}
	if len(b1) != 2 {
		t.Errorf("distinct b1 masses = %d, want 2", len(b1))
	}
	limited, err := GenerateVariants(set, backboneModel(B), 2)
	require.NoError(t, err)
	if len(limited) != 2 {
		t.Errorf("limited variants = %d, want 2", len(limited))
	}
}

func TestGenerateAllDeterministic(t *testing.T) {
	var ions []*peptide.PeptidoformIon
	for _, text := range []string{"PEPTIDE", "EM[Oxidation]EVEES[Phospho]PEK/2", "SEK[XLMOD:02001#XL1]UENCE//EMEVTK[#XL1]SESPEK", "AA"} {
		ions = append(ions, ionOf(t, text))
	}
	model := CIDHCD()
	serial, err := GenerateAll(context.Background(), ions, model, 1)
	require.NoError(t, err)
	parallel, err := GenerateAll(context.Background(), ions, model, 8)
	require.NoError(t, err)
	opt := cmp.Comparer(func(a, b chem.Formula) bool { return a.Equal(b) })
	if diff := cmp.Diff(serial, parallel, opt); diff != "" {
		t.Errorf("parallel output differs (-serial +parallel):\n%s", diff)
	}
	for i, ion := range ions {
		want, err := Generate(ion, model)
		require.NoError(t, err)
		if len(want) != len(serial[i]) {
			t.Errorf("ion %d: %d fragments, want %d", i, len(serial[i]), len(want))
		}
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		frag Fragment
		want string
	}{
		{Fragment{Series: B, Ordinal: 3, Charge: 1}, "b3"},
		{Fragment{Series: Y, Ordinal: 7, Charge: 2, Loss: "H2O"}, "y7^2-H2O"},
		{Fragment{Series: Z, Ordinal: 2, Charge: -1}, "z2^-1"},
		{Fragment{Series: Precursor, Charge: 3, Loss: "H3O4P"}, "M^3-H3O4P"},
		{Fragment{Series: Immonium, Charge: 1, Name: "M[Oxidation]"}, "imm(M[Oxidation])"},
		{Fragment{Series: GlycanB, Charge: 1, Name: "B[Hex]"}, "B[Hex]"},
	}
	for _, tt := range tests {
		if got := tt.frag.Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
}
