package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ChrisMcGann/PFKey/pkg/fragment"
	"github.com/ChrisMcGann/PFKey/pkg/spectrum"
)

func testSpectrum() *spectrum.Spectrum {
	return &spectrum.Spectrum{
		Peptide: "PEPTIDE",
		Charge:  2,
		Peaks: []spectrum.Peak{
			{MZ: 70.0651, Intensity: 5, Annotation: "imm(P)"},
			{MZ: 148.0604, Intensity: 100, Annotation: "y1"},
			{MZ: 150.0, Intensity: 1},
			{MZ: 227.1026, Intensity: 50, Annotation: "b2"},
			{MZ: 263.0874, Intensity: 80, Annotation: "y2"},
			{MZ: 400.6872, Intensity: 20, Annotation: "M^2-H2O"},
		},
	}
}

func mzs(s *spectrum.Spectrum) []float64 {
	var out []float64
	for _, p := range s.Peaks {
		out = append(out, p.MZ)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   []float64
	}{
		{name: "no filters", config: Config{}, want: []float64{70.0651, 148.0604, 150.0, 227.1026, 263.0874, 400.6872}},
		{name: "top 2", config: Config{TopN: 2}, want: []float64{148.0604, 263.0874}},
		{name: "cutoff 50%", config: Config{IntensityCutoff: 50}, want: []float64{148.0604, 227.1026, 263.0874}},
		{name: "y ions", config: Config{IonTypes: []fragment.Series{fragment.Y}}, want: []float64{148.0604, 263.0874}},
		{name: "precursor and immonium", config: Config{IonTypes: []fragment.Series{fragment.Precursor, fragment.Immonium}}, want: []float64{70.0651, 400.6872}},
		{name: "mz range", config: Config{MinMZ: 100, MaxMZ: 300}, want: []float64{148.0604, 150.0, 227.1026, 263.0874}},
		{name: "combined", config: Config{IonTypes: []fragment.Series{fragment.B, fragment.Y}, TopN: 2}, want: []float64{148.0604, 263.0874}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSpectrum()
			tt.config.Apply(s)
			if diff := cmp.Diff(tt.want, mzs(s)); diff != "" {
				t.Errorf("Apply() peaks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in      string
		want    *LabelInfo
		wantErr bool
	}{
		{in: "y3", want: &LabelInfo{Series: fragment.Y, Ordinal: 3, Charge: 1}},
		{in: "b12^2-H2O", want: &LabelInfo{Series: fragment.B, Ordinal: 12, Charge: 2, Loss: "H2O"}},
		{in: "z2^-1", want: &LabelInfo{Series: fragment.Z, Ordinal: 2, Charge: -1}},
		{in: "M^3-H3O4P", want: &LabelInfo{Series: fragment.Precursor, Charge: 3, Loss: "H3O4P"}},
		{in: "imm(M[Oxidation])", want: &LabelInfo{Series: fragment.Immonium, Charge: 1}},
		{in: "diag(C8H15N)", want: &LabelInfo{Series: fragment.Diagnostic, Charge: 1}},
		{in: "B[HexNAc2]", want: &LabelInfo{Series: fragment.GlycanB, Charge: 1}},
		{in: "Y[0]^2", want: &LabelInfo{Series: fragment.GlycanY, Charge: 2}},
		{in: "int[Hex]", want: &LabelInfo{Series: fragment.GlycanInternal, Charge: 1}},
		{in: "", wantErr: true},
		{in: "?", wantErr: true},
		{in: "q3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLabel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLabel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseLabel(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestLabelsRoundTrip(t *testing.T) {
	frags := []fragment.Fragment{
		{Series: fragment.W, Ordinal: 4, Charge: 2},
		{Series: fragment.A, Ordinal: 1, Charge: 1, Loss: "NH3"},
		{Series: fragment.Precursor, Charge: 2},
		{Series: fragment.GlycanY, Charge: 1, Name: "Y[HexNAc]"},
	}
	for _, f := range frags {
		info, err := ParseLabel(f.Label())
		if err != nil {
			t.Errorf("ParseLabel(%q) error = %v", f.Label(), err)
			continue
		}
		if info.Series != f.Series || info.Charge != f.Charge || info.Ordinal != f.Ordinal || info.Loss != f.Loss {
			t.Errorf("ParseLabel(%q) = %+v, want fields of %+v", f.Label(), info, f)
		}
	}
}

func TestParseIonTypes(t *testing.T) {
	got, err := ParseIonTypes("b, y,imm")
	if err != nil {
		t.Fatalf("ParseIonTypes() error = %v", err)
	}
	if diff := cmp.Diff([]fragment.Series{fragment.B, fragment.Y, fragment.Immonium}, got); diff != "" {
		t.Errorf("ParseIonTypes() mismatch (-want +got):\n%s", diff)
	}
	if _, err := ParseIonTypes("b,q"); err == nil {
		t.Error("ParseIonTypes(b,q) succeeded, want error")
	}
	if got, _ := ParseIonTypes(""); got != nil {
		t.Errorf("ParseIonTypes(\"\") = %v, want nil", got)
	}
}

func TestRemoveZeroIntensityPeaks(t *testing.T) {
	s := &spectrum.Spectrum{Peaks: []spectrum.Peak{{MZ: 1, Intensity: 0}, {MZ: 2, Intensity: 3}, {MZ: 3, Intensity: -1}}}
	RemoveZeroIntensityPeaks(s)
	if diff := cmp.Diff([]float64{2}, mzs(s)); diff != "" {
		t.Errorf("RemoveZeroIntensityPeaks() mismatch (-want +got):\n%s", diff)
	}
}
