package msp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/PFKey/pkg/spectrum"
)

const library = `Name: EIESAGDITFNR/2
MW: 1479.72
Comment: Parent=740.86 Collision_energy=35 Mods=1/-1,R,TMT_Pro ModString=EIESAGDITFNR//TMT_Pro@R-1/2 iRT=61.01
Num peaks: 3
175.1190	1200	"y1/0.5ppm"
288.2030	3400	"y2"
300.1000	50	"?"

Name: PEPCTIMDE/3
Comment: Parent=360.81 Mods=2/3,C,Carbamidomethyl/6,M,Oxidation Fragmentation=HCD
Num peaks: 2
100.0	10
200.0	20
`

func readAll(t *testing.T, text string) []*spectrum.Spectrum {
	t.Helper()
	r := NewReader(strings.NewReader(text), nil)
	var out []*spectrum.Spectrum
	for r.Next() {
		out = append(out, r.Spectrum())
	}
	require.NoError(t, r.Err())
	return out
}

func TestReader(t *testing.T) {
	specs := readAll(t, library)
	require.Len(t, specs, 2)

	tests := []struct {
		name      string
		spec      *spectrum.Spectrum
		peptide   string
		charge    int
		precursor float64
		peaks     int
	}{
		{name: "mod string", spec: specs[0], peptide: "[TMTpro]-EIESAGDITFNR", charge: 2, precursor: 740.86, peaks: 3},
		{name: "mods field", spec: specs[1], peptide: "PEPC[Carbamidomethyl]TIM[Oxidation]DE", charge: 3, precursor: 360.81, peaks: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.spec.Peptide != tt.peptide {
				t.Errorf("Peptide = %q, want %q", tt.spec.Peptide, tt.peptide)
			}
			if tt.spec.Charge != tt.charge {
				t.Errorf("Charge = %d, want %d", tt.spec.Charge, tt.charge)
			}
			if tt.spec.PrecursorMZ != tt.precursor {
				t.Errorf("PrecursorMZ = %v, want %v", tt.spec.PrecursorMZ, tt.precursor)
			}
			if len(tt.spec.Peaks) != tt.peaks {
				t.Errorf("len(Peaks) = %d, want %d", len(tt.spec.Peaks), tt.peaks)
			}
			if err := tt.spec.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}

	if got := specs[0].Peaks[0].Annotation; got != "y1" {
		t.Errorf("annotation = %q, want y1", got)
	}
	if got := specs[0].Peaks[2].Annotation; got != "" {
		t.Errorf("unknown annotation = %q, want empty", got)
	}
	if specs[0].RetentionTime == nil || *specs[0].RetentionTime != 61.01 {
		t.Errorf("RetentionTime = %v, want 61.01", specs[0].RetentionTime)
	}
	if specs[1].FragmentationMode != "HCD" {
		t.Errorf("FragmentationMode = %q, want HCD", specs[1].FragmentationMode)
	}
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "bad name", text: "Name: PEPTIDE\nNum peaks: 0\n"},
		{name: "bad charge", text: "Name: PEPTIDE/x\n"},
		{name: "bad peak count", text: "Name: PEPTIDE/2\nNum peaks: many\n"},
		{name: "bad peak", text: "Name: PEPTIDE/2\nNum peaks: 1\nabc 10\n"},
		{name: "unknown mod", text: "Name: PEPTIDE/2\nComment: Mods=1/2,P,Nonsense\nNum peaks: 0\n"},
		{name: "mod out of range", text: "Name: PEP/2\nComment: Mods=1/7,P,Oxidation\nNum peaks: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.text), nil)
			for r.Next() {
			}
			if r.Err() == nil {
				t.Error("Err() = nil, want error")
			}
		})
	}
}

func TestReaderEmpty(t *testing.T) {
	if specs := readAll(t, "\n\n"); len(specs) != 0 {
		t.Errorf("read %d spectra from empty input", len(specs))
	}
}
