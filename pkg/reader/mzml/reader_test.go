package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func encode64(t *testing.T, values []float64, compress bool) string {
	t.Helper()
	var buf bytes.Buffer
	for _, v := range values {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, math.Float64bits(v)))
	}
	data := buf.Bytes()
	if compress {
		var z bytes.Buffer
		w := zlib.NewWriter(&z)
		_, err := w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		data = z.Bytes()
	}
	return base64.StdEncoding.EncodeToString(data)
}

func encode32(t *testing.T, values []float32) string {
	t.Helper()
	var buf bytes.Buffer
	for _, v := range values {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, math.Float32bits(v)))
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

const ms1 = `<spectrum index="0" id="scan=1" defaultArrayLength="1">
  <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="1"/>
  <binaryDataArrayList count="0"/>
</spectrum>`

const ms2 = `<spectrum index="1" id="scan=2" defaultArrayLength="3">
  <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="2"/>
  <scanList count="1"><scan>
    <cvParam cvRef="MS" accession="MS:1000016" name="scan start time" value="1.5" unitAccession="UO:0000031"/>
  </scan></scanList>
  <precursorList count="1"><precursor>
    <selectedIonList count="1"><selectedIon>
      <cvParam cvRef="MS" accession="MS:1000744" name="selected ion m/z" value="400.6872"/>
      <cvParam cvRef="MS" accession="MS:1000041" name="charge state" value="2"/>
    </selectedIon></selectedIonList>
    <activation>
      <cvParam cvRef="MS" accession="MS:1000422" name="beam-type collision-induced dissociation"/>
      <cvParam cvRef="MS" accession="MS:1000045" name="collision energy" value="28"/>
    </activation>
  </precursor></precursorList>
  <binaryDataArrayList count="2">
    <binaryDataArray>
      <cvParam cvRef="MS" accession="MS:1000523" name="64-bit float"/>
      <cvParam cvRef="MS" accession="MS:1000574" name="zlib compression"/>
      <cvParam cvRef="MS" accession="MS:1000514" name="m/z array"/>
      <binary>%s</binary>
    </binaryDataArray>
    <binaryDataArray>
      <cvParam cvRef="MS" accession="MS:1000521" name="32-bit float"/>
      <cvParam cvRef="MS" accession="MS:1000576" name="no compression"/>
      <cvParam cvRef="MS" accession="MS:1000515" name="intensity array"/>
      <binary>%s</binary>
    </binaryDataArray>
  </binaryDataArrayList>
</spectrum>`

func document(spectra ...string) string {
	return `<?xml version="1.0" encoding="ISO-8859-1"?>
<indexedmzML xmlns="http://psi.hupo.org/ms/mzml">
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">
<run id="r"><spectrumList count="` + fmt.Sprint(len(spectra)) + `">
` + strings.Join(spectra, "\n") + `
</spectrumList></run>
</mzML>
</indexedmzML>`
}

func TestReader(t *testing.T) {
	mzs := []float64{263.087377, 148.060434, 227.102633}
	intensities := []float32{300, 100, 200}
	doc := document(ms1, fmt.Sprintf(ms2, encode64(t, mzs, true), encode32(t, intensities)))

	tests := []struct {
		name     string
		minLevel int
		want     []string
	}{
		{name: "all levels", minLevel: 0, want: []string{"scan=1", "scan=2"}},
		{name: "ms2 only", minLevel: 2, want: []string{"scan=2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(doc), tt.minLevel)
			var ids []string
			for r.Next() {
				ids = append(ids, r.Spectrum().Scan)
			}
			require.NoError(t, r.Err())
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("scan ids mismatch (-want +got):\n%s", diff)
			}
		})
	}

	r := NewReader(strings.NewReader(doc), 2)
	require.True(t, r.Next())
	s := r.Spectrum()
	if r.MSLevel() != 2 {
		t.Errorf("MSLevel() = %d, want 2", r.MSLevel())
	}
	if s.Charge != 2 || s.PrecursorMZ != 400.6872 {
		t.Errorf("precursor = %v/%d, want 400.6872/2", s.PrecursorMZ, s.Charge)
	}
	if s.FragmentationMode != "HCD" {
		t.Errorf("FragmentationMode = %q, want HCD", s.FragmentationMode)
	}
	if s.RetentionTime == nil || *s.RetentionTime != 90 {
		t.Errorf("RetentionTime = %v, want 90 s", s.RetentionTime)
	}
	if s.CollisionEnergy == nil || *s.CollisionEnergy != 28 {
		t.Errorf("CollisionEnergy = %v, want 28", s.CollisionEnergy)
	}
	var got []float64
	for _, p := range s.Peaks {
		got = append(got, p.MZ, p.Intensity)
	}
	want := []float64{148.060434, 100, 227.102633, 200, 263.087377, 300}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("peaks mismatch (-want +got):\n%s", diff)
	}
	if r.Next() {
		t.Error("Next() = true after last spectrum")
	}
}

func TestReaderErrors(t *testing.T) {
	numpress := `<spectrum index="0" id="scan=1" defaultArrayLength="1">
  <cvParam accession="MS:1000511" value="2"/>
  <binaryDataArrayList count="1"><binaryDataArray>
    <cvParam accession="MS:1002312"/>
    <cvParam accession="MS:1000514"/>
    <binary>AAAA</binary>
  </binaryDataArray></binaryDataArrayList>
</spectrum>`
	r := NewReader(strings.NewReader(document(numpress)), 0)
	if r.Next() {
		t.Fatal("Next() = true for numpress data")
	}
	if !errors.Is(r.Err(), ErrUnsupportedCompression) {
		t.Errorf("Err() = %v, want ErrUnsupportedCompression", r.Err())
	}

	r = NewReader(strings.NewReader("<mzML><run><spectrumList><spectrum"), 0)
	for r.Next() {
	}
	if r.Err() == nil {
		t.Error("Err() = nil for truncated document")
	}
}
