// Package mzml provides a streaming reader for the MS/MS scans of mzML files.
package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"golang.org/x/net/html/charset"

	"github.com/ChrisMcGann/PFKey/pkg/spectrum"
)

// ErrUnsupportedCompression is returned for MS-Numpress encoded arrays.
var ErrUnsupportedCompression = errors.New("unsupported binary compression")

type cvParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
}

type binaryDataArray struct {
	CvPar  []cvParam `xml:"cvParam"`
	Binary string    `xml:"binary"`
}

type selectedIon struct {
	CvPar []cvParam `xml:"cvParam"`
}

type precursor struct {
	SelectedIon []selectedIon `xml:"selectedIonList>selectedIon"`
	Activation  []cvParam     `xml:"activation>cvParam"`
}

type scan struct {
	CvPar []cvParam `xml:"cvParam"`
}

type xmlSpectrum struct {
	Index              int               `xml:"index,attr"`
	ID                 string            `xml:"id,attr"`
	DefaultArrayLength int               `xml:"defaultArrayLength,attr"`
	CvPar              []cvParam         `xml:"cvParam"`
	Scan               []scan            `xml:"scanList>scan"`
	Precursor          []precursor       `xml:"precursorList>precursor"`
	BinaryDataArray    []binaryDataArray `xml:"binaryDataArrayList>binaryDataArray"`
}

// Reader streams spectra out of an mzML document without loading the
// whole run.
type Reader struct {
	decoder     *xml.Decoder
	minLevel    int
	currentSpec *spectrum.Spectrum
	level       int
	err         error
}

// NewReader creates a reader that yields scans of MS level minLevel and
// above; 0 yields every scan.
func NewReader(r io.Reader, minLevel int) *Reader {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	return &Reader{decoder: d, minLevel: minLevel}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil
	for {
		t, err := r.decoder.Token()
		if err != nil {
			if err != io.EOF {
				r.err = err
			}
			return false
		}
		start, ok := t.(xml.StartElement)
		if !ok || start.Name.Local != "spectrum" {
			continue
		}
		var xs xmlSpectrum
		if err := r.decoder.DecodeElement(&xs, &start); err != nil {
			r.err = err
			return false
		}
		level := msLevel(xs.CvPar)
		if level < r.minLevel {
			continue
		}
		spec, err := convert(&xs)
		if err != nil {
			r.err = fmt.Errorf("spectrum %s: %w", xs.ID, err)
			return false
		}
		r.currentSpec, r.level = spec, level
		return true
	}
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *spectrum.Spectrum {
	return r.currentSpec
}

// MSLevel returns the MS level of the current spectrum.
func (r *Reader) MSLevel() int {
	return r.level
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

func find(params []cvParam, accession string) (cvParam, bool) {
	for _, p := range params {
		if p.Accession == accession {
			return p, true
		}
	}
	return cvParam{}, false
}

// msLevel reads MS:1000511, defaulting to MS1.
func msLevel(params []cvParam) int {
	if p, ok := find(params, "MS:1000511"); ok {
		if n, err := strconv.Atoi(p.Value); err == nil {
			return n
		}
	}
	return 1
}

var activationNames = map[string]string{
	"MS:1000133": "CID",
	"MS:1000422": "HCD",
	"MS:1000598": "ETD",
	"MS:1002631": "EThcD",
}

func convert(xs *xmlSpectrum) (*spectrum.Spectrum, error) {
	spec := &spectrum.Spectrum{
		Title:        xs.ID,
		Scan:         xs.ID,
		SourceFormat: "mzml",
	}

	for _, sc := range xs.Scan {
		// MS:1000016 scan start time, reported in seconds
		if p, ok := find(sc.CvPar, "MS:1000016"); ok {
			if rt, err := strconv.ParseFloat(p.Value, 64); err == nil {
				if p.UnitAccession == "UO:0000031" || p.UnitAccession == "MS:1000038" {
					rt *= 60
				}
				spec.RetentionTime = &rt
			}
		}
	}

	if len(xs.Precursor) > 0 {
		pre := xs.Precursor[0]
		if len(pre.SelectedIon) > 0 {
			ion := pre.SelectedIon[0].CvPar
			if p, ok := find(ion, "MS:1000744"); ok {
				spec.PrecursorMZ, _ = strconv.ParseFloat(p.Value, 64)
			}
			if p, ok := find(ion, "MS:1000041"); ok {
				spec.Charge, _ = strconv.Atoi(p.Value)
			}
		}
		for _, p := range pre.Activation {
			if name, ok := activationNames[p.Accession]; ok {
				spec.FragmentationMode = name
			}
			if p.Accession == "MS:1000045" {
				if ce, err := strconv.ParseFloat(p.Value, 64); err == nil {
					spec.CollisionEnergy = &ce
				}
			}
		}
	}

	var mzs, intensities []float64
	for i := range xs.BinaryDataArray {
		values, kind, err := decodeArray(&xs.BinaryDataArray[i])
		if err != nil {
			return nil, err
		}
		switch kind {
		case mzArray:
			mzs = values
		case intensityArray:
			intensities = values
		}
	}
	if len(mzs) != len(intensities) {
		return nil, fmt.Errorf("m/z and intensity arrays differ in length (%d vs %d)", len(mzs), len(intensities))
	}
	spec.Peaks = make([]spectrum.Peak, len(mzs))
	for i := range mzs {
		spec.Peaks[i] = spectrum.Peak{MZ: mzs[i], Intensity: intensities[i]}
	}
	if !spec.ArePeaksSorted() {
		spec.SortPeaks()
	}
	return spec, nil
}

type arrayKind int

const (
	otherArray arrayKind = iota
	mzArray
	intensityArray
)

// decodeArray decodes a binary data array.
//
// MS:1000574 zlib compression
// MS:1000514 m/z array
// MS:1000515 intensity array
// MS:1000521 32-bit float
// MS:1000523 64-bit float
// MS:1002312..MS:1002314, MS:1002746..MS:1002748 MS-Numpress variants
func decodeArray(a *binaryDataArray) ([]float64, arrayKind, error) {
	compressed, bits64, kind := false, false, otherArray
	for _, p := range a.CvPar {
		switch p.Accession {
		case "MS:1000574":
			compressed = true
		case "MS:1000514":
			kind = mzArray
		case "MS:1000515":
			kind = intensityArray
		case "MS:1000523":
			bits64 = true
		case "MS:1002312", "MS:1002313", "MS:1002314", "MS:1002746", "MS:1002747", "MS:1002748":
			return nil, kind, fmt.Errorf("%w (CV term %s)", ErrUnsupportedCompression, p.Accession)
		}
	}
	if kind == otherArray {
		return nil, kind, nil
	}

	data, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace([]byte(a.Binary))))
	if err != nil {
		return nil, kind, err
	}
	if compressed && len(data) > 0 {
		z, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, kind, err
		}
		defer z.Close()
		if data, err = io.ReadAll(z); err != nil {
			return nil, kind, err
		}
	}

	var values []float64
	if bits64 {
		values = make([]float64, len(data)/8)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	} else {
		values = make([]float64, len(data)/4)
		for i := range values {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	}
	return values, kind, nil
}
