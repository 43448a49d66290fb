// Package sptxt provides streaming readers for SPTXT (SpectraST) format spectral libraries
package sptxt

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/ontology"
	"github.com/ChrisMcGann/PFKey/pkg/peptide"
	"github.com/ChrisMcGann/PFKey/pkg/reader/modmap"
	"github.com/ChrisMcGann/PFKey/pkg/spectrum"
)

// nominalTolerance is the window used to name inline masses, which
// SpectraST writes rounded to integers.
const nominalTolerance = 0.5

// hydroxyl is the mass of the OH group included in inline C-terminal masses.
var hydroxyl = chem.MustFormula("HO").MonoisotopicMass()

// Reader provides streaming access to SPTXT format files
type Reader struct {
	scanner     *bufio.Scanner
	mods        *modmap.Map
	lineNum     int
	currentSpec *spectrum.Spectrum
	err         error
}

// NewReader creates a new SPTXT reader
func NewReader(r io.Reader, mods *modmap.Map) *Reader {
	if mods == nil {
		mods = modmap.Default()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Reader{
		scanner: scanner,
		mods:    mods,
	}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil

	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *spectrum.Spectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

type entry struct {
	sequence string
	inline   []modmap.Placement
	named    []modmap.Placement
}

// readSpectrum reads a single spectrum entry from the SPTXT file
func (r *Reader) readSpectrum() (*spectrum.Spectrum, error) {
	spec := &spectrum.Spectrum{
		SourceFormat: "sptxt",
		Peaks:        []spectrum.Peak{},
	}
	var e entry

	var numPeaks int
	inPeaks := false
	peaksRead := 0

	finish := func() (*spectrum.Spectrum, error) {
		mods := e.inline
		if len(e.named) > 0 {
			mods = e.named
		}
		pf, err := modmap.Build(e.sequence, mods)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		spec.Peptide = pf
		return spec, nil
	}

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "###") {
			continue
		}

		if !inPeaks {
			switch {
			case strings.HasPrefix(line, "Name: "):
				if err := r.parseName(spec, &e, strings.TrimPrefix(line, "Name: ")); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case strings.HasPrefix(line, "MW: "):
				// Recomputed from the peptide
			case strings.HasPrefix(line, "PrecursorMZ: "):
				if mz, err := strconv.ParseFloat(strings.TrimPrefix(line, "PrecursorMZ: "), 64); err == nil {
					spec.PrecursorMZ = mz
				}
			case strings.HasPrefix(line, "Comment: "):
				if err := r.parseComment(spec, &e, strings.TrimPrefix(line, "Comment: ")); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case strings.HasPrefix(line, "NumPeaks: "):
				n, err := strconv.Atoi(strings.TrimPrefix(line, "NumPeaks: "))
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid num peaks: %w", r.lineNum, err)
				}
				numPeaks = n
				inPeaks = true
				if numPeaks == 0 {
					return finish()
				}
			}
			continue
		}

		peak, err := r.parsePeak(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		spec.Peaks = append(spec.Peaks, peak)
		peaksRead++
		if peaksRead >= numPeaks {
			return finish()
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// If we have a partially read spectrum, return it
	if e.sequence != "" {
		return finish()
	}
	return nil, io.EOF
}

// parseName extracts sequence, charge, and modifications from Name field
// Format: "n[305]AAAAQDEITGDGTTTVVC[160]LVGELLR/3"
func (r *Reader) parseName(spec *spectrum.Spectrum, e *entry, name string) error {
	rawSeq, chargeStr, ok := strings.Cut(name, "/")
	if !ok {
		return fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}

	charge, err := strconv.Atoi(chargeStr)
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}
	spec.Charge = charge
	spec.Title = name

	sequence, mods, err := r.parseInlineModifications(rawSeq)
	if err != nil {
		return fmt.Errorf("failed to parse modifications from sequence: %w", err)
	}
	e.sequence = sequence
	e.inline = mods
	return nil
}

var inlineMod = regexp.MustCompile(`([a-zA-Z]?)\[(\d+(?:\.\d+)?)\]`)

// parseInlineModifications parses sequence with inline modifications like
// n[305]SEQUENCE[160]c[17]. Inline values are whole residue (or terminus)
// masses; they become deltas against the unmodified residue.
func (r *Reader) parseInlineModifications(rawSeq string) (string, []modmap.Placement, error) {
	var sequence strings.Builder
	var mods []modmap.Placement

	// Plain residues between matches
	plain := func(s string) error {
		for i := 0; i < len(s); i++ {
			if _, ok := peptide.ParseAminoAcid(s[i]); !ok {
				return fmt.Errorf("unknown residue '%c'", s[i])
			}
		}
		sequence.WriteString(s)
		return nil
	}

	matches := inlineMod.FindAllStringSubmatchIndex(rawSeq, -1)
	lastIdx := 0
	for n, match := range matches {
		if err := plain(rawSeq[lastIdx:match[0]]); err != nil {
			return "", nil, err
		}

		aa := rawSeq[match[2]:match[3]]
		massStr := rawSeq[match[4]:match[5]]
		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid modification mass '%s': %w", massStr, err)
		}

		switch aa {
		case "n", "":
			next := byte(0)
			if match[1] < len(rawSeq) {
				next = rawSeq[match[1]]
			}
			site := ontology.Site{Residue: next, First: true, Terminal: ontology.NTerminal}
			delta := mass - chem.Hydrogen.MonoisotopicMass()
			mods = append(mods, modmap.Placement{Position: modmap.NTerm, Text: r.mods.ByMass(delta, nominalTolerance, site)})
		case "c":
			site := ontology.Site{Last: true, Terminal: ontology.CTerminal}
			if s := sequence.String(); s != "" {
				site.Residue = s[len(s)-1]
			}
			delta := mass - hydroxyl
			mods = append(mods, modmap.Placement{Position: modmap.CTerm, Text: r.mods.ByMass(delta, nominalTolerance, site)})
		default:
			a, ok := peptide.ParseAminoAcid(aa[0])
			if !ok {
				return "", nil, fmt.Errorf("unknown residue '%s'", aa)
			}
			pos := sequence.Len()
			sequence.WriteString(aa)
			site := ontology.Site{
				Residue: aa[0],
				First:   pos == 0,
				Last:    n == len(matches)-1 && match[1] == len(rawSeq),
			}
			delta := mass - a.Formula().MonoisotopicMass()
			mods = append(mods, modmap.Placement{Position: pos, Text: r.mods.ByMass(delta, nominalTolerance, site)})
		}

		lastIdx = match[1]
	}
	if err := plain(rawSeq[lastIdx:]); err != nil {
		return "", nil, err
	}
	return sequence.String(), mods, nil
}

// parseComment extracts metadata from Comment field
func (r *Reader) parseComment(spec *spectrum.Spectrum, e *entry, comment string) error {
	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}

		switch key {
		case "Parent":
			if mz, err := strconv.ParseFloat(value, 64); err == nil {
				spec.PrecursorMZ = mz
			}

		case "CollisionEnergy":
			if ce, err := strconv.ParseFloat(value, 64); err == nil {
				spec.CollisionEnergy = &ce
			}

		case "RetentionTime":
			// May be comma-separated list, take first value
			first, _, _ := strings.Cut(value, ",")
			if rt, err := strconv.ParseFloat(first, 64); err == nil {
				spec.RetentionTime = &rt
			}

		case "FragmentationType", "Fragmentation":
			spec.FragmentationMode = value

		case "Mods":
			named, err := r.parseMods(value)
			if err != nil {
				return err
			}
			e.named = named
		}
	}
	return nil
}

// parseMods parses the Mods field: "2/-1,A,iTRAQ8plex/17,C,Carbamidomethyl".
// Positions are 0-based; -1 is the N-terminus and -2 the C-terminus.
func (r *Reader) parseMods(modsStr string) ([]modmap.Placement, error) {
	parts := strings.Split(modsStr, "/")
	if count, err := strconv.Atoi(parts[0]); err != nil || count == 0 {
		return nil, nil
	}

	var out []modmap.Placement
	for _, part := range parts[1:] {
		fields := strings.Split(part, ",")
		if len(fields) < 3 {
			return nil, fmt.Errorf("invalid Mods entry '%s'", part)
		}
		pos, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("invalid Mods position '%s': %w", fields[0], err)
		}
		switch {
		case pos == -1:
			pos = modmap.NTerm
		case pos < -1:
			pos = modmap.CTerm
		}
		text, err := r.mods.Resolve(fields[2])
		if err != nil {
			return nil, fmt.Errorf("modification '%s': %w", fields[2], err)
		}
		out = append(out, modmap.Placement{Position: pos, Text: text})
	}
	return out, nil
}

// parsePeak parses a single peak line
// Format: "mz\tintensity\tannotation\t..." or similar
func (r *Reader) parsePeak(line string) (spectrum.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return spectrum.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return spectrum.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}
	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return spectrum.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}

	peak := spectrum.Peak{
		MZ:        mz,
		Intensity: intensity,
	}

	// Annotation is the first of a comma-separated list, "y3/0.5ppm,b5^2/-1.2"
	if len(fields) >= 3 {
		annotation, _, _ := strings.Cut(fields[2], ",")
		if idx := strings.Index(annotation, "/"); idx > 0 {
			annotation = annotation[:idx]
		}
		if annotation != "?" {
			peak.Annotation = annotation
		}
	}
	return peak, nil
}
