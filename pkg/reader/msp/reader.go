// Package msp provides streaming readers for MSP (Prosit) format spectral libraries
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PFKey/pkg/reader/modmap"
	"github.com/ChrisMcGann/PFKey/pkg/spectrum"
)

// Reader provides streaming access to MSP format files
type Reader struct {
	scanner     *bufio.Scanner
	mods        *modmap.Map
	lineNum     int
	currentSpec *spectrum.Spectrum
	err         error
}

// NewReader creates a new MSP reader
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

// entry collects the raw fields of one library entry.
type entry struct {
	sequence  string
	mods      []modmap.Placement
	modString bool // ModString seen; it supersedes Mods
}

// readSpectrum reads a single spectrum entry from the MSP file
func (r *Reader) readSpectrum() (*spectrum.Spectrum, error) {
	spec := &spectrum.Spectrum{
		SourceFormat: "msp",
		Peaks:        []spectrum.Peak{},
	}
	var e entry

	var numPeaks int
	inPeaks := false
	peaksRead := 0

	finish := func() (*spectrum.Spectrum, error) {
		pf, err := modmap.Build(e.sequence, e.mods)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		spec.Peptide = pf
		return spec, nil
	}

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip empty lines between entries
		if line == "" && e.sequence == "" {
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
			case strings.HasPrefix(line, "Comment: "):
				if err := r.parseComment(spec, &e, strings.TrimPrefix(line, "Comment: ")); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case strings.HasPrefix(line, "Num peaks: "):
				n, err := strconv.Atoi(strings.TrimPrefix(line, "Num peaks: "))
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

// parseName extracts sequence and charge from Name field (format: "SEQUENCE/CHARGE")
func (r *Reader) parseName(spec *spectrum.Spectrum, e *entry, name string) error {
	seq, chargeStr, ok := strings.Cut(name, "/")
	if !ok {
		return fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}
	// Some libraries append "_<mods>" to the charge
	chargeStr, _, _ = strings.Cut(chargeStr, "_")

	charge, err := strconv.Atoi(chargeStr)
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}
	e.sequence = seq
	spec.Title = name
	spec.Charge = charge
	return nil
}

// parseComment extracts metadata from Comment field
func (r *Reader) parseComment(spec *spectrum.Spectrum, e *entry, comment string) error {
	// Comment format: key=value key=value...
	// Example: Parent=414.71 Collision_energy=35 Mods=1/-1,R,TMT_Pro ModString=SEQUENCE//TMT_Pro@R-1/4 iRT=61.01
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

		case "Collision_energy", "CollisionEnergy":
			if ce, err := strconv.ParseFloat(value, 64); err == nil {
				spec.CollisionEnergy = &ce
			}

		case "iRT", "RetentionTime":
			if rt, err := strconv.ParseFloat(value, 64); err == nil {
				spec.RetentionTime = &rt
			}

		case "Fragmentation":
			spec.FragmentationMode = value

		case "Mods":
			if e.modString {
				continue
			}
			mods, err := r.parseMods(value)
			if err != nil {
				return err
			}
			e.mods = mods

		case "ModString":
			mods, err := r.parseModString(value)
			if err != nil {
				return err
			}
			e.mods, e.modString = mods, true
		}
	}
	return nil
}

// parseMods parses the Mods field: "count/pos,AA,Name/pos,AA,Name...".
// Positions are 0-based; -1 is the N-terminus.
func (r *Reader) parseMods(modsStr string) ([]modmap.Placement, error) {
	parts := strings.Split(modsStr, "/")
	count, err := strconv.Atoi(parts[0])
	if err != nil || count == 0 {
		return nil, nil
	}
	var out []modmap.Placement
	for _, spec := range parts[1:] {
		fields := strings.Split(spec, ",")
		if len(fields) < 3 {
			return nil, fmt.Errorf("invalid Mods entry '%s'", spec)
		}
		pos, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("invalid Mods position '%s': %w", fields[0], err)
		}
		if pos < 0 {
			pos = modmap.NTerm
		}
		text, err := r.mods.Resolve(fields[2])
		if err != nil {
			return nil, fmt.Errorf("modification '%s': %w", fields[2], err)
		}
		out = append(out, modmap.Placement{Position: pos, Text: text})
	}
	return out, nil
}

// parseModString parses the ModString field: "SEQUENCE//Mod@Pos;Mod@Pos/Charge"
func (r *Reader) parseModString(modString string) ([]modmap.Placement, error) {
	_, modPart, ok := strings.Cut(modString, "//")
	if !ok {
		return nil, nil
	}
	// Remove trailing charge info if present
	modPart, _, _ = strings.Cut(modPart, "/")
	return r.mods.ParseModString(modPart)
}

// parsePeak parses a single peak line (format: "mz\tintensity\t\"annotation\"")
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

	// Parse annotation if present (third field, may be quoted)
	if len(fields) >= 3 {
		annotation := strings.Trim(fields[2], "\"")
		// Drop the ppm error suffix
		if idx := strings.Index(annotation, "/"); idx > 0 {
			annotation = annotation[:idx]
		}
		if annotation != "?" {
			peak.Annotation = annotation
		}
	}
	return peak, nil
}
