// Package spectrum provides the observed spectrum model shared by the
// readers, the annotator and the SQLite writer.
package spectrum

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ChrisMcGann/PFKey/pkg/ontology"
	"github.com/ChrisMcGann/PFKey/pkg/peptide"
	"github.com/ChrisMcGann/PFKey/pkg/proforma"
)

// Spectrum is a single MS/MS spectrum with the peptidoform assigned to it.
type Spectrum struct {
	Title       string
	Peptide     string // ProForma notation
	Charge      int    // Precursor charge state
	PrecursorMZ float64
	Peaks       []Peak

	// Optional metadata
	FragmentationMode string // HCD, CID, ETD
	MassAnalyzer      string
	RetentionTime     *float64
	CollisionEnergy   *float64
	Instrument        string
	Scan              string

	// Internal tracking
	SourceFile   string
	SourceFormat string // msp, sptxt, mzml
}

// Peak is a single m/z, intensity pair with an optional annotation.
type Peak struct {
	MZ         float64
	Intensity  float64
	Annotation string // e.g. "y3", "b2^2-H2O"
	Charge     int
}

// ValidationError represents an error found during spectrum validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a spectrum can be annotated.
func (s *Spectrum) Validate() error {
	var errs []string

	if s.Peptide == "" {
		errs = append(errs, "peptide is required")
	} else if _, err := proforma.Parse(s.Peptide, nil); err != nil {
		errs = append(errs, fmt.Sprintf("peptide '%s' is not valid ProForma: %v", s.Peptide, err))
	}
	if s.Charge <= 0 {
		errs = append(errs, "charge must be positive")
	}
	if s.PrecursorMZ < 0 {
		errs = append(errs, "precursor m/z must not be negative")
	}
	if len(s.Peaks) == 0 {
		errs = append(errs, "at least one peak is required")
	}

	for i, peak := range s.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}

	if !s.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Spectrum",
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (s *Spectrum) ArePeaksSorted() bool {
	for i := 1; i < len(s.Peaks); i++ {
		if s.Peaks[i].MZ < s.Peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by m/z in ascending order.
func (s *Spectrum) SortPeaks() {
	sort.SliceStable(s.Peaks, func(i, j int) bool {
		return s.Peaks[i].MZ < s.Peaks[j].MZ
	})
}

// Ion parses the peptide. When the notation carries no charge state the
// spectrum charge is applied to every member.
func (s *Spectrum) Ion(tables *ontology.Tables) (*peptide.CompoundPeptidoformIon, error) {
	c, err := proforma.Parse(s.Peptide, tables)
	if err != nil {
		return nil, err
	}
	if s.Charge > 0 {
		for i := range c.Members {
			if c.Members[i].Charge == nil {
				c.Members[i].Charge = &peptide.Charge{Total: s.Charge}
			}
		}
	}
	return c, nil
}

// Name returns the spectrum name in format "Peptide/Charge".
func (s *Spectrum) Name() string {
	if s.Title != "" {
		return s.Title
	}
	return fmt.Sprintf("%s/%d", s.Peptide, s.Charge)
}
