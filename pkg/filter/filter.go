// Package filter provides peak filtering functions
package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/ChrisMcGann/PFKey/pkg/fragment"
	"github.com/ChrisMcGann/PFKey/pkg/spectrum"
)

// Config holds filtering configuration
type Config struct {
	TopN            int               // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64           // Keep only peaks above this % of base peak (0 = no cutoff)
	IonTypes        []fragment.Series // Keep only peaks annotated with these series (nil = all)
	MinMZ, MaxMZ    float64           // Keep only peaks inside [MinMZ, MaxMZ] (0 = open)
}

// Apply applies all configured filters to a spectrum
func (c *Config) Apply(spec *spectrum.Spectrum) {
	if len(c.IonTypes) > 0 {
		c.filterByIonType(spec)
	}
	if c.MinMZ > 0 || c.MaxMZ > 0 {
		c.filterByRange(spec)
	}
	if c.IntensityCutoff > 0 {
		c.filterByIntensity(spec)
	}
	if c.TopN > 0 {
		c.filterTopN(spec)
	}

	// Ensure peaks are sorted after all filtering
	spec.SortPeaks()
}

// ParseIonTypes reads a comma-separated list of series names.
func ParseIonTypes(list string) ([]fragment.Series, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var out []fragment.Series
	for _, name := range strings.Split(list, ",") {
		s, err := fragment.ParseSeries(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// filterByIonType keeps only peaks whose annotation belongs to an allowed series
func (c *Config) filterByIonType(spec *spectrum.Spectrum) {
	var filtered []spectrum.Peak
	for _, peak := range spec.Peaks {
		info, err := ParseLabel(peak.Annotation)
		if err != nil {
			continue
		}
		for _, s := range c.IonTypes {
			if info.Series == s {
				filtered = append(filtered, peak)
				break
			}
		}
	}
	spec.Peaks = filtered
}

func (c *Config) filterByRange(spec *spectrum.Spectrum) {
	var filtered []spectrum.Peak
	for _, peak := range spec.Peaks {
		if peak.MZ < c.MinMZ || (c.MaxMZ > 0 && peak.MZ > c.MaxMZ) {
			continue
		}
		filtered = append(filtered, peak)
	}
	spec.Peaks = filtered
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c *Config) filterByIntensity(spec *spectrum.Spectrum) {
	if len(spec.Peaks) == 0 {
		return
	}

	intensities := make([]float64, len(spec.Peaks))
	for i, peak := range spec.Peaks {
		intensities[i] = peak.Intensity
	}
	threshold := (c.IntensityCutoff / 100.0) * floats.Max(intensities)

	var filtered []spectrum.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}

// filterTopN keeps only the N most intense peaks
func (c *Config) filterTopN(spec *spectrum.Spectrum) {
	if len(spec.Peaks) <= c.TopN {
		return
	}

	peaks := make([]spectrum.Peak, len(spec.Peaks))
	copy(peaks, spec.Peaks)

	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Intensity > peaks[j].Intensity
	})

	spec.Peaks = peaks[:c.TopN]
}

// LabelInfo is a parsed fragment annotation.
type LabelInfo struct {
	Series  fragment.Series
	Ordinal int
	Charge  int
	Loss    string
}

var (
	backboneLabel = regexp.MustCompile(`^([abcxyzdvw])(\d+)(?:\^(-?\d+))?(?:-(.+))?$`)
	namedLabel    = regexp.MustCompile(`^(imm\(.*\)|diag\(.*\)|M|[BY]\[.*\]|int\[.*\])(?:\^(-?\d+))?(?:-([A-Z].*))?$`)
)

// ParseLabel parses annotations produced by fragment.Fragment.Label, such as
// "y3", "b2^2-H2O", "M^3" or "imm(K)".
func ParseLabel(annotation string) (*LabelInfo, error) {
	if m := backboneLabel.FindStringSubmatch(annotation); m != nil {
		s, err := fragment.ParseSeries(m[1])
		if err != nil {
			return nil, err
		}
		info := &LabelInfo{Series: s, Charge: 1, Loss: m[4]}
		info.Ordinal, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			info.Charge, _ = strconv.Atoi(m[3])
		}
		return info, nil
	}
	m := namedLabel.FindStringSubmatch(annotation)
	if m == nil {
		return nil, fmt.Errorf("invalid ion annotation format: %s", annotation)
	}
	info := &LabelInfo{Charge: 1, Loss: m[3]}
	switch name := m[1]; {
	case name == "M":
		info.Series = fragment.Precursor
	case strings.HasPrefix(name, "imm("):
		info.Series = fragment.Immonium
	case strings.HasPrefix(name, "diag("):
		info.Series = fragment.Diagnostic
	case strings.HasPrefix(name, "B["):
		info.Series = fragment.GlycanB
	case strings.HasPrefix(name, "Y["):
		info.Series = fragment.GlycanY
	default:
		info.Series = fragment.GlycanInternal
	}
	if m[2] != "" {
		info.Charge, _ = strconv.Atoi(m[2])
	}
	return info, nil
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(spec *spectrum.Spectrum) {
	var filtered []spectrum.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}
