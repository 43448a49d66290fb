// Package annotate matches observed peaks against theoretical fragments.
package annotate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/PFKey/pkg/fragment"
	"github.com/ChrisMcGann/PFKey/pkg/peptide"
	"github.com/ChrisMcGann/PFKey/pkg/spectrum"
)

// AnnotatedPeak is an observed peak with its best matching fragment, if any.
type AnnotatedPeak struct {
	spectrum.Peak
	Fragment *fragment.Fragment
	// Error is the signed mass error in ppm; zero when unmatched.
	Error float64
}

// Matched reports whether the peak was explained.
func (p AnnotatedPeak) Matched() bool { return p.Fragment != nil }

// Stats summarises an annotation.
type Stats struct {
	Matched int
	Total   int
	// MeanError and ErrorVariance describe the ppm errors of matched peaks.
	MeanError         float64
	ErrorVariance     float64
	IntensityCoverage float64
	PeakCoverage      float64
	// PositionCoverage is the fraction of backbone cleavages with at least
	// one matched fragment.
	PositionCoverage float64
	FragmentsFound   int
	FragmentsTotal   int
	// Score is IntensityCoverage scaled by PositionCoverage, or
	// IntensityCoverage alone when no backbone fragment was generated.
	Score float64
}

// Annotated is the result of matching a peak list.
type Annotated struct {
	Peaks     []AnnotatedPeak
	Stats     Stats
	Fragments []fragment.Fragment
	Tolerance Tolerance
}

// better orders two candidate fragments for the same peak: smaller absolute
// error, then series priority, lower charge, member, peptidoform and ordinal.
func better(a, b *fragment.Fragment, errA, errB float64) bool {
	if errA != errB {
		return errA < errB
	}
	if pa, pb := a.Series.Priority(), b.Series.Priority(); pa != pb {
		return pa < pb
	}
	if ca, cb := abs(a.Charge), abs(b.Charge); ca != cb {
		return ca < cb
	}
	if a.Member != b.Member {
		return a.Member < b.Member
	}
	if a.Peptidoform != b.Peptidoform {
		return a.Peptidoform < b.Peptidoform
	}
	return a.Ordinal < b.Ordinal
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// sortedByMZ returns fragment indices ordered by m/z.
func sortedByMZ(frags []fragment.Fragment) []int {
	idx := make([]int, len(frags))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return frags[idx[i]].MZ < frags[idx[j]].MZ })
	return idx
}

// Annotate assigns each peak the fragment with the smallest absolute error
// inside the tolerance. Peaks keep their input order. A peak with no
// candidate is left unmatched.
func Annotate(peaks []spectrum.Peak, fragments []fragment.Fragment, tol Tolerance) *Annotated {
	idx := sortedByMZ(fragments)
	out := &Annotated{
		Peaks:     make([]AnnotatedPeak, len(peaks)),
		Fragments: fragments,
		Tolerance: tol,
	}
	for i, p := range peaks {
		ap := AnnotatedPeak{Peak: p}
		lo, hi := tol.bounds(p.MZ)
		start := sort.Search(len(idx), func(k int) bool { return fragments[idx[k]].MZ >= lo })
		bestErr := math.Inf(1)
		for k := start; k < len(idx) && fragments[idx[k]].MZ <= hi; k++ {
			f := &fragments[idx[k]]
			if !tol.Within(f.MZ, p.MZ) {
				continue
			}
			e := math.Abs(p.MZ - f.MZ)
			if ap.Fragment == nil || better(f, ap.Fragment, e, bestErr) {
				ap.Fragment, bestErr = f, e
			}
		}
		if ap.Fragment != nil {
			ap.Error = PPMError(ap.Fragment.MZ, p.MZ)
			ap.Annotation = ap.Fragment.Label()
			ap.Charge = ap.Fragment.Charge
		}
		out.Peaks[i] = ap
	}
	out.Stats = computeStats(out.Peaks, fragments)
	return out
}

// AnnotateCompound generates the fragments of every chimeric member and
// annotates them together, so each peak is claimed by at most one member.
func AnnotateCompound(peaks []spectrum.Peak, c *peptide.CompoundPeptidoformIon, model fragment.Model, tol Tolerance) (*Annotated, error) {
	frags, err := fragment.GenerateCompound(c, model)
	if err != nil {
		return nil, err
	}
	return Annotate(peaks, frags, tol), nil
}

type cleavage struct {
	member, peptidoform, site int
}

func cleavageOf(f *fragment.Fragment) (cleavage, bool) {
	c := cleavage{member: f.Member, peptidoform: f.Peptidoform}
	switch {
	case !f.Series.Backbone() && !f.Series.Satellite():
		return c, false
	case f.Series.NTerminal():
		c.site = f.End
	default:
		c.site = f.Start
	}
	return c, true
}

func computeStats(peaks []AnnotatedPeak, fragments []fragment.Fragment) Stats {
	s := Stats{Total: len(peaks), FragmentsTotal: len(fragments)}
	intensities := make([]float64, len(peaks))
	var matchedIntensity, errs []float64
	found := make(map[*fragment.Fragment]bool)
	covered := make(map[cleavage]bool)
	for i, p := range peaks {
		intensities[i] = p.Intensity
		if !p.Matched() {
			continue
		}
		s.Matched++
		matchedIntensity = append(matchedIntensity, p.Intensity)
		errs = append(errs, p.Error)
		found[p.Fragment] = true
		if c, ok := cleavageOf(p.Fragment); ok {
			covered[c] = true
		}
	}
	s.FragmentsFound = len(found)

	possible := make(map[cleavage]bool)
	for i := range fragments {
		if c, ok := cleavageOf(&fragments[i]); ok {
			possible[c] = true
		}
	}

	if len(errs) > 0 {
		s.MeanError = stat.Mean(errs, nil)
	}
	if len(errs) > 1 {
		_, s.ErrorVariance = stat.MeanVariance(errs, nil)
	}
	if total := floats.Sum(intensities); total > 0 {
		s.IntensityCoverage = floats.Sum(matchedIntensity) / total
	}
	if s.Total > 0 {
		s.PeakCoverage = float64(s.Matched) / float64(s.Total)
	}
	s.Score = s.IntensityCoverage
	if len(possible) > 0 {
		s.PositionCoverage = float64(len(covered)) / float64(len(possible))
		s.Score *= s.PositionCoverage
	}
	return s
}
