package annotate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// decoyShifts are the offsets, in Th, applied to the peaks to estimate
// random matching. The non-integer part keeps isotope spacing from
// producing spurious hits.
var decoyShifts = func() []float64 {
	var out []float64
	for k := -25; k <= 25; k++ {
		out = append(out, float64(k)+math.Pi)
	}
	return out
}()

// Fdr compares the real annotation with annotations of shifted peaks.
// Fractions are relative to the peak count and the total intensity.
type Fdr struct {
	PeaksActual           float64
	PeaksAverageFalse     float64
	PeaksStdDevFalse      float64
	IntensityActual       float64
	IntensityAverageFalse float64
	IntensityStdDevFalse  float64
}

// FDR is the average false peak fraction over the actual fraction.
func (f Fdr) FDR() float64 { return f.PeaksAverageFalse / f.PeaksActual }

// Sigma is the distance of the actual peak fraction from the false
// distribution in standard deviations.
func (f Fdr) Sigma() float64 {
	return (f.PeaksActual - f.PeaksAverageFalse) / f.PeaksStdDevFalse
}

// IntensityFDR is FDR computed on annotated intensity.
func (f Fdr) IntensityFDR() float64 { return f.IntensityAverageFalse / f.IntensityActual }

// IntensitySigma is Sigma computed on annotated intensity.
func (f Fdr) IntensitySigma() float64 {
	return (f.IntensityActual - f.IntensityAverageFalse) / f.IntensityStdDevFalse
}

// FDR estimates the false discovery rate of the annotation by permutation:
// every fragment is matched against the peaks shifted by each decoy offset.
func (a *Annotated) FDR() Fdr {
	n := len(a.Peaks)
	if n == 0 {
		return Fdr{}
	}
	order := make([]int, n)
	intensities := make([]float64, n)
	for i := range order {
		order[i] = i
		intensities[i] = a.Peaks[i].Intensity
	}
	sort.SliceStable(order, func(i, j int) bool { return a.Peaks[order[i]].MZ < a.Peaks[order[j]].MZ })
	totalIntensity := floats.Sum(intensities)

	peakFractions := make([]float64, 0, len(decoyShifts))
	intensityFractions := make([]float64, 0, len(decoyShifts))
	shifted := make([]float64, n)
	for _, shift := range decoyShifts {
		for i, pi := range order {
			shifted[i] = a.Peaks[pi].MZ + shift
		}
		claimed := make([]bool, n)
		count, intensity := 0, 0.0
		for _, f := range a.Fragments {
			k := sort.SearchFloat64s(shifted, f.MZ)
			best, bestErr := -1, math.Inf(1)
			for i := max(k-1, 0); i <= min(k+1, n-1); i++ {
				if e := math.Abs(shifted[i] - f.MZ); e < bestErr {
					best, bestErr = i, e
				}
			}
			if best < 0 || claimed[best] || !a.Tolerance.Within(f.MZ, shifted[best]) {
				continue
			}
			claimed[best] = true
			count++
			intensity += a.Peaks[order[best]].Intensity
		}
		peakFractions = append(peakFractions, float64(count)/float64(n))
		if totalIntensity > 0 {
			intensityFractions = append(intensityFractions, intensity/totalIntensity)
		} else {
			intensityFractions = append(intensityFractions, 0)
		}
	}

	out := Fdr{
		PeaksActual:     a.Stats.PeakCoverage,
		IntensityActual: a.Stats.IntensityCoverage,
	}
	out.PeaksAverageFalse, out.PeaksStdDevFalse = stat.PopMeanStdDev(peakFractions, nil)
	out.IntensityAverageFalse, out.IntensityStdDevFalse = stat.PopMeanStdDev(intensityFractions, nil)
	return out
}

// CompareDecoy returns the ratio of decoy to target matches. A value near
// or above 1 means the target explains the spectrum no better than the
// decoy peptide.
func CompareDecoy(target, decoy *Annotated) float64 {
	if target.Stats.Matched == 0 {
		if decoy.Stats.Matched == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return float64(decoy.Stats.Matched) / float64(target.Stats.Matched)
}
