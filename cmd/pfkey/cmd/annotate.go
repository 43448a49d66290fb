package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/PFKey/pkg/annotate"
	"github.com/ChrisMcGann/PFKey/pkg/filter"
	"github.com/ChrisMcGann/PFKey/pkg/fragment"
	"github.com/ChrisMcGann/PFKey/pkg/spectrum"
	"github.com/ChrisMcGann/PFKey/pkg/writer/sqlite"
)

var (
	// Flags for annotate command
	inputFile       string
	inputFormat     string
	outputFile      string
	peptideText     string
	toleranceText   string
	workers         int
	chunkSize       int
	msLevel         int
	fragmentation   string
	collisionEnergy float64
	massAnalyzer    string
	topN            int
	cutoffPercent   float64
	ionTypes        string
	minMZ           float64
	maxMZ           float64
	modMapCSV       string
	allFragments    bool
)

func init() {
	annotateCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input file path: .msp, .sptxt or .mzML (required)")
	annotateCmd.Flags().StringVarP(&inputFormat, "from", "f", "", "Input format: msp, sptxt, mzml (auto-detect if not specified)")
	annotateCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output database file (required)")
	annotateCmd.Flags().StringVar(&peptideText, "peptide", "", "ProForma peptidoform for every spectrum (required for mzML)")
	annotateCmd.Flags().StringVar(&toleranceText, "tolerance", "20ppm", "Fragment tolerance, e.g. 20ppm or 0.02da")
	annotateCmd.Flags().IntVar(&workers, "workers", 0, "Number of worker goroutines (0 = one per spectrum in a chunk)")
	annotateCmd.Flags().IntVar(&chunkSize, "chunk-size", 1000, "Spectra annotated per batch")
	annotateCmd.Flags().IntVar(&msLevel, "ms-level", 2, "Lowest MS level read from mzML")
	annotateCmd.Flags().StringVar(&modelName, "model", "auto", "Fragmentation model: auto, all, cid_hcd, etd, ethcd, none")
	annotateCmd.Flags().StringVar(&modelFile, "model-file", "", "YAML model file (overrides --model)")
	annotateCmd.Flags().StringVar(&massMode, "mass-mode", "", "Mass mode: mono or avg (default from model)")
	annotateCmd.Flags().StringVar(&fragmentation, "fragmentation", "read", "Fragmentation mode: HCD, CID, ETD, EThcD, or 'read' to read from file")
	annotateCmd.Flags().Float64Var(&collisionEnergy, "collision-energy", 0, "Collision energy (0 = read from file)")
	annotateCmd.Flags().StringVar(&massAnalyzer, "mass-analyzer", "", "Mass analyzer: FT or IT (empty = read from file)")
	annotateCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only top N most intense peaks (0 = no limit)")
	annotateCmd.Flags().Float64Var(&cutoffPercent, "cutoff", 0, "Intensity cutoff as % of base peak (0 = no cutoff)")
	annotateCmd.Flags().StringVar(&ionTypes, "ion-types", "", "Comma-separated library ion types to keep (e.g., 'b,y')")
	annotateCmd.Flags().Float64Var(&minMZ, "min-mz", 0, "Drop peaks below this m/z (0 = no limit)")
	annotateCmd.Flags().Float64Var(&maxMZ, "max-mz", 0, "Drop peaks above this m/z (0 = no limit)")
	annotateCmd.Flags().StringVar(&modMapCSV, "mod-map", "", "CSV of library modification names to ProForma (name,proforma)")
	annotateCmd.Flags().BoolVar(&allFragments, "all-fragments", false, "Store every theoretical fragment, not only matched ones")

	annotateCmd.MarkFlagRequired("in")
	annotateCmd.MarkFlagRequired("out")
}

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Annotate spectra and write them to a SQLite database",
	Long: `Annotate the spectra of an MSP or SPTXT library, or of an mzML run, against
the theoretical fragments of their peptidoforms.

Examples:
  # Annotate a library with the model chosen from each spectrum's activation
  pfkey annotate -i library.msp -o library.db --tolerance 20ppm --workers 4

  # Annotate an mzML run against one peptidoform
  pfkey annotate -i run.mzML --peptide "EM[Oxidation]EVEES[Phospho]PEK" -o run.db

  # Keep the 150 most intense b and y peaks of each library spectrum
  pfkey annotate -i library.sptxt -o library.db --top-n 150 --ion-types b,y`,
	RunE: runAnnotate,
}

// autoModels maps activation names to preset models for --model auto.
var autoModels = map[string]func() fragment.Model{
	"hcd":   fragment.CIDHCD,
	"cid":   fragment.CIDHCD,
	"etd":   fragment.ETD,
	"ethcd": fragment.EThcD,
}

// modelFor returns the per-spectrum model for --model auto, or nil to use
// the shared one. The shared model's mass mode carries over.
func modelFor(spec *spectrum.Spectrum, shared fragment.Model) *fragment.Model {
	f, ok := autoModels[strings.ToLower(spec.FragmentationMode)]
	if !ok {
		return nil
	}
	m := f()
	m.MassMode = shared.MassMode
	return &m
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	tol, err := annotate.ParseTolerance(toleranceText)
	if err != nil {
		return err
	}
	if chunkSize < 1 {
		return fmt.Errorf("--chunk-size must be at least 1")
	}
	name := modelName
	auto := name == "auto" && modelFile == ""
	if auto {
		name = "cid_hcd"
	}
	model, err := loadModel(name)
	if err != nil {
		return err
	}

	filterConfig := &filter.Config{
		TopN:            topN,
		IntensityCutoff: cutoffPercent,
		MinMZ:           minMZ,
		MaxMZ:           maxMZ,
	}
	if ionTypes != "" {
		if filterConfig.IonTypes, err = filter.ParseIonTypes(ionTypes); err != nil {
			return err
		}
	}

	mods, err := loadModMap(modMapCSV)
	if err != nil {
		return err
	}
	src, closer, err := openSource(inputFile, inputFormat, mods, msLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	writer, err := sqlite.NewWriter(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	writer.Fragments = allFragments
	writer.Description = fmt.Sprintf("annotated from %s", filepath.Base(inputFile))

	slog.Info("annotating", "in", inputFile, "out", outputFile, "tolerance", tol.String(), "workers", workers)

	count, skipped, failed := 0, 0, 0
	var chunk []*spectrum.Spectrum
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		jobs := make([]annotate.Job, len(chunk))
		for i, spec := range chunk {
			jobs[i] = annotate.Job{Spectrum: spec}
			if auto {
				jobs[i].Model = modelFor(spec, model)
			}
		}
		results, err := annotate.AnnotateAll(cmd.Context(), jobs, model, tol, tables(), workers)
		if err != nil {
			return err
		}
		for i, res := range results {
			if res.Err != nil {
				slog.Warn("annotation failed", "spectrum", chunk[i].Name(), "err", res.Err)
				failed++
			}
			if err := writer.WriteSpectrum(chunk[i], res); err != nil {
				return fmt.Errorf("failed to write spectrum %s: %w", chunk[i].Name(), err)
			}
			count++
		}
		if count%chunkSize == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d spectra...\n", count)
		}
		slog.Debug("wrote chunk", "spectra", len(chunk), "total", count)
		chunk = chunk[:0]
		return nil
	}

	for src.Next() {
		spec := src.Spectrum()
		if !prepare(spec) {
			skipped++
			continue
		}
		filter.RemoveZeroIntensityPeaks(spec)
		filterConfig.Apply(spec)

		if err := spec.Validate(); err != nil {
			slog.Warn("invalid spectrum", "spectrum", spec.Name(), "err", err)
			skipped++
			continue
		}
		chunk = append(chunk, spec)
		if len(chunk) >= chunkSize {
			if err := flush(); err != nil {
				writer.Abort()
				return err
			}
		}
	}
	if err := src.Err(); err != nil {
		writer.Abort()
		return fmt.Errorf("error reading input file: %w", err)
	}
	if err := flush(); err != nil {
		writer.Abort()
		return err
	}

	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Annotation complete!\n")
	fmt.Fprintf(out, "Written: %d spectra\n", count)
	if skipped > 0 {
		fmt.Fprintf(out, "Skipped: %d spectra (validation errors)\n", skipped)
	}
	if failed > 0 {
		fmt.Fprintf(out, "Unannotated: %d spectra (peptidoform errors)\n", failed)
	}
	fmt.Fprintf(out, "Output: %s\n", outputFile)
	return nil
}

// prepare applies the command-line metadata overrides. It reports false for
// spectra that have no peptidoform to annotate.
func prepare(spec *spectrum.Spectrum) bool {
	spec.SourceFile = filepath.Base(inputFile)
	if peptideText != "" {
		spec.Peptide = peptideText
	}
	if spec.Peptide == "" {
		slog.Debug("skipping spectrum without peptidoform", "spectrum", spec.Name())
		return false
	}
	if fragmentation != "" && fragmentation != "read" {
		spec.FragmentationMode = fragmentation
	} else if spec.FragmentationMode == "" {
		spec.FragmentationMode = "HCD"
	}
	if massAnalyzer != "" {
		spec.MassAnalyzer = massAnalyzer
	}
	if collisionEnergy > 0 {
		ce := collisionEnergy
		spec.CollisionEnergy = &ce
	}
	return true
}
