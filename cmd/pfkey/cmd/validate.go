package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	validateCmd.Flags().StringVarP(&inputFormat, "from", "f", "", "Input format: msp, sptxt, mzml (auto-detect if not specified)")
	validateCmd.Flags().StringVar(&modMapCSV, "mod-map", "", "CSV of library modification names to ProForma (name,proforma)")
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate input file format and contents",
	Long: `Validate that a spectral library is properly formatted and that the
peptidoform of every spectrum parses with the bundled ontologies.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	mods, err := loadModMap(modMapCSV)
	if err != nil {
		return err
	}
	src, closer, err := openSource(args[0], inputFormat, mods, 2)
	if err != nil {
		return err
	}
	defer closer.Close()

	valid, invalid := 0, 0
	for src.Next() {
		spec := src.Spectrum()
		if err := spec.Validate(); err != nil {
			slog.Warn("invalid spectrum", "spectrum", spec.Name(), "err", err)
			invalid++
			continue
		}
		if _, err := spec.Ion(tables()); err != nil {
			slog.Warn("invalid peptidoform", "spectrum", spec.Name(), "err", err)
			invalid++
			continue
		}
		valid++
	}
	if err := src.Err(); err != nil {
		return fmt.Errorf("error reading input file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Valid: %d\nInvalid: %d\n", valid, invalid)
	if invalid > 0 {
		return fmt.Errorf("%d invalid spectra", invalid)
	}
	return nil
}
