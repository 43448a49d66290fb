// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/PFKey/pkg/ontology"
)

var (
	// Global flags
	logLevel string

	// Shared by fragment and annotate
	modelName string
	modelFile string
	massMode  string
)

var rootCmd = &cobra.Command{
	Use:   "pfkey",
	Short: "PFKey - ProForma peptidoform toolkit",
	Long: `PFKey parses ProForma 2.0 peptidoforms, generates theoretical fragments
and annotates MS/MS spectra from spectral libraries and mzML runs.

Supported inputs:
- ProForma strings, including cross-links, glycans and chimeric spectra
- MSP and SPTXT spectral libraries
- mzML runs, with the peptidoform given on the command line

Annotated spectra are written to SQLite databases.`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLevel(logLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(fragmentCmd)
	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(validateCmd)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level '%s'", s)
	}
	return level, nil
}

// tables returns the bundled ontologies. The tables are loaded lazily on
// first use.
func tables() *ontology.Tables {
	return ontology.Default()
}

// checkFile reports a missing input file before any reader is built.
func checkFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", path)
	}
	return nil
}
