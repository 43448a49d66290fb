// ontogen regenerates the bundled ontology tables from the OBO releases of
// Unimod, PSI-MOD, XLMOD and GNOme.
//
//	go run ./cmd/ontogen --unimod unimod.obo --psimod PSI-MOD-newstyle.obo \
//	    --xlmod XLMOD.obo --gno GNOme.obo.gz --out pkg/ontology/data
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/PFKey/pkg/ontology"
	"github.com/ChrisMcGann/PFKey/pkg/ontology/obo"
)

type options struct {
	unimod string
	psimod string
	xlmod  string
	gno    string
	out    string
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "ontogen",
		Short: "Regenerate the ontology tables from OBO releases",
		Long: `ontogen converts the OBO releases of Unimod, PSI-MOD, XLMOD and GNOme
into the YAML tables embedded by pkg/ontology. The RESID table is derived
from the RESID cross references in PSI-MOD. Files may be gzipped. Tables
whose source is not given are left untouched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().StringVar(&opts.unimod, "unimod", "", "Unimod OBO file")
	cmd.Flags().StringVar(&opts.psimod, "psimod", "", "PSI-MOD OBO file (also yields RESID)")
	cmd.Flags().StringVar(&opts.xlmod, "xlmod", "", "XLMOD OBO file")
	cmd.Flags().StringVar(&opts.gno, "gno", "", "GNOme OBO file")
	cmd.Flags().StringVarP(&opts.out, "out", "o", filepath.Join("pkg", "ontology", "data"), "Output directory")
	return cmd
}

type converter func(*obo.Document) ([]ontology.TableEntry, []error)

type job struct {
	source  string
	targets []ontology.Ontology
	convert []converter
}

func run(opts options) error {
	jobs := []job{
		{source: opts.unimod, targets: []ontology.Ontology{ontology.Unimod}, convert: []converter{obo.Unimod}},
		{source: opts.psimod, targets: []ontology.Ontology{ontology.PSIMOD, ontology.RESID}, convert: []converter{obo.PSIMOD, obo.RESID}},
		{source: opts.xlmod, targets: []ontology.Ontology{ontology.XLMOD}, convert: []converter{obo.XLMOD}},
		{source: opts.gno, targets: []ontology.Ontology{ontology.GNO}, convert: []converter{obo.GNO}},
	}

	done := 0
	for _, j := range jobs {
		if j.source == "" {
			continue
		}
		doc, err := obo.ReadFile(j.source)
		if err != nil {
			return err
		}
		for i, o := range j.targets {
			entries, skipped := j.convert[i](doc)
			for _, err := range skipped {
				slog.Debug("term skipped", "ontology", o, "err", err)
			}
			if err := writeTable(opts.out, o, j.source, entries); err != nil {
				return err
			}
			slog.Info("table written", "ontology", o, "entries", len(entries), "skipped", len(skipped))
			done++
		}
	}
	if done == 0 {
		return fmt.Errorf("no OBO source given")
	}
	return nil
}

func writeTable(dir string, o ontology.Ontology, source string, entries []ontology.TableEntry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, ontology.TableFile(o))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	comment := fmt.Sprintf("%s table generated by ontogen from %s.", o, filepath.Base(source))
	if err := ontology.WriteTable(f, comment, entries); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
