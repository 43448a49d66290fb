package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/PFKey/pkg/ambiguity"
	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/peptide"
	"github.com/ChrisMcGann/PFKey/pkg/proforma"
)

var (
	variants  int
	maxCharge int
)

func init() {
	parseCmd.Flags().IntVar(&variants, "variants", 0, "List up to N placements of ambiguous modifications")
	parseCmd.Flags().IntVar(&maxCharge, "max-charge", 3, "Highest charge listed for ions without a charge state")
}

var parseCmd = &cobra.Command{
	Use:   "parse <proforma>...",
	Short: "Parse ProForma strings and print masses",
	Long: `Parse one or more ProForma 2.0 strings and print the normalized notation,
the monoisotopic and average masses, and the m/z per charge.

Examples:
  pfkey parse "EM[Oxidation]EVEES[Phospho]PEK/2"
  pfkey parse --variants 5 "[Phospho]?EMEVTSESPEK"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func runParse(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, text := range args {
		c, err := proforma.Parse(text, tables())
		if err != nil {
			return fmt.Errorf("failed to parse '%s': %w", text, err)
		}
		fmt.Fprintf(out, "%s\n", c)
		for i := range c.Members {
			if err := printIon(out, i, &c.Members[i]); err != nil {
				return err
			}
		}
		if variants > 0 {
			if err := printVariants(out, c); err != nil {
				return err
			}
		}
	}
	return nil
}

func printIon(out io.Writer, member int, ion *peptide.PeptidoformIon) error {
	fmt.Fprintf(out, "  member %d: mono %.6f  avg %.6f\n", member, ion.Mass(chem.Monoisotopic), ion.Mass(chem.Average))
	if ion.Charge != nil {
		mz, err := ion.MZ(chem.Monoisotopic, ion.Charge.Total)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "    m/z (z=%s) %.6f\n", strings.TrimPrefix(ion.Charge.String(), "/"), mz)
		return nil
	}
	for z := 1; z <= maxCharge; z++ {
		mz, err := ion.MZ(chem.Monoisotopic, z)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "    m/z (z=%d) %.6f\n", z, mz)
	}
	return nil
}

func printVariants(out io.Writer, c *peptide.CompoundPeptidoformIon) error {
	pf, ok := c.Singular()
	if !ok {
		return fmt.Errorf("--variants needs a single linear peptidoform")
	}
	set, err := ambiguity.Resolve(*pf)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  variants: %d\n", set.Count())
	for v := range set.Limit(variants) {
		fmt.Fprintf(out, "    %s\n", v.Peptidoform.String())
	}
	return nil
}
