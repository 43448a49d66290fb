package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/fragment"
	"github.com/ChrisMcGann/PFKey/pkg/proforma"
)

func init() {
	fragmentCmd.Flags().StringVar(&modelName, "model", "all", "Fragmentation model: all, cid_hcd, etd, ethcd, none")
	fragmentCmd.Flags().StringVar(&modelFile, "model-file", "", "YAML model file (overrides --model)")
	fragmentCmd.Flags().StringVar(&massMode, "mass-mode", "", "Mass mode: mono or avg (default from model)")
}

var fragmentCmd = &cobra.Command{
	Use:   "fragment <proforma>",
	Short: "Print the theoretical fragments of a peptidoform",
	Long: `Generate the theoretical fragments of a ProForma peptidoform ion and print
them sorted by m/z.

Examples:
  pfkey fragment "PEPTIDE/2" --model cid_hcd
  pfkey fragment "EMEVEES[Phospho]PEK/3" --model-file etd.yaml --mass-mode avg`,
	Args: cobra.ExactArgs(1),
	RunE: runFragment,
}

// loadModel resolves the model flags shared by fragment and annotate.
// --model-file wins over the preset name.
func loadModel(name string) (fragment.Model, error) {
	var model fragment.Model
	var err error
	if modelFile != "" {
		model, err = fragment.LoadModel(modelFile)
	} else {
		model, err = fragment.Preset(name)
	}
	if err != nil {
		return fragment.Model{}, err
	}
	if massMode != "" {
		if model.MassMode, err = chem.ParseMassMode(massMode); err != nil {
			return fragment.Model{}, err
		}
	}
	return model, nil
}

func runFragment(cmd *cobra.Command, args []string) error {
	model, err := loadModel(modelName)
	if err != nil {
		return err
	}
	c, err := proforma.Parse(args[0], tables())
	if err != nil {
		return fmt.Errorf("failed to parse '%s': %w", args[0], err)
	}
	frags, err := fragment.GenerateCompound(c, model)
	if err != nil {
		return err
	}
	sort.SliceStable(frags, func(i, j int) bool { return frags[i].MZ < frags[j].MZ })

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ion\tseries\tcharge\tm/z\tformula\tmember\tpeptidoform")
	for _, f := range frags {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.6f\t%s\t%d\t%d\n", f.Label(), f.Series, f.Charge, f.MZ,
			strings.TrimSpace(f.Formula.String()), f.Member, f.Peptidoform)
	}
	return tw.Flush()
}
