package fragment

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/peptide"
)

// ChargeRange is an inclusive range of fragment charges. Negative ranges
// select negative mode; the range may not include zero.
type ChargeRange struct {
	Min int
	Max int
}

// InvalidChargeError reports an empty charge range or one that includes 0.
type InvalidChargeError = peptide.InvalidChargeError

// Validate rejects empty ranges and ranges containing zero.
func (r ChargeRange) Validate() error {
	if r.Min > r.Max || (r.Min <= 0 && r.Max >= 0) {
		return &InvalidChargeError{Min: r.Min, Max: r.Max}
	}
	return nil
}

// Charges lists the charges in the range.
func (r ChargeRange) Charges() []int {
	var out []int
	for z := r.Min; z <= r.Max; z++ {
		if z != 0 {
			out = append(out, z)
		}
	}
	return out
}

// Model selects which fragments Generate produces.
type Model struct {
	Series []Series
	Charge ChargeRange
	// Glycan enables B, Y and internal glycan fragments.
	Glycan bool
	// NeutralLosses applies the losses registered for each modification.
	NeutralLosses bool
	// Diagnostic emits the diagnostic ions of each modification.
	Diagnostic bool
	// Losses are applied to every backbone and precursor fragment.
	Losses   []chem.Formula
	MassMode chem.MassMode
}

// Has reports whether a series is enabled.
func (m Model) Has(s Series) bool {
	for _, x := range m.Series {
		if x == s {
			return true
		}
	}
	return false
}

var (
	water   = chem.Water
	ammonia = chem.Ammonia
)

// All enables every series and option.
func All() Model {
	return Model{
		Series:        []Series{A, B, C, X, Y, Z, D, V, W, Immonium, Precursor},
		Charge:        ChargeRange{Min: 1, Max: 3},
		Glycan:        true,
		NeutralLosses: true,
		Diagnostic:    true,
		Losses:        []chem.Formula{water, ammonia},
	}
}

// CIDHCD is the collisional dissociation model.
func CIDHCD() Model {
	return Model{
		Series:        []Series{A, B, Y, Immonium, Precursor},
		Charge:        ChargeRange{Min: 1, Max: 2},
		Glycan:        true,
		NeutralLosses: true,
		Diagnostic:    true,
		Losses:        []chem.Formula{water, ammonia},
	}
}

// ETD is the electron transfer dissociation model.
func ETD() Model {
	return Model{
		Series: []Series{C, Y, Z, W, Precursor},
		Charge: ChargeRange{Min: 1, Max: 3},
	}
}

// EThcD combines electron transfer with supplemental activation.
func EThcD() Model {
	return Model{
		Series:        []Series{B, C, Y, Z, W, Precursor},
		Charge:        ChargeRange{Min: 1, Max: 3},
		Glycan:        true,
		NeutralLosses: true,
		Diagnostic:    true,
		Losses:        []chem.Formula{water},
	}
}

// None produces no fragments.
func None() Model {
	return Model{Charge: ChargeRange{Min: 1, Max: 1}}
}

var presets = map[string]func() Model{
	"all":     All,
	"cid_hcd": CIDHCD,
	"etd":     ETD,
	"ethcd":   EThcD,
	"none":    None,
}

// Preset returns a built-in model by name.
func Preset(name string) (Model, error) {
	f, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Model{}, fmt.Errorf("unknown fragmentation model '%s'", name)
	}
	return f(), nil
}

// modelFile is the YAML form of a model. Unset fields keep the values of
// the base preset.
type modelFile struct {
	Preset string   `yaml:"preset"`
	Series []string `yaml:"series"`
	Charge *struct {
		Min int `yaml:"min"`
		Max int `yaml:"max"`
	} `yaml:"charge"`
	Glycan        *bool    `yaml:"glycan"`
	NeutralLosses *bool    `yaml:"neutral_losses"`
	Diagnostic    *bool    `yaml:"diagnostic"`
	Losses        []string `yaml:"losses"`
	MassMode      string   `yaml:"mass_mode"`
}

// ParseModel reads a YAML model description.
func ParseModel(data []byte) (Model, error) {
	var file modelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Model{}, fmt.Errorf("failed to parse model: %w", err)
	}
	model := None()
	if file.Preset != "" {
		var err error
		if model, err = Preset(file.Preset); err != nil {
			return Model{}, err
		}
	}
	if file.Series != nil {
		model.Series = nil
		for _, name := range file.Series {
			s, err := ParseSeries(name)
			if err != nil {
				return Model{}, err
			}
			model.Series = append(model.Series, s)
		}
	}
	if file.Charge != nil {
		model.Charge = ChargeRange{Min: file.Charge.Min, Max: file.Charge.Max}
	}
	if err := model.Charge.Validate(); err != nil {
		return Model{}, err
	}
	if file.Glycan != nil {
		model.Glycan = *file.Glycan
	}
	if file.NeutralLosses != nil {
		model.NeutralLosses = *file.NeutralLosses
	}
	if file.Diagnostic != nil {
		model.Diagnostic = *file.Diagnostic
	}
	if file.Losses != nil {
		model.Losses = nil
		for _, text := range file.Losses {
			f, err := chem.ParseFormula(text)
			if err != nil {
				return Model{}, fmt.Errorf("loss '%s': %w", text, err)
			}
			model.Losses = append(model.Losses, f)
		}
	}
	if file.MassMode != "" {
		mode, err := chem.ParseMassMode(file.MassMode)
		if err != nil {
			return Model{}, err
		}
		model.MassMode = mode
	}
	return model, nil
}

// LoadModel reads a YAML model file.
func LoadModel(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Model{}, fmt.Errorf("failed to read model: %w", err)
	}
	return ParseModel(data)
}
