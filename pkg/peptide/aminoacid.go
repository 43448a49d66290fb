// Package peptide is the peptidoform data model: amino acids, modifications,
// cross-linked peptidoform ions and chimeric compounds, with their formulas
// and ProForma rendering.
package peptide

import "github.com/ChrisMcGann/PFKey/pkg/chem"

// AminoAcid is an upper-case one-letter residue code.
type AminoAcid byte

type residue struct {
	name       string
	formula    chem.Formula
	satellites []chem.Formula
}

// backbone is the -NH-CH-CO- part shared by every residue.
var backbone = chem.MustFormula("C2H2NO")

var residues = map[AminoAcid]residue{
	'A': {name: "Alanine", formula: chem.MustFormula("C3H5NO")},
	'R': {name: "Arginine", formula: chem.MustFormula("C6H12N4O"), satellites: forms("C2H9N2")},
	'N': {name: "Asparagine", formula: chem.MustFormula("C4H6N2O2"), satellites: forms("CH2NO")},
	'D': {name: "Aspartic acid", formula: chem.MustFormula("C4H5NO3"), satellites: forms("CHO2")},
	'C': {name: "Cysteine", formula: chem.MustFormula("C3H5NOS"), satellites: forms("HS")},
	'E': {name: "Glutamic acid", formula: chem.MustFormula("C5H7NO3"), satellites: forms("C2H3O2")},
	'Q': {name: "Glutamine", formula: chem.MustFormula("C5H8N2O2"), satellites: forms("C2H4NO")},
	'G': {name: "Glycine", formula: chem.MustFormula("C2H3NO")},
	'H': {name: "Histidine", formula: chem.MustFormula("C6H7N3O")},
	'I': {name: "Isoleucine", formula: chem.MustFormula("C6H11NO"), satellites: forms("CH3", "C2H5")},
	'L': {name: "Leucine", formula: chem.MustFormula("C6H11NO"), satellites: forms("C3H7")},
	'K': {name: "Lysine", formula: chem.MustFormula("C6H12N2O"), satellites: forms("C3H8N")},
	'M': {name: "Methionine", formula: chem.MustFormula("C5H9NOS"), satellites: forms("C2H5S")},
	'F': {name: "Phenylalanine", formula: chem.MustFormula("C9H9NO")},
	'P': {name: "Proline", formula: chem.MustFormula("C5H7NO")},
	'S': {name: "Serine", formula: chem.MustFormula("C3H5NO2"), satellites: forms("HO")},
	'T': {name: "Threonine", formula: chem.MustFormula("C4H7NO2"), satellites: forms("HO", "CH3")},
	'W': {name: "Tryptophan", formula: chem.MustFormula("C11H10N2O")},
	'Y': {name: "Tyrosine", formula: chem.MustFormula("C9H9NO2")},
	'V': {name: "Valine", formula: chem.MustFormula("C5H9NO"), satellites: forms("CH3")},
	'U': {name: "Selenocysteine", formula: chem.MustFormula("C3H5NOSe"), satellites: forms("Se")},
	'O': {name: "Pyrrolysine", formula: chem.MustFormula("C12H19N3O2"), satellites: forms("C9H15N2O")},
	'J': {name: "Leucine/Isoleucine", formula: chem.MustFormula("C6H11NO"), satellites: forms("CH3", "C2H5", "C3H7")},
	// B, Z and X carry no mass of their own; attached modifications give
	// them one.
	'B': {name: "Asparagine/Aspartic acid"},
	'Z': {name: "Glutamine/Glutamic acid"},
	'X': {name: "Unknown"},
}

func forms(texts ...string) []chem.Formula {
	out := make([]chem.Formula, len(texts))
	for i, t := range texts {
		out[i] = chem.MustFormula(t)
	}
	return out
}

// ParseAminoAcid accepts a one-letter code in either case.
func ParseAminoAcid(b byte) (AminoAcid, bool) {
	if b >= 'a' && b <= 'z' {
		b -= 'a' - 'A'
	}
	if _, ok := residues[AminoAcid(b)]; !ok {
		return 0, false
	}
	return AminoAcid(b), true
}

// Formula is the residue formula (the free amino acid minus water).
func (a AminoAcid) Formula() chem.Formula { return residues[a].formula }

// Name is the full residue name.
func (a AminoAcid) Name() string { return residues[a].name }

// Placeholder reports whether the residue has no intrinsic mass.
func (a AminoAcid) Placeholder() bool { return a == 'B' || a == 'Z' || a == 'X' }

// SideChain is the residue formula minus the backbone. Glycine gives H.
func (a AminoAcid) SideChain() chem.Formula {
	if a.Placeholder() {
		return chem.Formula{}
	}
	return a.Formula().Sub(backbone)
}

// SatelliteLosses lists the side-chain parts lost to form d and w ions.
func (a AminoAcid) SatelliteLosses() []chem.Formula { return residues[a].satellites }

func (a AminoAcid) String() string { return string(rune(a)) }
