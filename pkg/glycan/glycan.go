// Package glycan handles monosaccharide compositions such as "HexNAc2Hex5"
// and the simple B/Y/internal fragments derived from them.
package glycan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
)

// Monosaccharide is one residue type with its in-chain formula.
type Monosaccharide struct {
	Name    string
	Formula chem.Formula
}

// Monosaccharides lists every residue the composition parser understands.
var Monosaccharides = []Monosaccharide{
	{Name: "Hex", Formula: chem.MustFormula("C6H10O5")},
	{Name: "HexNAc", Formula: chem.MustFormula("C8H13NO5")},
	{Name: "HexN", Formula: chem.MustFormula("C6H11NO4")},
	{Name: "HexA", Formula: chem.MustFormula("C6H8O6")},
	{Name: "HexS", Formula: chem.MustFormula("C6H10O8S")},
	{Name: "HexP", Formula: chem.MustFormula("C6H11O8P")},
	{Name: "dHex", Formula: chem.MustFormula("C6H10O4")},
	{Name: "Fuc", Formula: chem.MustFormula("C6H10O4")},
	{Name: "NeuAc", Formula: chem.MustFormula("C11H17NO8")},
	{Name: "NeuGc", Formula: chem.MustFormula("C11H17NO9")},
	{Name: "Neu", Formula: chem.MustFormula("C9H15NO7")},
	{Name: "Pen", Formula: chem.MustFormula("C5H8O4")},
	{Name: "Kdn", Formula: chem.MustFormula("C9H14O8")},
}

// byLength holds indices into Monosaccharides, longest name first, so that
// "HexNAc" is matched before "Hex".
var byLength = func() []int {
	idx := make([]int, len(Monosaccharides))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return len(Monosaccharides[idx[a]].Name) > len(Monosaccharides[idx[b]].Name)
	})
	return idx
}()

// MaxResidues bounds the total size of a parsed composition.
const MaxResidues = 100

// Count is a number of one monosaccharide.
type Count struct {
	Mono  int // index into Monosaccharides
	Count int
}

// Composition is a glycan given as monosaccharide counts. The order is the
// order of first appearance in the source text.
type Composition []Count

// CompositionError reports an unparsable glycan composition.
type CompositionError struct {
	Offset int
	Text   string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("invalid glycan composition at offset %d: '%s'", e.Offset, e.Text)
}

// ParseComposition parses "HexNAc2Hex5", "HexNAc(2)Hex(5)" or "Hex". Names are
// case-insensitive and whitespace is ignored. Compositions over MaxResidues
// units are rejected.
func ParseComposition(text string) (Composition, error) {
	var comp Composition
	i := 0
	for i < len(text) {
		if unicode.IsSpace(rune(text[i])) {
			i++
			continue
		}
		mono := -1
		for _, idx := range byLength {
			name := Monosaccharides[idx].Name
			if len(text)-i >= len(name) && strings.EqualFold(text[i:i+len(name)], name) {
				mono = idx
				i += len(name)
				break
			}
		}
		if mono < 0 {
			return nil, &CompositionError{Offset: i, Text: text}
		}

		count := 1
		paren := i < len(text) && text[i] == '('
		j := i
		if paren {
			j++
		}
		k := j
		for k < len(text) && text[k] >= '0' && text[k] <= '9' {
			k++
		}
		if k > j {
			n, err := strconv.Atoi(text[j:k])
			if err != nil || n > MaxResidues {
				return nil, &CompositionError{Offset: j, Text: text}
			}
			count = n
		} else if paren {
			return nil, &CompositionError{Offset: j, Text: text}
		}
		if paren {
			if k >= len(text) || text[k] != ')' {
				return nil, &CompositionError{Offset: k, Text: text}
			}
			k++
		}
		i = k
		comp = comp.add(mono, count)
	}
	if len(comp) == 0 || comp.Size() > MaxResidues {
		return nil, &CompositionError{Offset: 0, Text: text}
	}
	return comp, nil
}

func (c Composition) add(mono, count int) Composition {
	for i := range c {
		if c[i].Mono == mono {
			c[i].Count += count
			return c
		}
	}
	return append(c, Count{Mono: mono, Count: count})
}

// Formula returns the summed residue formula.
func (c Composition) Formula() chem.Formula {
	var f chem.Formula
	for _, part := range c {
		f = f.Add(Monosaccharides[part.Mono].Formula.Scale(part.Count))
	}
	return f
}

// Size returns the total number of monosaccharides.
func (c Composition) Size() int {
	n := 0
	for _, part := range c {
		n += part.Count
	}
	return n
}

// String renders the composition in ProForma form, e.g. "HexNAc2Hex5".
func (c Composition) String() string {
	var sb strings.Builder
	for _, part := range c {
		if part.Count == 0 {
			continue
		}
		sb.WriteString(Monosaccharides[part.Mono].Name)
		if part.Count != 1 {
			sb.WriteString(strconv.Itoa(part.Count))
		}
	}
	return sb.String()
}

// Equal compares two compositions ignoring order.
func (c Composition) Equal(o Composition) bool {
	counts := make(map[int]int)
	for _, part := range c {
		counts[part.Mono] += part.Count
	}
	for _, part := range o {
		counts[part.Mono] -= part.Count
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}
