package chem

import (
	"fmt"
	"strconv"
	"unicode"
)

// FormulaError reports a malformed formula string.
type FormulaError struct {
	Offset  int
	Message string
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("invalid formula at offset %d: %s", e.Offset, e.Message)
}

// ParseFormula parses ProForma formula notation, for example "C2H3NO",
// "H-2 O-1" or "[13C2]C-2H4". Whitespace between terms is ignored. A
// formula whose counts cancel out entirely is rejected.
func ParseFormula(text string) (Formula, error) {
	var terms []Term
	i := 0
	for i < len(text) {
		ch := text[i]
		switch {
		case ch == ' ' || ch == '\t':
			i++
		case ch == '[':
			start := i
			i++
			massNumber, n := readDigits(text, i)
			if n == 0 {
				return Formula{}, &FormulaError{Offset: i, Message: "expected isotope mass number"}
			}
			i += n
			elem, n := readElement(text, i)
			if n == 0 {
				return Formula{}, &FormulaError{Offset: i, Message: "expected element symbol"}
			}
			i += n
			count, n, err := readCount(text, i)
			if err != nil {
				return Formula{}, &FormulaError{Offset: i, Message: err.Error()}
			}
			i += n
			if i >= len(text) || text[i] != ']' {
				return Formula{}, &FormulaError{Offset: i, Message: "expected ']'"}
			}
			i++
			if massNumber > 0xffff || !elem.HasIsotope(uint16(massNumber)) {
				return Formula{}, &FormulaError{Offset: start, Message: fmt.Sprintf("unknown isotope %d%s", massNumber, elem.Symbol())}
			}
			terms = append(terms, Term{Element: elem, Isotope: uint16(massNumber), Count: count})
		case ch >= 'A' && ch <= 'Z' || ch == 'e':
			elem, n := readElement(text, i)
			if n == 0 {
				return Formula{}, &FormulaError{Offset: i, Message: fmt.Sprintf("unknown element starting with '%c'", ch)}
			}
			i += n
			count, n, err := readCount(text, i)
			if err != nil {
				return Formula{}, &FormulaError{Offset: i, Message: err.Error()}
			}
			i += n
			terms = append(terms, Term{Element: elem, Count: count})
		default:
			return Formula{}, &FormulaError{Offset: i, Message: fmt.Sprintf("unexpected character %q", rune(ch))}
		}
	}
	if len(terms) == 0 {
		return Formula{}, &FormulaError{Offset: 0, Message: "empty formula"}
	}
	f := NewFormula(terms...)
	// "N0" or "H1H-1" have no notation of their own once pruned.
	if f.IsZero() {
		return Formula{}, &FormulaError{Offset: 0, Message: "formula has no net composition"}
	}
	return f, nil
}

// MustFormula is ParseFormula for constant input. It panics on error.
func MustFormula(text string) Formula {
	f, err := ParseFormula(text)
	if err != nil {
		panic(err)
	}
	return f
}

// readElement matches the longest known symbol at text[i:].
func readElement(text string, i int) (Element, int) {
	if i >= len(text) {
		return 0, 0
	}
	if i+1 < len(text) && unicode.IsLower(rune(text[i+1])) && text[i] != 'e' {
		if e, ok := ElementBySymbol(text[i : i+2]); ok {
			return e, 2
		}
	}
	if e, ok := ElementBySymbol(text[i : i+1]); ok {
		return e, 1
	}
	return 0, 0
}

func readDigits(text string, i int) (int, int) {
	j := i
	for j < len(text) && text[j] >= '0' && text[j] <= '9' {
		j++
	}
	if j == i || j-i > 6 {
		return 0, 0
	}
	v, _ := strconv.Atoi(text[i:j])
	return v, j - i
}

// readCount reads an optional signed count. A missing count means 1.
func readCount(text string, i int) (int, int, error) {
	j := i
	neg := false
	if j < len(text) && text[j] == '-' {
		neg = true
		j++
	}
	v, n := readDigits(text, j)
	if n == 0 {
		if neg {
			return 0, 0, fmt.Errorf("expected count after '-'")
		}
		return 1, 0, nil
	}
	j += n
	if neg {
		v = -v
	}
	return v, j - i, nil
}
