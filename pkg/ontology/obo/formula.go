package obo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/glycan"
)

// FormulaError reports an ontology composition that cannot be converted.
type FormulaError struct {
	Text    string
	Message string
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("invalid composition '%s': %s", e.Text, e.Message)
}

// unimodBricks are the non-element building blocks of Unimod compositions.
// Monosaccharides come from the glycan table.
var unimodBricks = map[string]chem.Formula{
	"ac":    chem.MustFormula("C2H2O"),
	"me":    chem.MustFormula("CH2"),
	"kdo":   chem.MustFormula("C8H12O7"),
	"sulf":  chem.MustFormula("S"),
	"phos":  chem.MustFormula("HPO3"),
	"water": chem.Water,
	"pent":  chem.MustFormula("C5H8O4"),
}

// element resolves a symbol, tolerating all-caps or lower-case spelling.
func element(symbol string) (chem.Element, bool) {
	if e, ok := chem.ElementBySymbol(symbol); ok {
		return e, true
	}
	if symbol == "" {
		return 0, false
	}
	return chem.ElementBySymbol(strings.ToUpper(symbol[:1]) + strings.ToLower(symbol[1:]))
}

func term(text, symbol string, isotope uint16, count int) (chem.Term, error) {
	e, ok := element(symbol)
	if !ok {
		return chem.Term{}, &FormulaError{Text: text, Message: fmt.Sprintf("unknown element '%s'", symbol)}
	}
	if isotope != 0 && !e.HasIsotope(isotope) {
		return chem.Term{}, &FormulaError{Text: text, Message: fmt.Sprintf("unknown isotope %d%s", isotope, symbol)}
	}
	return chem.Term{Element: e, Isotope: isotope, Count: count}, nil
}

// splitIsotope splits a leading mass number off a symbol: "13C" gives 13, "C".
func splitIsotope(s string) (uint16, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s
	}
	n, err := strconv.ParseUint(s[:i], 10, 16)
	if err != nil {
		return 0, s
	}
	return uint16(n), s[i:]
}

// UnimodFormula converts a Unimod delta_composition such as
// "H(-1) 2H(3) C(2) O" or "Hex(2) HexNAc". Bricks are separated by spaces
// and carry an optional signed count in parentheses.
func UnimodFormula(text string) (chem.Formula, error) {
	var f chem.Formula
	var terms []chem.Term
	for _, brick := range strings.Fields(text) {
		name, count := brick, 1
		if open := strings.IndexByte(brick, '('); open >= 0 {
			if !strings.HasSuffix(brick, ")") {
				return chem.Formula{}, &FormulaError{Text: text, Message: fmt.Sprintf("unclosed count in '%s'", brick)}
			}
			n, err := strconv.Atoi(brick[open+1 : len(brick)-1])
			if err != nil {
				return chem.Formula{}, &FormulaError{Text: text, Message: fmt.Sprintf("bad count in '%s'", brick)}
			}
			name, count = brick[:open], n
		}
		if b, ok := unimodBricks[strings.ToLower(name)]; ok {
			f = f.Add(b.Scale(count))
			continue
		}
		if comp, err := glycan.ParseComposition(name); err == nil && len(comp) == 1 && comp.Size() == 1 {
			f = f.Add(comp.Formula().Scale(count))
			continue
		}
		isotope, symbol := splitIsotope(name)
		t, err := term(text, symbol, isotope, count)
		if err != nil {
			return chem.Formula{}, err
		}
		terms = append(terms, t)
	}
	return f.Add(chem.NewFormula(terms...)), nil
}

// PSIMODFormula converts a PSI-MOD DiffFormula such as "C 2 H 2 N 0 O 1" or
// "(13)C 6 C -6". Every element is followed by its signed count.
func PSIMODFormula(text string) (chem.Formula, error) {
	fields := strings.Fields(text)
	if len(fields)%2 != 0 {
		return chem.Formula{}, &FormulaError{Text: text, Message: "element without a count"}
	}
	var terms []chem.Term
	for i := 0; i < len(fields); i += 2 {
		symbol := fields[i]
		var isotope uint16
		if strings.HasPrefix(symbol, "(") {
			end := strings.IndexByte(symbol, ')')
			if end < 0 {
				return chem.Formula{}, &FormulaError{Text: text, Message: "unclosed isotope"}
			}
			n, err := strconv.ParseUint(symbol[1:end], 10, 16)
			if err != nil {
				return chem.Formula{}, &FormulaError{Text: text, Message: fmt.Sprintf("bad isotope in '%s'", symbol)}
			}
			isotope, symbol = uint16(n), symbol[end+1:]
		}
		count, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return chem.Formula{}, &FormulaError{Text: text, Message: fmt.Sprintf("bad count '%s'", fields[i+1])}
		}
		if count == 0 {
			continue
		}
		t, err := term(text, symbol, isotope, count)
		if err != nil {
			return chem.Formula{}, err
		}
		terms = append(terms, t)
	}
	return chem.NewFormula(terms...), nil
}

// XLMODFormula converts an XLMOD formula such as "C8 H10 O2", "-H2" or
// "13C6 D4". A leading '-' negates the block and D is deuterium.
func XLMODFormula(text string) (chem.Formula, error) {
	var terms []chem.Term
	for _, block := range strings.Fields(text) {
		sign := 1
		if strings.HasPrefix(block, "-") {
			sign, block = -1, block[1:]
		}
		isotope, rest := splitIsotope(block)
		end := len(rest)
		for end > 0 && rest[end-1] >= '0' && rest[end-1] <= '9' {
			end--
		}
		symbol, count := rest[:end], 1
		if end < len(rest) {
			n, err := strconv.Atoi(rest[end:])
			if err != nil {
				return chem.Formula{}, &FormulaError{Text: text, Message: fmt.Sprintf("bad count in '%s'", block)}
			}
			count = n
		}
		if symbol == "D" {
			if isotope != 0 {
				return chem.Formula{}, &FormulaError{Text: text, Message: "deuterium with a mass number"}
			}
			symbol, isotope = "H", 2
		}
		t, err := term(text, symbol, isotope, sign*count)
		if err != nil {
			return chem.Formula{}, err
		}
		terms = append(terms, t)
	}
	return chem.NewFormula(terms...), nil
}
