// Package chem provides the element table and exact chemical formulas used for
// peptide, fragment and modification masses.
package chem

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Element is an atomic number. The electron is modelled as element 0.
type Element uint8

// Elements referenced directly by the peptide and fragment code.
const (
	Electron Element = 0
	H        Element = 1
	Li       Element = 3
	C        Element = 6
	N        Element = 7
	O        Element = 8
	F        Element = 9
	Na       Element = 11
	Mg       Element = 12
	P        Element = 15
	S        Element = 16
	Cl       Element = 17
	K        Element = 19
	Ca       Element = 20
	Fe       Element = 26
	Cu       Element = 29
	Zn       Element = 30
	Se       Element = 34
	Br       Element = 35
	I        Element = 53
)

// Isotope is one row of the element table.
type Isotope struct {
	MassNumber uint16 // 0 for the natural mixture
	Mass       float64
	Abundance  float64
}

// ElementInfo holds everything known about one element.
type ElementInfo struct {
	Symbol       string
	Number       Element
	Average      float64
	Monoisotopic float64
	Isotopes     []Isotope
}

//go:embed elements.csv
var elementsCSV string

var (
	tableOnce sync.Once
	table     map[Element]*ElementInfo
	bySymbol  map[string]Element
)

func loadTable() {
	tableOnce.Do(func() {
		t, err := LoadElements(strings.NewReader(elementsCSV))
		if err != nil {
			panic(fmt.Sprintf("chem: bundled element table: %v", err))
		}
		table = t
		bySymbol = make(map[string]Element, len(t))
		for number, info := range t {
			bySymbol[info.Symbol] = number
		}
	})
}

// LoadElements reads an element table in CSV form
// (symbol,number,isotope,mass,abundance). Isotope 0 gives the average mass.
func LoadElements(r io.Reader) (map[Element]*ElementInfo, error) {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	elements := make(map[Element]*ElementInfo)
	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) != 5 {
			return nil, fmt.Errorf("line %d: invalid format, expected 5 comma-separated fields", lineNum)
		}

		number, err := strconv.ParseUint(parts[1], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid atomic number '%s': %w", lineNum, parts[1], err)
		}
		massNumber, err := strconv.ParseUint(parts[2], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid isotope '%s': %w", lineNum, parts[2], err)
		}
		mass, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, parts[3], err)
		}
		abundance, err := strconv.ParseFloat(parts[4], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid abundance '%s': %w", lineNum, parts[4], err)
		}

		info, ok := elements[Element(number)]
		if !ok {
			info = &ElementInfo{Symbol: parts[0], Number: Element(number)}
			elements[Element(number)] = info
		}
		if massNumber == 0 {
			info.Average = mass
			if info.Number == Electron {
				info.Monoisotopic = mass
			}
			continue
		}
		info.Isotopes = append(info.Isotopes, Isotope{MassNumber: uint16(massNumber), Mass: mass, Abundance: abundance})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading element table: %w", err)
	}

	// Monoisotopic mass is the mass of the most abundant isotope
	for _, info := range elements {
		best := -1.0
		for _, iso := range info.Isotopes {
			if iso.Abundance > best {
				best = iso.Abundance
				info.Monoisotopic = iso.Mass
			}
		}
		if info.Average == 0 {
			return nil, fmt.Errorf("element %s has no average mass", info.Symbol)
		}
	}

	return elements, nil
}

// Info returns the table entry for an element.
func (e Element) Info() (*ElementInfo, bool) {
	loadTable()
	info, ok := table[e]
	return info, ok
}

// Symbol returns the element symbol, "e" for the electron.
func (e Element) Symbol() string {
	if info, ok := e.Info(); ok {
		return info.Symbol
	}
	return fmt.Sprintf("E%d", uint8(e))
}

func (e Element) String() string { return e.Symbol() }

// ElementBySymbol looks up an element by its case-sensitive symbol.
func ElementBySymbol(symbol string) (Element, bool) {
	loadTable()
	e, ok := bySymbol[symbol]
	return e, ok
}

// HasIsotope reports whether the table knows the given isotope. Mass number 0
// (natural mixture) is always known for a known element.
func (e Element) HasIsotope(massNumber uint16) bool {
	_, ok := e.isotopeMass(massNumber)
	return ok
}

func (e Element) isotopeMass(massNumber uint16) (float64, bool) {
	info, ok := e.Info()
	if !ok {
		return 0, false
	}
	if massNumber == 0 {
		return info.Monoisotopic, true
	}
	for _, iso := range info.Isotopes {
		if iso.MassNumber == massNumber {
			return iso.Mass, true
		}
	}
	return 0, false
}

// UnknownIsotopeError signals a formula term that is missing from the element
// table. It is raised with panic because formulas are only built from checked
// input and bundled tables.
type UnknownIsotopeError struct {
	Element Element
	Isotope uint16
}

func (e *UnknownIsotopeError) Error() string {
	return fmt.Sprintf("unknown isotope %d of element %d", e.Isotope, uint8(e.Element))
}
