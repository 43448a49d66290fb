// Package modmap translates the modification names and positions used by
// spectral library formats into ProForma notation.
package modmap

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PFKey/pkg/ontology"
)

// Map resolves library modification names to ProForma modification text.
type Map struct {
	aliases map[string]string // lowercase library name -> ProForma text
	tables  *ontology.Tables
}

// New creates a map without aliases. Names are still looked up in tables.
func New(tables *ontology.Tables) *Map {
	if tables == nil {
		tables = ontology.Default()
	}
	return &Map{aliases: make(map[string]string), tables: tables}
}

// Default returns a map with the aliases found in Prosit and SpectraST
// libraries.
func Default() *Map {
	m := New(nil)
	m.Add("TMT_Pro", "TMTpro")
	m.Add("TMTPro", "TMTpro")
	m.Add("TMT16plex", "TMTpro")
	m.Add("TMT", "TMT6plex")
	m.Add("TMT10plex", "TMT6plex")
	m.Add("TMT11plex", "TMT6plex")
	m.Add("CAM", "Carbamidomethyl")
	m.Add("Ox", "Oxidation")
	m.Add("Phos", "Phospho")
	m.Add("Deamidation", "Deamidated")
	m.Add("Pyro_glu", "Gln->pyro-Glu")
	m.Add("Pyro-glu", "Gln->pyro-Glu")
	m.Add("Acetyl_Nterm", "Acetyl")
	m.Add("iTRAQ", "iTRAQ4plex")
	return m
}

// Add adds or replaces an alias.
func (m *Map) Add(name, proforma string) {
	m.aliases[strings.ToLower(strings.TrimSpace(name))] = proforma
}

// LoadFromCSV loads aliases from a CSV file (format: name,proforma)
func (m *Map) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}
		name := strings.TrimSpace(parts[0])
		target := strings.TrimSpace(parts[1])
		if isMass(target) {
			target = FormatMass(mustFloat(target))
		} else if _, err := m.tables.Resolve(target); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		m.Add(name, target)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}
	return nil
}

// Resolve returns the ProForma text for a library modification name. A
// numeric name becomes a signed mass delta.
func (m *Map) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if text, ok := m.aliases[strings.ToLower(name)]; ok {
		return text, nil
	}
	if isMass(name) {
		return FormatMass(mustFloat(name)), nil
	}
	def, err := m.tables.Resolve(name)
	if err != nil {
		return "", err
	}
	return def.Name, nil
}

func isMass(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func mustFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// FormatMass renders a mass delta with an explicit sign, e.g. "+57.021464".
func FormatMass(mass float64) string {
	s := strconv.FormatFloat(mass, 'f', -1, 64)
	if mass >= 0 {
		return "+" + s
	}
	return s
}

// Position constants for terminal placements.
const (
	NTerm = -1
	CTerm = -2
)

// Placement is a modification at a 0-based residue index or a terminus.
type Placement struct {
	Position int
	Text     string // ProForma modification text
}

// ParseModString parses "Carbamidomethyl@C2;Oxidation@M8" or
// "57.021464@2" style strings. Positions are 1-based; "0", "N-term" and a
// "-1" suffix mean the N-terminus, "C-term" the C-terminus.
func (m *Map) ParseModString(modStr string) ([]Placement, error) {
	if modStr == "" {
		return nil, nil
	}

	var out []Placement
	for _, part := range strings.Split(modStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, posStr, ok := strings.Cut(part, "@")
		if !ok {
			return nil, fmt.Errorf("invalid modification format '%s', expected 'name@position' or 'mass@position'", part)
		}
		text, err := m.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("modification '%s': %w", name, err)
		}
		pos, err := parsePosition(posStr)
		if err != nil {
			return nil, fmt.Errorf("invalid position '%s': %w", posStr, err)
		}
		out = append(out, Placement{Position: pos, Text: text})
	}
	return out, nil
}

// parsePosition parses "2", "C2", "R-1", "N-term" or "C-term".
func parsePosition(posStr string) (int, error) {
	posStr = strings.TrimSpace(posStr)
	switch strings.ToLower(posStr) {
	case "n-term", "nterm":
		return NTerm, nil
	case "c-term", "cterm":
		return CTerm, nil
	}
	if strings.HasSuffix(posStr, "-1") {
		return NTerm, nil
	}

	posStr = strings.TrimLeft(posStr, "ACDEFGHIKLMNOPQRSTUVWXY")
	pos, err := strconv.Atoi(posStr)
	if err != nil {
		return 0, fmt.Errorf("invalid position number: %w", err)
	}
	if pos <= 0 {
		return NTerm, nil
	}
	return pos - 1, nil
}

// Build renders a bare sequence and its placements as ProForma. Several
// modifications on one residue are written as consecutive blocks.
func Build(sequence string, mods []Placement) (string, error) {
	byPos := make(map[int][]string)
	for _, p := range mods {
		if p.Position >= len(sequence) || p.Position < CTerm {
			return "", fmt.Errorf("modification %s at position %d outside sequence of length %d", p.Text, p.Position+1, len(sequence))
		}
		byPos[p.Position] = append(byPos[p.Position], p.Text)
	}
	for _, texts := range byPos {
		sort.Strings(texts)
	}

	var sb strings.Builder
	for _, t := range byPos[NTerm] {
		sb.WriteString("[" + t + "]")
	}
	if len(byPos[NTerm]) > 0 {
		sb.WriteString("-")
	}
	for i := 0; i < len(sequence); i++ {
		sb.WriteByte(sequence[i])
		for _, t := range byPos[i] {
			sb.WriteString("[" + t + "]")
		}
	}
	if len(byPos[CTerm]) > 0 {
		sb.WriteString("-")
	}
	for _, t := range byPos[CTerm] {
		sb.WriteString("[" + t + "]")
	}
	return sb.String(), nil
}

// ByMass names a mass delta measured at nominal precision: the closest
// definition within tolerance whose rules admit the site, or the signed
// delta itself when none does.
func (m *Map) ByMass(delta, tolerance float64, site ontology.Site) string {
	var best *ontology.Definition
	bestDiff := tolerance
	for _, d := range m.tables.Search(delta, tolerance) {
		if d.IsCrossLinker() || !d.Allowed(site) {
			continue
		}
		if diff := math.Abs(d.Formula.MonoisotopicMass() - delta); best == nil || diff < bestDiff {
			best, bestDiff = d, diff
		}
	}
	if best == nil {
		return FormatMass(math.Round(delta*1e4) / 1e4)
	}
	return best.Name
}
