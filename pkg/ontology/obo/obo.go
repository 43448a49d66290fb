// Package obo reads OBO flat files and converts the Unimod, PSI-MOD, XLMOD
// and GNOme releases into ontology table entries. RESID entries are taken
// from the RESID cross references in PSI-MOD.
package obo

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Stanza is one [Term] or [Typedef] block.
type Stanza struct {
	Kind string
	// Tags holds every "tag: value" line, trailing comments removed.
	Tags map[string][]string
	// Props holds the quoted values of xref and property_value lines keyed
	// by property name, e.g. "delta_composition" or "DiffFormula".
	Props map[string][]string
}

// Document is a parsed OBO file.
type Document struct {
	Header  map[string][]string
	Stanzas []*Stanza
}

// Tag returns the first value of a tag, or "".
func (s *Stanza) Tag(name string) string {
	if v := s.Tags[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Prop returns the first value of a property, or "".
func (s *Stanza) Prop(name string) string {
	if v := s.Props[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Obsolete reports whether the term is marked is_obsolete.
func (s *Stanza) Obsolete() bool {
	return s.Tag("is_obsolete") == "true"
}

// Terms returns the non-obsolete [Term] stanzas.
func (d *Document) Terms() []*Stanza {
	var out []*Stanza
	for _, s := range d.Stanzas {
		if s.Kind == "Term" && !s.Obsolete() {
			out = append(out, s)
		}
	}
	return out
}

// ParseError reports a line that is neither a stanza header nor a tag.
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: invalid OBO line '%s'", e.Line, e.Text)
}

// Read parses an OBO document.
func Read(r io.Reader) (*Document, error) {
	doc := &Document{Header: make(map[string][]string)}
	var cur *Stanza

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			cur = &Stanza{
				Kind:  line[1 : len(line)-1],
				Tags:  make(map[string][]string),
				Props: make(map[string][]string),
			}
			doc.Stanzas = append(doc.Stanzas, cur)
			continue
		}
		tag, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &ParseError{Line: lineNum, Text: line}
		}
		tag = strings.TrimSpace(tag)
		value = stripComment(strings.TrimSpace(value))
		if cur == nil {
			doc.Header[tag] = append(doc.Header[tag], value)
			continue
		}
		cur.Tags[tag] = append(cur.Tags[tag], value)
		if tag == "xref" || tag == "property_value" {
			if name, v, ok := splitProperty(value); ok {
				cur.Props[name] = append(cur.Props[name], v)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading OBO: %w", err)
	}
	return doc, nil
}

// ReadFile parses an OBO file, gunzipping it when it starts with the gzip
// magic number.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if sig, _ := br.Peek(2); len(sig) == 2 && sig[0] == 0x1f && sig[1] == 0x8b {
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer gr.Close()
		r = gr
	}
	doc, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// stripComment drops a trailing "! comment" outside quotes.
func stripComment(value string) string {
	quoted := false
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '\\':
			i++
		case '"':
			quoted = !quoted
		case '!':
			if !quoted && (i == 0 || value[i-1] == ' ') {
				return strings.TrimSpace(value[:i])
			}
		}
	}
	return value
}

// splitProperty splits `name "value" xsd:type` and `Name: "value"` into
// name and unquoted value. An unquoted value runs to the next space.
func splitProperty(value string) (name, v string, ok bool) {
	name, rest, ok := strings.Cut(value, " ")
	if !ok {
		return "", "", false
	}
	name = strings.TrimSuffix(name, ":")
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "\"") {
		s, _, _ := quoted(rest)
		return name, s, true
	}
	v, _, _ = strings.Cut(rest, " ")
	return name, v, v != ""
}

// quoted reads a leading quoted string and returns it unescaped together
// with the remaining text.
func quoted(text string) (string, string, bool) {
	if !strings.HasPrefix(text, "\"") {
		return "", text, false
	}
	var sb strings.Builder
	for i := 1; i < len(text); i++ {
		switch c := text[i]; c {
		case '\\':
			if i+1 < len(text) {
				i++
				sb.WriteByte(text[i])
			}
		case '"':
			return sb.String(), strings.TrimSpace(text[i+1:]), true
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), "", false
}

// DefRefs returns the cross references in brackets after a def string,
// e.g. ["PubMed:123", "RESID:AA0037"].
func (s *Stanza) DefRefs() []string {
	_, rest, ok := quoted(s.Tag("def"))
	if !ok || !strings.HasPrefix(rest, "[") {
		return nil
	}
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return nil
	}
	var refs []string
	for _, ref := range strings.Split(rest[1:end], ",") {
		if ref = strings.TrimSpace(ref); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Synonyms returns the synonym texts whose type, such as "RESID-name",
// matches kind. An empty kind matches every synonym.
func (s *Stanza) Synonyms(kind string) []string {
	var out []string
	for _, line := range s.Tags["synonym"] {
		text, rest, ok := quoted(line)
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if kind == "" || (len(fields) > 1 && fields[1] == kind) {
			out = append(out, text)
		}
	}
	return out
}
