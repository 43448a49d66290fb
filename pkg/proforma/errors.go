package proforma

import "fmt"

// SyntaxError reports input that does not follow the notation grammar.
// Offset is the byte offset into the parsed text. Err, when set, is the
// semantic cause such as *peptide.InvalidChargeError.
type SyntaxError struct {
	Offset   int
	Expected string
	Found    string
	Err      error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: expected %s, found %s", e.Offset, e.Expected, e.Found)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// ModificationError reports a modification block that is well formed but
// cannot be resolved to chemistry. Err is the underlying ontology, formula or
// glycan error.
type ModificationError struct {
	Offset int
	Text   string
	Err    error
}

func (e *ModificationError) Error() string {
	return fmt.Sprintf("modification '%s' at offset %d: %v", e.Text, e.Offset, e.Err)
}

func (e *ModificationError) Unwrap() error { return e.Err }

// LabelError reports a label used where labels are not allowed or defined
// more than once.
type LabelError struct {
	Offset  int
	Label   string
	Message string
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("label '#%s' at offset %d: %s", e.Label, e.Offset, e.Message)
}

func found(text string, pos int) string {
	if pos >= len(text) {
		return "end of input"
	}
	return fmt.Sprintf("%q", text[pos])
}
