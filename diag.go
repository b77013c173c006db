package filecheck

import (
	"fmt"
	"strings"
)

// Severity of a diagnostic.
type Severity uint8

const (
	SevNote Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevNote:
		return "note"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", uint8(s))
}

// SourceLoc points into the check file.
type SourceLoc struct {
	File string
	Line int // 1-based
	Col  int // 1-based, 0 if unknown
}

func (l SourceLoc) String() string {
	if l.Col > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// InputPos points into the input stream.
type InputPos struct {
	Line int // 1-based
	Col  int // 1-based
}

func (p InputPos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Diagnostic is one entry of the collector: a parse error, a match failure,
// a warning or an advisory note.
type Diagnostic struct {
	Sev Severity
	Loc SourceLoc
	// Position in the input where the cursor was blocked, if applicable.
	Pos *InputPos
	Msg string
	// Wrapped cause, one of the error types below, if applicable.
	Err error
}

func (d *Diagnostic) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s: %s", d.Loc, d.Sev, d.Msg)
	if d.Pos != nil {
		fmt.Fprintf(&sb, " (input %s)", d.Pos)
	}
	return sb.String()
}

// Diagnostics collects the structured parse errors, match failures, warnings
// and notes of one run. The final verdict is derived from its state.
type Diagnostics struct {
	ds     []Diagnostic
	errors int
}

func (ds *Diagnostics) add(d Diagnostic) {
	if d.Sev == SevError {
		ds.errors++
	}
	ds.ds = append(ds.ds, d)
}

func (ds *Diagnostics) error(loc SourceLoc, pos *InputPos, err error) {
	ds.add(Diagnostic{Sev: SevError, Loc: loc, Pos: pos, Msg: err.Error(), Err: err})
}

func (ds *Diagnostics) errorf(loc SourceLoc, pos *InputPos, form string, args ...any) {
	ds.add(Diagnostic{Sev: SevError, Loc: loc, Pos: pos, Msg: fmt.Sprintf(form, args...)})
}

func (ds *Diagnostics) warnf(loc SourceLoc, form string, args ...any) {
	ds.add(Diagnostic{Sev: SevWarning, Loc: loc, Msg: fmt.Sprintf(form, args...)})
}

func (ds *Diagnostics) notef(loc SourceLoc, pos *InputPos, form string, args ...any) {
	ds.add(Diagnostic{Sev: SevNote, Loc: loc, Pos: pos, Msg: fmt.Sprintf(form, args...)})
}

// All returns the collected diagnostics in the order they were recorded.
func (ds *Diagnostics) All() []Diagnostic { return ds.ds }

func (ds *Diagnostics) Len() int { return len(ds.ds) }

// HasErrors reports whether the run must fail.
func (ds *Diagnostics) HasErrors() bool { return ds.errors > 0 }

// PatternError reports an ill-formed embedded regex or numeric format.
type PatternError struct {
	Expr string
	err  error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("bad pattern `%s`: %s", e.Expr, e.err)
}

func (e *PatternError) Unwrap() error { return e.err }

// UnboundVariableError reports a reference to an undefined name at
// materialization time.
type UnboundVariableError struct {
	Name string
}

func (e *UnboundVariableError) Error() string {
	return fmt.Sprintf("variable '%s' referenced before binding", e.Name)
}

// EmptyCaptureError reports an empty capture under --reject-empty-vars.
type EmptyCaptureError struct {
	Name string
}

func (e *EmptyCaptureError) Error() string {
	return fmt.Sprintf("empty capture for variable '%s'", e.Name)
}

// InvalidCountError reports a non-positive COUNT-n.
type InvalidCountError struct {
	Count int
}

func (e *InvalidCountError) Error() string {
	return fmt.Sprintf("invalid count %d in -COUNT specification (count must be >= 1)", e.Count)
}

// LabelCaptureError reports a capture segment inside a -LABEL pattern.
type LabelCaptureError struct {
	Name string
}

func (e *LabelCaptureError) Error() string {
	return fmt.Sprintf("-LABEL pattern must not capture variable '%s'", e.Name)
}
