package filecheck

import (
	"fmt"

	"git.fractalqb.de/fractalqb/icontainer/islist"
)

// Kind selects the matching strategy of a directive.
type Kind uint8

const (
	KindCheck Kind = iota
	KindNext
	KindSame
	KindNot
	KindEmpty
	KindLabel
	KindDag
	KindCount
)

func (k Kind) suffix() string {
	switch k {
	case KindNext:
		return "-NEXT"
	case KindSame:
		return "-SAME"
	case KindNot:
		return "-NOT"
	case KindEmpty:
		return "-EMPTY"
	case KindLabel:
		return "-LABEL"
	case KindDag:
		return "-DAG"
	case KindCount:
		return "-COUNT"
	}
	return ""
}

// Directive is one parsed check line. Immutable after parsing.
type Directive struct {
	Kind    Kind
	Prefix  string
	Pat     *Pattern
	Count   int // repetitions for KindCount
	Literal bool
	Loc     SourceLoc

	lsNext *Directive
}

// Name returns the directive as written, e.g. "CHECK-COUNT-3{LITERAL}".
func (d *Directive) Name() string {
	s := d.Prefix + d.Kind.suffix()
	if d.Kind == KindCount {
		s = fmt.Sprintf("%s-%d", s, d.Count)
	}
	if d.Literal {
		s += "{LITERAL}"
	}
	return s
}

func (d *Directive) String() string {
	return fmt.Sprintf("%s: %s", d.Name(), d.Pat)
}

// ListNext to implement intrusive singly linked list
func (d *Directive) ListNext() islist.Node { return d.lsNext }

// SetListNext to implement intrusive singly linked list
func (d *Directive) SetListNext(n islist.Node) {
	if n == nil {
		d.lsNext = nil
	} else {
		d.lsNext = n.(*Directive)
	}
}
