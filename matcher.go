package filecheck

import (
	"fmt"

	"git.fractalqb.de/fractalqb/icontainer/islist"
)

// Matcher applies a directive sequence to an input stream. It owns the
// cursor and the variable environment. A Matcher is good for one Run and
// must not be used concurrently.
type Matcher struct {
	opts  *Options
	in    *Input
	dirs  []*Directive
	env   *Env
	diags *Diagnostics

	cursor    int // next line to search, 0-based
	lastLine  int // line of the last positive match, -1 before any
	lastEnd   int // end column of the last match on lastLine
	regionEnd int // exclusive line bound of the current label region

	nots    *islist.List
	notFrom int

	labels   []resolvedLabel
	labelIdx int
	skipping bool
}

// resolvedLabel is the outcome of the label pre-pass: where in the input a
// -LABEL directive matched.
type resolvedLabel struct {
	line int
	end  int
	ok   bool
}

// NewMatcher prepares a run of dirs against the given input bytes.
func NewMatcher(opts *Options, dirs []*Directive, input []byte) *Matcher {
	return &Matcher{
		opts:     opts,
		in:       NewInput(opts.InputFile, input),
		dirs:     dirs,
		env:      NewEnv(opts.Defines),
		lastLine: -1,
	}
}

// Input returns the line-split input under test.
func (m *Matcher) Input() *Input { return m.in }

// Run processes all directives in order and returns the collected
// diagnostics. The run failed iff the result has errors.
func (m *Matcher) Run() *Diagnostics {
	m.diags = new(Diagnostics)
	if m.in.Empty() && !m.opts.AllowEmpty {
		m.diags.errorf(SourceLoc{File: m.in.Name(), Line: 1}, nil,
			"empty input file")
		return m.diags
	}
	m.resolveLabels()
	m.regionEnd = m.nextBoundary()
	m.env.PushScope()

	for i := 0; i < len(m.dirs); i++ {
		d := m.dirs[i]
		if m.skipping && d.Kind != KindLabel {
			continue
		}
		switch d.Kind {
		case KindNot:
			m.enqueueNot(d)
		case KindDag:
			j := i + 1
			for j < len(m.dirs) &&
				(m.dirs[j].Kind == KindDag || m.dirs[j].Kind == KindNot) {
				j++
			}
			for m.dirs[j-1].Kind == KindNot {
				j--
			}
			m.applyDagGroup(m.dirs[i:j])
			i = j - 1
		case KindLabel:
			m.applyLabel(d)
		case KindNext:
			m.applyNext(d)
		case KindSame:
			m.applySame(d)
		case KindEmpty:
			m.applyEmpty(d)
		case KindCount:
			m.applyCount(d)
		default:
			m.applyCheck(d)
		}
	}
	m.resolveNots(m.regionEnd)
	return m.diags
}

// materializeFor renders a directive's pattern against the live environment.
// Positive patterns are anchored under --match-full-lines; -SAME continues
// mid-line and -NOT is not a positive pattern, neither is anchored.
func (m *Matcher) materializeFor(d *Directive) (*matPattern, error) {
	anchor := m.opts.MatchFullLines &&
		d.Kind != KindSame && d.Kind != KindNot
	return d.Pat.materialize(m.env, m.opts, anchor)
}

// commit binds the captures of a successful match at input line L.
func (m *Matcher) commit(d *Directive, mp *matPattern, L int, loc []int) {
	line := m.in.Line(L)
	for _, c := range mp.caps {
		g := 2 * c.group
		var val string
		if g+1 < len(loc) && loc[g] >= 0 {
			val = line[loc[g]:loc[g+1]]
		}
		if val == "" {
			m.diags.warnf(d.Loc,
				"empty capture of variable '%s'", c.name)
			if m.opts.RejectEmptyVars {
				m.diags.error(d.Loc, m.in.pos(L, loc[0]),
					&EmptyCaptureError{Name: c.name})
			}
			m.env.BindText(c.name, "")
			continue
		}
		if c.numeric {
			n, err := c.format.Parse(val)
			if err != nil {
				m.diags.error(d.Loc, m.in.pos(L, loc[g]),
					&PatternError{Expr: val, err: err})
				continue
			}
			m.env.BindNum(c.name, n, c.format)
		} else {
			m.env.BindText(c.name, val)
		}
	}
}

// noMatch records the failure of a positive directive and searches the rest
// of the input, past the region boundary, for a line the pattern would have
// matched. That near miss is advisory only.
func (m *Matcher) noMatch(d *Directive, mp *matPattern) {
	var pos *InputPos
	if m.cursor < m.in.NumLines() {
		pos = m.in.pos(m.cursor, 0)
	}
	m.diags.errorf(d.Loc, pos, "%s: couldn't match \"%s\"", d.Name(), d.Pat)
	if mp == nil {
		return
	}
	for L := m.cursor; L < m.in.NumLines(); L++ {
		if loc := mp.findIn(m.in.Line(L), 0); loc != nil {
			m.diags.notef(d.Loc, m.in.pos(L, loc[0]),
				"possible intended match here")
			return
		}
	}
}

func (m *Matcher) matchErr(d *Directive, err error) {
	var pos *InputPos
	if m.cursor < m.in.NumLines() {
		pos = m.in.pos(m.cursor, 0)
	}
	m.diags.error(d.Loc, pos, err)
}

func (m *Matcher) applyCheck(d *Directive) {
	mp, err := m.materializeFor(d)
	if err != nil {
		m.matchErr(d, err)
		m.clearNots()
		return
	}
	for L := m.cursor; L < m.regionEnd; L++ {
		if loc := mp.findIn(m.in.Line(L), 0); loc != nil {
			m.commit(d, mp, L, loc)
			m.resolveNots(L)
			m.lastLine, m.lastEnd = L, loc[1]
			m.cursor = L + 1
			return
		}
	}
	m.noMatch(d, mp)
	m.clearNots()
}

func (m *Matcher) applyNext(d *Directive) {
	if m.lastLine < 0 {
		m.matchErr(d, fmt.Errorf("%s without previous match", d.Name()))
		return
	}
	mp, err := m.materializeFor(d)
	if err != nil {
		m.matchErr(d, err)
		m.clearNots()
		return
	}
	L := m.cursor
	if L >= m.regionEnd {
		m.noMatch(d, mp)
		m.clearNots()
		return
	}
	loc := mp.findIn(m.in.Line(L), 0)
	if loc == nil {
		m.diags.errorf(d.Loc, m.in.pos(L, 0),
			"%s: expected \"%s\" on the next line", d.Name(), d.Pat)
		m.clearNots()
		return
	}
	m.commit(d, mp, L, loc)
	m.resolveNots(L)
	m.lastLine, m.lastEnd = L, loc[1]
	m.cursor = L + 1
}

func (m *Matcher) applySame(d *Directive) {
	if m.lastLine < 0 {
		m.matchErr(d, fmt.Errorf("%s without previous match", d.Name()))
		return
	}
	mp, err := m.materializeFor(d)
	if err != nil {
		m.matchErr(d, err)
		return
	}
	line := m.in.Line(m.lastLine)
	loc := mp.findIn(line, m.lastEnd)
	if loc == nil {
		m.diags.errorf(d.Loc, m.in.pos(m.lastLine, m.lastEnd),
			"%s: expected \"%s\" on the same line", d.Name(), d.Pat)
		return
	}
	m.commit(d, mp, m.lastLine, loc)
	m.resolveNots(m.lastLine)
	m.lastEnd = loc[1]
}

func (m *Matcher) applyEmpty(d *Directive) {
	if m.lastLine < 0 {
		m.matchErr(d, fmt.Errorf("%s without previous match", d.Name()))
		return
	}
	L := m.cursor
	if L >= m.regionEnd || m.in.Line(L) != "" {
		var pos *InputPos
		if L < m.in.NumLines() {
			pos = m.in.pos(L, 0)
		}
		m.diags.errorf(d.Loc, pos,
			"%s: expected empty line on the next line", d.Name())
		m.clearNots()
		return
	}
	m.resolveNots(L)
	m.lastLine, m.lastEnd = L, 0
	m.cursor = L + 1
}

func (m *Matcher) applyCount(d *Directive) {
	// each repetition re-materializes: captures of one match are visible
	// to references in the next
	mp, err := m.materializeFor(d)
	if err != nil {
		m.matchErr(d, err)
		m.clearNots()
		return
	}
	first, firstLoc := -1, []int(nil)
	for L := m.cursor; L < m.regionEnd; L++ {
		if loc := mp.findIn(m.in.Line(L), 0); loc != nil {
			first, firstLoc = L, loc
			break
		}
	}
	if first < 0 {
		m.noMatch(d, mp)
		m.clearNots()
		return
	}
	m.commit(d, mp, first, firstLoc)
	last, lastLoc := first, firstLoc
	for k := 1; k < d.Count; k++ {
		L := first + k
		if mp, err = m.materializeFor(d); err != nil {
			m.matchErr(d, err)
			m.clearNots()
			return
		}
		var loc []int
		if L < m.regionEnd {
			loc = mp.findIn(m.in.Line(L), 0)
		}
		if loc == nil {
			var pos *InputPos
			if L < m.in.NumLines() {
				pos = m.in.pos(L, 0)
			}
			m.diags.errorf(d.Loc, pos,
				"%s: expected %d consecutive matches of \"%s\", found %d",
				d.Name(), d.Count, d.Pat, k)
			m.clearNots()
			return
		}
		m.commit(d, mp, L, loc)
		last, lastLoc = L, loc
	}
	m.resolveNots(first)
	m.lastLine, m.lastEnd = last, lastLoc[1]
	m.cursor = last + 1
}

// resolveLabels is the pre-pass that partitions the input: each -LABEL
// directive is matched, in source order, against the lines after the
// previous label's match. Captures are rejected at parse time, so a fresh
// environment holding only the CLI definitions is enough here.
func (m *Matcher) resolveLabels() {
	env := NewEnv(m.opts.Defines)
	start := 0
	for _, d := range m.dirs {
		if d.Kind != KindLabel {
			continue
		}
		lm := resolvedLabel{line: m.in.NumLines()}
		mp, err := d.Pat.materialize(env, m.opts, m.opts.MatchFullLines)
		if err != nil {
			m.diags.error(d.Loc, nil, err)
			m.labels = append(m.labels, lm)
			continue
		}
		found := false
		for L := start; L < m.in.NumLines(); L++ {
			if loc := mp.findIn(m.in.Line(L), 0); loc != nil {
				lm.line, lm.end, lm.ok = L, loc[1], true
				start = L + 1
				found = true
				break
			}
		}
		if !found {
			m.diags.errorf(d.Loc, nil,
				"%s: couldn't match \"%s\"", d.Name(), d.Pat)
		}
		m.labels = append(m.labels, lm)
	}
}

// nextBoundary returns the exclusive line bound of the current region: the
// next label's match line, or the end of input.
func (m *Matcher) nextBoundary() int {
	if m.labelIdx < len(m.labels) {
		return m.labels[m.labelIdx].line
	}
	return m.in.NumLines()
}

func (m *Matcher) applyLabel(d *Directive) {
	lm := m.labels[m.labelIdx]
	m.labelIdx++
	if !lm.ok {
		// error already recorded by the pre-pass; a failed label is
		// fatal for the directives inside its region
		m.skipping = true
		m.clearNots()
		m.regionEnd = m.nextBoundary()
		return
	}
	m.skipping = false
	m.resolveNots(lm.line)
	m.lastLine, m.lastEnd = lm.line, lm.end
	m.cursor = lm.line + 1
	m.regionEnd = m.nextBoundary()
	if m.opts.EnableVarScope {
		m.env.PopScope()
		m.env.PushScope()
	}
}

// dagSection is a NOT-separated part of a DAG group: the interleaved NOTs
// apply between the matches of the previous section and this one's, and this
// section's matches may not be reordered before them.
type dagSection struct {
	pre  []*Directive
	dags []*Directive
}

func splitDagGroup(group []*Directive) (secs []dagSection) {
	var sec dagSection
	for _, d := range group {
		if d.Kind == KindNot {
			if len(sec.dags) > 0 {
				secs = append(secs, sec)
				sec = dagSection{}
			}
			sec.pre = append(sec.pre, d)
		} else {
			sec.dags = append(sec.dags, d)
		}
	}
	return append(secs, sec)
}

func (m *Matcher) applyDagGroup(group []*Directive) {
	var claimed []span
	groupMin, groupMax, groupMaxEnd := m.regionEnd, m.cursor-1, m.lastEnd
	secStart := m.cursor
	prevSecMax := m.cursor - 1
	failed := false

	for _, sec := range splitDagGroup(group) {
		secMin, secMax := m.regionEnd, secStart-1
		for _, d := range sec.dags {
			mp, err := m.materializeFor(d)
			if err != nil {
				m.matchErr(d, err)
				failed = true
				continue
			}
			L, loc := m.dagSearch(mp, secStart, claimed)
			if loc == nil {
				m.noMatchDag(d, mp, secStart)
				failed = true
				continue
			}
			m.commit(d, mp, L, loc)
			claimed = append(claimed, span{line: L, start: loc[0], end: loc[1]})
			if L < secMin {
				secMin = L
			}
			if L > secMax {
				secMax = L
			}
			if L > groupMax || (L == groupMax && loc[1] > groupMaxEnd) {
				groupMax, groupMaxEnd = L, loc[1]
			}
			if L < groupMin {
				groupMin = L
			}
		}
		for _, nd := range sec.pre {
			m.notRange(nd, prevSecMax+1, secMin)
		}
		if secMax > prevSecMax {
			prevSecMax = secMax
		}
		secStart = secMax + 1
	}

	if failed {
		m.clearNots()
		return
	}
	m.resolveNots(groupMin)
	m.lastLine, m.lastEnd = groupMax, groupMaxEnd
	m.cursor = groupMax + 1
}

// dagSearch finds the earliest match at or after startLine that does not
// overlap a position already claimed by the group.
func (m *Matcher) dagSearch(mp *matPattern, startLine int, claimed []span) (int, []int) {
	for L := startLine; L < m.regionEnd; L++ {
		line := m.in.Line(L)
		col := 0
		for {
			loc := mp.findIn(line, col)
			if loc == nil {
				break
			}
			if !overlapsAny(claimed, L, loc[0], loc[1]) {
				return L, loc
			}
			col = loc[0] + 1
		}
	}
	return 0, nil
}

func overlapsAny(claimed []span, line, start, end int) bool {
	for _, c := range claimed {
		if c.overlaps(line, start, end) {
			return true
		}
	}
	return false
}

func (m *Matcher) noMatchDag(d *Directive, mp *matPattern, startLine int) {
	var pos *InputPos
	if startLine < m.in.NumLines() {
		pos = m.in.pos(startLine, 0)
	}
	m.diags.errorf(d.Loc, pos, "%s: couldn't match \"%s\"", d.Name(), d.Pat)
	for L := startLine; L < m.in.NumLines(); L++ {
		if loc := mp.findIn(m.in.Line(L), 0); loc != nil {
			m.diags.notef(d.Loc, m.in.pos(L, loc[0]),
				"possible intended match here")
			return
		}
	}
}

func (m *Matcher) enqueueNot(d *Directive) {
	if m.nots == nil {
		m.notFrom = m.cursor
		m.nots = islist.New(d)
		return
	}
	if m.nots.Len() == 0 {
		m.notFrom = m.cursor
	}
	m.nots.PushBack(d)
}

// resolveNots evaluates the pending CHECK-NOT directives over the lines
// between the last resolved match and resolveLine, both exclusive.
func (m *Matcher) resolveNots(resolveLine int) {
	if m.nots == nil {
		return
	}
	for m.nots.Len() > 0 {
		d := m.nots.Front().(*Directive)
		m.nots.Drop(1)
		m.notRange(d, m.notFrom, resolveLine)
	}
}

// notRange fails the run if d matches on any line of [from, to).
func (m *Matcher) notRange(d *Directive, from, to int) {
	mp, err := m.materializeFor(d)
	if err != nil {
		m.diags.error(d.Loc, nil, err)
		return
	}
	if from < 0 {
		from = 0
	}
	if to > m.in.NumLines() {
		to = m.in.NumLines()
	}
	for L := from; L < to; L++ {
		if loc := mp.findIn(m.in.Line(L), 0); loc != nil {
			m.diags.errorf(d.Loc, m.in.pos(L, loc[0]),
				"%s: excluded string found in input (\"%s\")",
				d.Name(), d.Pat)
			return
		}
	}
}

func (m *Matcher) clearNots() {
	if m.nots == nil {
		return
	}
	for m.nots.Len() > 0 {
		m.nots.Drop(1)
	}
}
