package filecheck

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/coregx/coregex"
)

// NumFormat describes how a numeric capture is matched and re-rendered.
type NumFormat struct {
	// Conversion letter: 'd', 'u', 'x' or 'X'. Zero means the default 'd'.
	Conv byte
	// Exact digit count, 0 for "one or more".
	Prec int
}

func (f NumFormat) conv() byte {
	if f.Conv == 0 {
		return 'd'
	}
	return f.Conv
}

// pattern returns the regex fragment matching a number in this format.
func (f NumFormat) pattern() string {
	var cls, sign string
	switch f.conv() {
	case 'u':
		cls = `\d`
	case 'x':
		cls = `[a-f0-9]`
	case 'X':
		cls = `[A-F0-9]`
	default:
		cls, sign = `\d`, `[+-]?`
	}
	if f.Prec > 0 {
		return fmt.Sprintf("%s%s{%d}", sign, cls, f.Prec)
	}
	return sign + cls + "+"
}

// Parse interprets matched text per the format's base.
func (f NumFormat) Parse(s string) (int64, error) {
	base := 10
	switch f.conv() {
	case 'x', 'X':
		base = 16
	}
	return strconv.ParseInt(s, base, 64)
}

// Render formats a value the way it would have been matched: the exact digit
// count is restored by zero padding, negative values keep their sign.
func (f NumFormat) Render(v int64) string {
	u, neg := uint64(v), false
	if v < 0 {
		u, neg = uint64(-v), true
	}
	var digits string
	switch f.conv() {
	case 'x':
		digits = strconv.FormatUint(u, 16)
	case 'X':
		digits = strings.ToUpper(strconv.FormatUint(u, 16))
	default:
		digits = strconv.FormatUint(u, 10)
	}
	for len(digits) < f.Prec {
		digits = "0" + digits
	}
	if neg {
		return "-" + digits
	}
	return digits
}

func (f NumFormat) String() string {
	var sb strings.Builder
	sb.WriteByte('%')
	if f.Prec > 0 {
		fmt.Fprintf(&sb, ".%d", f.Prec)
	}
	sb.WriteByte(f.conv())
	return sb.String()
}

type segKind uint8

const (
	segLiteral segKind = iota
	segRegex
	segCaptureText
	segCaptureNum
	segRefText
	segRefNum
)

// segment is one element of a compiled pattern. Depending on kind it uses
// text (literal content or regex source), name and format.
type segment struct {
	kind segKind
	text string
	name string
	fmt  NumFormat
}

// Pattern is the compiled form of a directive payload: an ordered sequence
// of segments that can be materialized into a concrete regex given the
// current variable environment.
type Pattern struct {
	segs []segment
}

// Captures returns the names of all capture segments in order.
func (p *Pattern) Captures() []string {
	var names []string
	for _, s := range p.segs {
		if (s.kind == segCaptureText || s.kind == segCaptureNum) && s.name != "" {
			names = append(names, s.name)
		}
	}
	return names
}

// Equal compares two patterns structurally.
func (p *Pattern) Equal(q *Pattern) bool {
	if len(p.segs) != len(q.segs) {
		return false
	}
	for i, s := range p.segs {
		if s != q.segs[i] {
			return false
		}
	}
	return true
}

// String re-emits the pattern in payload syntax.
func (p *Pattern) String() string {
	var sb strings.Builder
	for _, s := range p.segs {
		switch s.kind {
		case segLiteral:
			sb.WriteString(s.text)
		case segRegex:
			fmt.Fprintf(&sb, "{{%s}}", s.text)
		case segCaptureText:
			fmt.Fprintf(&sb, "[[%s:%s]]", s.name, s.text)
		case segCaptureNum:
			switch {
			case s.fmt == (NumFormat{}) && s.name == "":
				sb.WriteString("[[#]]")
			case s.fmt == (NumFormat{}):
				fmt.Fprintf(&sb, "[[#%s:]]", s.name)
			case s.name == "":
				fmt.Fprintf(&sb, "[[#%s,]]", s.fmt)
			default:
				fmt.Fprintf(&sb, "[[#%s,%s:]]", s.fmt, s.name)
			}
		case segRefText:
			fmt.Fprintf(&sb, "[[%s]]", s.name)
		case segRefNum:
			fmt.Fprintf(&sb, "[[#%s]]", s.name)
		}
	}
	return sb.String()
}

var (
	varNameRx = coregex.MustCompile(`^\$?[A-Za-z_][A-Za-z0-9_]*$`)
	wsRunRx   = coregex.MustCompile(`[ \t]+`)
	posixRx   = coregex.MustCompile(`\[:[a-z]+:\]`)
)

func isVarName(s string) bool { return varNameRx.MatchString(s) }

// quoteLiteral escapes a literal segment for use in a regex. Unless strict,
// runs of blanks match any run of blanks.
func quoteLiteral(s string, strict bool) string {
	q := coregex.QuoteMeta(s)
	if strict {
		return q
	}
	return wsRunRx.ReplaceAllLiteralString(q, `[ \t]+`)
}

// posixClasses maps the classic POSIX bracket class names to PCRE fragments.
// The translation is best effort, matching llvm::Regex input habits.
var posixClasses = map[string]string{
	"alpha":  "A-Za-z",
	"upper":  "A-Z",
	"lower":  "a-z",
	"digit":  "0-9",
	"alnum":  "A-Za-z0-9",
	"xdigit": "A-Fa-f0-9",
	"space":  `\s`,
	"blank":  ` \t`,
}

// mlirValueExpr is substituted for \V under the MLIR_REGEX_CLS feature. It
// matches an SSA value name, optionally with a result number suffix.
const mlirValueExpr = `%([0-9]+|[A-Za-z_.$-][A-Za-z_.$0-9-]*)(#\d+)?`

// transformRegex rewrites an embedded regex body for the engine: POSIX
// bracket classes become PCRE fragments, negated classes are kept away from
// newlines, and feature classes are expanded.
func transformRegex(expr string, feats Features) (string, error) {
	for {
		loc := posixRx.FindStringIndex(expr)
		if loc == nil {
			break
		}
		name := expr[loc[0]+2 : loc[1]-2]
		repl, ok := posixClasses[name]
		if !ok {
			return "", fmt.Errorf("unknown POSIX character class [:%s:]", name)
		}
		expr = expr[:loc[0]] + repl + expr[loc[1]:]
	}
	expr = negatedClassNoNewline(expr)
	if feats&FeatMLIRRegexCls != 0 {
		expr = strings.ReplaceAll(expr, `\V`, mlirValueExpr)
	}
	return expr, nil
}

// negatedClassNoNewline inserts \n into every negated bracket expression so
// that '[^...]' never eats line ends, the way newline-sensitive llvm::Regex
// behaves.
func negatedClassNoNewline(expr string) string {
	var sb strings.Builder
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if c == '\\' && i+1 < len(expr) {
			sb.WriteByte(c)
			i++
			sb.WriteByte(expr[i])
			continue
		}
		sb.WriteByte(c)
		if c == '[' && i+1 < len(expr) && expr[i+1] == '^' {
			sb.WriteByte('^')
			i++
			if !strings.HasPrefix(expr[i+1:], `\n`) {
				sb.WriteString(`\n`)
			}
		}
	}
	return sb.String()
}

// countGroups counts the capturing groups of a regex source: unescaped '('
// not followed by '?' and not inside a bracket expression.
func countGroups(expr string) (n int) {
	inClass := false
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '\\':
			i++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '(':
			if !inClass && (i+1 >= len(expr) || expr[i+1] != '?') {
				n++
			}
		}
	}
	return n
}

// compilePattern converts a directive payload into a Pattern. In literal
// mode the whole payload is one verbatim segment.
func compilePattern(payload string, literal bool, opts *Options) (*Pattern, error) {
	p := new(Pattern)
	if literal {
		if payload != "" {
			p.segs = append(p.segs, segment{kind: segLiteral, text: payload})
		}
		return p, nil
	}
	lit := func(s string) {
		if s == "" {
			return
		}
		if n := len(p.segs); n > 0 && p.segs[n-1].kind == segLiteral {
			p.segs[n-1].text += s
			return
		}
		p.segs = append(p.segs, segment{kind: segLiteral, text: s})
	}
	for payload != "" {
		rs := strings.Index(payload, "{{")
		vs := strings.Index(payload, "[[")
		switch {
		case rs >= 0 && (vs < 0 || rs < vs):
			lit(payload[:rs])
			end := strings.Index(payload[rs+2:], "}}")
			if end < 0 {
				return nil, &PatternError{Expr: payload[rs:], err: errors.New("unterminated {{ block")}
			}
			body := payload[rs+2 : rs+2+end]
			expr, err := transformRegex(body, opts.Features)
			if err != nil {
				return nil, &PatternError{Expr: body, err: err}
			}
			if _, err := coregex.Compile(expr); err != nil {
				return nil, &PatternError{Expr: body, err: err}
			}
			p.segs = append(p.segs, segment{kind: segRegex, text: expr})
			payload = payload[rs+4+end:]
		case vs >= 0:
			lit(payload[:vs])
			end := strings.Index(payload[vs+2:], "]]")
			if end < 0 {
				// not terminated, keep as literal text
				lit(payload[vs:])
				return p, nil
			}
			body := payload[vs+2 : vs+2+end]
			seg, ok, err := parseVarBody(body, opts)
			if err != nil {
				return nil, err
			}
			if ok {
				p.segs = append(p.segs, seg)
			} else {
				// ill-formed body, the brackets are literal
				lit(payload[vs : vs+4+end])
			}
			payload = payload[vs+4+end:]
		default:
			lit(payload)
			payload = ""
		}
	}
	return p, nil
}

// parseVarBody interprets the inside of a [[...]] block. ok is false when
// the body is not a well-formed variable expression, in which case the block
// is treated as literal text.
func parseVarBody(body string, opts *Options) (seg segment, ok bool, err error) {
	if strings.HasPrefix(body, "#") {
		return parseNumBody(body[1:])
	}
	if name, expr, colon := strings.Cut(body, ":"); colon {
		if !isVarName(name) {
			return seg, false, nil
		}
		expr, err := transformRegex(expr, opts.Features)
		if err != nil {
			return seg, false, &PatternError{Expr: body, err: err}
		}
		if _, err := coregex.Compile(expr); err != nil {
			return seg, false, &PatternError{Expr: body, err: err}
		}
		return segment{kind: segCaptureText, name: name, text: expr}, true, nil
	}
	if !isVarName(body) {
		return seg, false, nil
	}
	return segment{kind: segRefText, name: body}, true, nil
}

// parseNumBody interprets the body of a [[#...]] block: an optional
// %-format, then an optional NAME: capture or a bare NAME reference.
func parseNumBody(body string) (seg segment, ok bool, err error) {
	var f NumFormat
	rest := body
	if strings.HasPrefix(rest, "%") {
		spec, tail, comma := strings.Cut(rest[1:], ",")
		if !comma {
			return seg, false, nil
		}
		if strings.HasPrefix(spec, ".") {
			i := 1
			for i < len(spec) && spec[i] >= '0' && spec[i] <= '9' {
				i++
			}
			if i == 1 {
				return seg, false, nil
			}
			n, err := strconv.Atoi(spec[1:i])
			if err != nil {
				return seg, false, nil
			}
			f.Prec = n
			spec = spec[i:]
		}
		switch spec {
		case "":
			f.Conv = 'd'
		case "u", "d", "x", "X":
			f.Conv = spec[0]
		default:
			return seg, false, nil
		}
		rest = tail
	}
	switch {
	case rest == "":
		// non-binding numeric match
		return segment{kind: segCaptureNum, fmt: f}, true, nil
	case strings.HasSuffix(rest, ":"):
		name := rest[:len(rest)-1]
		if !isVarName(name) {
			return seg, false, nil
		}
		return segment{kind: segCaptureNum, name: name, fmt: f}, true, nil
	case isVarName(rest):
		if f != (NumFormat{}) {
			// a format on a plain reference is not part of the syntax
			return seg, false, nil
		}
		return segment{kind: segRefNum, name: rest}, true, nil
	}
	return seg, false, nil
}

// capRef names the regex group a capture segment materialized into.
type capRef struct {
	name    string
	group   int
	numeric bool
	format  NumFormat
}

// matPattern is a Pattern rendered against a concrete environment: a ready
// to search regex plus the group table for committing captures. Same-line
// references to captures of the same pattern cannot be substituted up front;
// they become extra groups whose text must equal the capture's.
type matPattern struct {
	re     *coregex.Regex
	caps   []capRef
	equals [][2]int // pairs of (reference group, capture group)
}

// materialize renders the pattern to a concrete regex by substituting
// references with the escaped current binding and captures with groups.
func (p *Pattern) materialize(env *Env, opts *Options, anchor bool) (*matPattern, error) {
	type localCap struct {
		group int
		expr  string
	}
	mp := new(matPattern)
	locals := make(map[string]localCap)
	var sb strings.Builder
	groups := 0
	for _, s := range p.segs {
		switch s.kind {
		case segLiteral:
			sb.WriteString(quoteLiteral(s.text, opts.StrictWhitespace))
		case segRegex:
			sb.WriteString(s.text)
			groups += countGroups(s.text)
		case segCaptureText:
			groups++
			if s.name != "" {
				locals[s.name] = localCap{group: groups, expr: s.text}
				mp.caps = append(mp.caps, capRef{name: s.name, group: groups})
			}
			sb.WriteByte('(')
			sb.WriteString(s.text)
			sb.WriteByte(')')
			groups += countGroups(s.text)
		case segCaptureNum:
			expr := s.fmt.pattern()
			if s.name == "" {
				sb.WriteString(expr)
				break
			}
			groups++
			locals[s.name] = localCap{group: groups, expr: expr}
			mp.caps = append(mp.caps, capRef{
				name: s.name, group: groups, numeric: true, format: s.fmt,
			})
			sb.WriteByte('(')
			sb.WriteString(expr)
			sb.WriteByte(')')
		case segRefText, segRefNum:
			if lc, defined := locals[s.name]; defined {
				// bound by this very pattern: match the same shape again
				// and verify equality after the fact
				groups++
				mp.equals = append(mp.equals, [2]int{groups, lc.group})
				sb.WriteByte('(')
				sb.WriteString(lc.expr)
				sb.WriteByte(')')
				groups += countGroups(lc.expr)
				break
			}
			b, bound := env.Lookup(s.name)
			if !bound {
				return nil, &UnboundVariableError{Name: s.name}
			}
			if s.kind == segRefNum && !b.Numeric {
				return nil, fmt.Errorf(
					"numeric reference to text variable '%s'", s.name)
			}
			sb.WriteString(coregex.QuoteMeta(b.Value()))
		}
	}
	src := sb.String()
	if anchor {
		if opts.StrictWhitespace {
			src = "^(?:" + src + ")$"
		} else {
			src = `^[ \t]*(?:` + src + `)[ \t]*$`
		}
	}
	re, err := coregex.Compile(src)
	if err != nil {
		return nil, &PatternError{Expr: src, err: err}
	}
	mp.re = re
	return mp, nil
}

// findIn searches text from start for a match satisfying all same-pattern
// equality constraints. The returned index slice is in FindSubmatchIndex
// layout, adjusted to absolute positions in text.
func (mp *matPattern) findIn(text string, start int) []int {
	for start <= len(text) {
		loc := mp.re.FindStringSubmatchIndex(text[start:])
		if loc == nil {
			return nil
		}
		for i, v := range loc {
			if v >= 0 {
				loc[i] = v + start
			}
		}
		if mp.equalsOK(text, loc) {
			return loc
		}
		start = loc[0] + 1
	}
	return nil
}

func (mp *matPattern) equalsOK(text string, loc []int) bool {
	for _, eq := range mp.equals {
		r, c := 2*eq[0], 2*eq[1]
		if r+1 >= len(loc) || c+1 >= len(loc) {
			return false
		}
		if loc[r] < 0 || loc[c] < 0 {
			return false
		}
		if text[loc[r]:loc[r+1]] != text[loc[c]:loc[c+1]] {
			return false
		}
	}
	return true
}
