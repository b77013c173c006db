package filecheck

import (
	"strconv"
	"strings"

	"github.com/coregx/coregex"
)

var kindNames = map[string]Kind{
	"NEXT":  KindNext,
	"SAME":  KindSame,
	"NOT":   KindNot,
	"EMPTY": KindEmpty,
	"LABEL": KindLabel,
	"DAG":   KindDag,
}

// directiveRx builds the scanner regex for the configured check prefixes: a
// prefix, an optional kind suffix, an optional {LITERAL} marker, a colon and
// the payload.
func directiveRx(opts *Options) (*coregex.Regex, error) {
	alt := make([]string, len(opts.Prefixes))
	for i, p := range opts.Prefixes {
		alt[i] = coregex.QuoteMeta(p)
	}
	return coregex.Compile(
		`(` + strings.Join(alt, "|") + `)` +
			`(-(DAG|COUNT-[0-9]+|NOT|EMPTY|NEXT|SAME|LABEL))?` +
			`(\{LITERAL\})?: ?([^\n]*)`)
}

// commentRx matches lines where a comment prefix shadows a later check
// prefix, which neutralizes the directive on that line.
func commentRx(opts *Options) (*coregex.Regex, error) {
	if len(opts.CommentPrefixes) == 0 {
		return nil, nil
	}
	calt := make([]string, len(opts.CommentPrefixes))
	for i, p := range opts.CommentPrefixes {
		calt[i] = coregex.QuoteMeta(p)
	}
	palt := make([]string, len(opts.Prefixes))
	for i, p := range opts.Prefixes {
		palt[i] = coregex.QuoteMeta(p)
	}
	return coregex.Compile(
		`(` + strings.Join(calt, "|") + `).*(` + strings.Join(palt, "|") + `)`)
}

// ParseDirectives scans the check file once and returns the directives in
// order. Parse errors are collected so that several can surface per run;
// directives that fail to parse are dropped from the result.
func ParseDirectives(src []byte, opts *Options) ([]*Directive, *Diagnostics) {
	diags := new(Diagnostics)
	dirRx, err := directiveRx(opts)
	if err != nil {
		diags.error(SourceLoc{File: opts.CheckFile, Line: 1}, nil, err)
		return nil, diags
	}
	comRx, err := commentRx(opts)
	if err != nil {
		diags.error(SourceLoc{File: opts.CheckFile, Line: 1}, nil, err)
		return nil, diags
	}

	var dirs []*Directive
	text := strings.ReplaceAll(string(src), "\r\n", "\n")
	for lno, line := range strings.Split(text, "\n") {
		loc := SourceLoc{File: opts.CheckFile, Line: lno + 1}
		if comRx != nil && comRx.MatchString(line) {
			continue
		}
		m := dirRx.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		loc.Col = m[0] + 1
		group := func(i int) string {
			if m[2*i] < 0 {
				return ""
			}
			return line[m[2*i]:m[2*i+1]]
		}
		prefix, suffix, payload := group(1), group(3), group(5)
		literal := m[8] >= 0
		if !opts.StrictWhitespace {
			payload = strings.TrimSpace(payload)
		}

		kind, count := KindCheck, 0
		if strings.HasPrefix(suffix, "COUNT-") {
			kind = KindCount
			count, _ = strconv.Atoi(suffix[6:])
			if count < 1 {
				diags.error(loc, nil, &InvalidCountError{Count: count})
				continue
			}
		} else if suffix != "" {
			kind = kindNames[suffix]
		}

		if kind != KindEmpty && payload == "" {
			diags.errorf(loc, nil,
				"found empty check string with prefix '%s%s:'",
				prefix, kindSuffixOr(suffix))
			continue
		}
		if kind == KindEmpty && payload != "" {
			diags.errorf(loc, nil, "%s-EMPTY cannot have content", prefix)
			continue
		}

		pat, err := compilePattern(payload, literal, opts)
		if err != nil {
			diags.error(loc, nil, err)
			continue
		}
		if kind == KindLabel {
			if caps := pat.Captures(); len(caps) > 0 {
				diags.error(loc, nil, &LabelCaptureError{Name: caps[0]})
				continue
			}
		}
		if len(dirs) == 0 {
			switch kind {
			case KindNext, KindSame, KindEmpty:
				diags.errorf(loc, nil,
					"found '%s%s' without previous '%s: line'",
					prefix, "-"+suffix, prefix)
				continue
			}
		}
		dirs = append(dirs, &Directive{
			Kind: kind, Prefix: prefix, Pat: pat,
			Count: count, Literal: literal, Loc: loc,
		})
	}
	return dirs, diags
}

func kindSuffixOr(suffix string) string {
	if suffix == "" {
		return ""
	}
	return "-" + suffix
}
