package filecheck

import "strings"

// Input is the eagerly buffered, line-split view of the stream under test.
// It owns the line index to byte offset mapping; the matcher keeps the
// cursor itself.
type Input struct {
	name    string
	lines   []string
	offsets []int
}

// NewInput splits data into lines. Line ends are canonicalized, a trailing
// newline does not produce a final empty line.
func NewInput(name string, data []byte) *Input {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	in := &Input{name: name}
	off := 0
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			break
		}
		in.lines = append(in.lines, text[:i])
		in.offsets = append(in.offsets, off)
		off += i + 1
		text = text[i+1:]
	}
	if text != "" {
		in.lines = append(in.lines, text)
		in.offsets = append(in.offsets, off)
	}
	return in
}

func (in *Input) Name() string { return in.name }

func (in *Input) NumLines() int { return len(in.lines) }

// Line returns the text of the 0-based line index.
func (in *Input) Line(i int) string { return in.lines[i] }

// Offset returns the byte offset of the given 0-based line and column.
func (in *Input) Offset(line, col int) int {
	if line >= len(in.offsets) {
		if len(in.offsets) == 0 {
			return 0
		}
		last := len(in.lines) - 1
		return in.offsets[last] + len(in.lines[last])
	}
	return in.offsets[line] + col
}

// Empty reports whether the input holds no lines at all.
func (in *Input) Empty() bool { return len(in.lines) == 0 }

// pos converts a 0-based line/column pair into a 1-based InputPos.
func (in *Input) pos(line, col int) *InputPos {
	return &InputPos{Line: line + 1, Col: col + 1}
}

// span is a claimed byte range on one input line, used to keep CHECK-DAG
// matches of one group from overlapping.
type span struct {
	line       int
	start, end int
}

func (s span) overlaps(line, start, end int) bool {
	return s.line == line && start < s.end && s.start < end
}
