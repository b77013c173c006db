package filecheck

import "testing"

func TestInput(t *testing.T) {
	t.Run("line split", func(t *testing.T) {
		in := NewInput(t.Name(), []byte("a\nbb\n\nccc"))
		if in.NumLines() != 4 {
			t.Fatalf("got %d lines", in.NumLines())
		}
		for i, want := range []string{"a", "bb", "", "ccc"} {
			if in.Line(i) != want {
				t.Errorf("line %d: got %q, want %q", i, in.Line(i), want)
			}
		}
	})
	t.Run("trailing newline adds no line", func(t *testing.T) {
		in := NewInput(t.Name(), []byte("a\nb\n"))
		if in.NumLines() != 2 {
			t.Errorf("got %d lines", in.NumLines())
		}
	})
	t.Run("crlf is canonicalized", func(t *testing.T) {
		in := NewInput(t.Name(), []byte("a\r\nb\r\n"))
		if in.NumLines() != 2 || in.Line(0) != "a" {
			t.Errorf("got %d lines, first %q", in.NumLines(), in.Line(0))
		}
	})
	t.Run("offsets", func(t *testing.T) {
		in := NewInput(t.Name(), []byte("ab\ncd\n"))
		if o := in.Offset(1, 1); o != 4 {
			t.Errorf("got offset %d, want 4", o)
		}
		if o := in.Offset(2, 0); o != 5 {
			t.Errorf("past-end offset: got %d, want 5", o)
		}
	})
	t.Run("empty", func(t *testing.T) {
		if !NewInput(t.Name(), nil).Empty() {
			t.Error("expected empty input")
		}
		if NewInput(t.Name(), []byte("\n")).Empty() {
			t.Error("one empty line is not empty input")
		}
	})
}

func Test_span(t *testing.T) {
	s := span{line: 3, start: 2, end: 5}
	for _, tc := range []struct {
		line, start, end int
		want             bool
	}{
		{3, 0, 2, false},
		{3, 4, 6, true},
		{3, 0, 3, true},
		{3, 5, 7, false},
		{4, 2, 5, false},
	} {
		if got := s.overlaps(tc.line, tc.start, tc.end); got != tc.want {
			t.Errorf("overlaps(%d,%d,%d) = %v, want %v",
				tc.line, tc.start, tc.end, got, tc.want)
		}
	}
}
