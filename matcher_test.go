package filecheck

import (
	"fmt"
	"strings"
	"testing"
)

// verify parses check against opts and runs the matcher over input.
func verify(t *testing.T, check, input string, mod func(*Options)) *Diagnostics {
	t.Helper()
	opts := NewOptions(t.Name() + ".check")
	if mod != nil {
		mod(opts)
	}
	dirs, diags := ParseDirectives([]byte(check), opts)
	if diags.HasErrors() {
		t.Fatalf("parse errors: %v", diags.All())
	}
	return NewMatcher(opts, dirs, []byte(input)).Run()
}

func wantPass(t *testing.T, check, input string, mod func(*Options)) {
	t.Helper()
	if diags := verify(t, check, input, mod); diags.HasErrors() {
		t.Errorf("unexpected failure: %v", diags.All())
	}
}

func wantFail(t *testing.T, check, input string, mod func(*Options)) *Diagnostics {
	t.Helper()
	diags := verify(t, check, input, mod)
	if !diags.HasErrors() {
		t.Error("expected failure")
	}
	return diags
}

func ExampleMatcher() {
	opts := NewOptions("example.check")
	dirs, diags := ParseDirectives([]byte(
		"CHECK: assign [[V:[a-z]+]]\nCHECK: print [[V]]\n"), opts)
	if diags.HasErrors() {
		fmt.Println(diags.All())
		return
	}
	diags = NewMatcher(opts, dirs, []byte("assign x\nprint x\n")).Run()
	fmt.Println("errors:", diags.HasErrors())
	// Output:
	// errors: false
}

func TestMatcher_check(t *testing.T) {
	t.Run("in-order literals pass", func(t *testing.T) {
		wantPass(t, "CHECK: one\nCHECK: two\nCHECK: three\n",
			"one\nfiller\ntwo\nthree\n", nil)
	})
	t.Run("out of order fails", func(t *testing.T) {
		wantFail(t, "CHECK: two\nCHECK: one\n", "one\ntwo\n", nil)
	})
	t.Run("whitespace canonicalization", func(t *testing.T) {
		wantPass(t, "CHECK: op  1\n", "op \t 1\n", nil)
	})
	t.Run("strict whitespace", func(t *testing.T) {
		wantFail(t, "CHECK: op  1\n", "op 1\n", func(o *Options) {
			o.StrictWhitespace = true
		})
	})
	t.Run("match full lines", func(t *testing.T) {
		mod := func(o *Options) { o.MatchFullLines = true }
		wantPass(t, "CHECK: whole line\n", "whole line\n", mod)
		wantFail(t, "CHECK: whole\n", "whole line\n", mod)
	})
	t.Run("empty input fails", func(t *testing.T) {
		wantFail(t, "CHECK: x\n", "", nil)
	})
	t.Run("allow empty", func(t *testing.T) {
		diags := verify(t, "CHECK-NOT: x\n", "", func(o *Options) {
			o.AllowEmpty = true
		})
		if diags.HasErrors() {
			t.Errorf("unexpected failure: %v", diags.All())
		}
	})
	t.Run("near miss is advisory", func(t *testing.T) {
		// "thing" exists, but only past the region boundary
		diags := wantFail(t,
			"CHECK-LABEL: a:\nCHECK: thing\nCHECK-LABEL: b:\n",
			"a:\nx\nb:\nthing\n", nil)
		var note bool
		for _, d := range diags.All() {
			note = note || d.Sev == SevNote
		}
		if !note {
			t.Error("expected a near-miss note")
		}
	})
}

func TestMatcher_adjacency(t *testing.T) {
	t.Run("label then next lines", func(t *testing.T) {
		wantPass(t,
			"CHECK-LABEL: region_a:\nCHECK-NEXT: op 1\nCHECK-NEXT: op 2\n",
			"region_a:\n    op 1\n    op 2\n", nil)
	})
	t.Run("next must not skip", func(t *testing.T) {
		wantFail(t, "CHECK: a\nCHECK-NEXT: c\n", "a\nb\nc\n", nil)
	})
	t.Run("same line continuation", func(t *testing.T) {
		wantPass(t, "CHECK: left\nCHECK-SAME: right\n", "left middle right\n", nil)
	})
	t.Run("same does not rescan", func(t *testing.T) {
		wantFail(t, "CHECK: right\nCHECK-SAME: left\n", "left right\n", nil)
	})
	t.Run("empty line", func(t *testing.T) {
		wantPass(t, "CHECK: a\nCHECK-EMPTY:\nCHECK-NEXT: b\n", "a\n\nb\n", nil)
		wantFail(t, "CHECK: a\nCHECK-EMPTY:\n", "a\nb\n", nil)
	})
	t.Run("empty cannot match past the input", func(t *testing.T) {
		wantFail(t, "CHECK: a\nCHECK-EMPTY:\n", "a\n", nil)
	})
}

func TestMatcher_captures(t *testing.T) {
	t.Run("capture and back-reference", func(t *testing.T) {
		wantPass(t, "CHECK: assign [[V:[a-z]+]]\nCHECK: print [[V]]\n",
			"assign x\nprint x\n", nil)
		wantFail(t, "CHECK: assign [[V:[a-z]+]]\nCHECK: print [[V]]\n",
			"assign x\nprint y\n", nil)
	})
	t.Run("rebinding wins", func(t *testing.T) {
		wantPass(t,
			"CHECK: a [[V:\\d+]]\nCHECK: b [[V:\\d+]]\nCHECK: c [[V]]\n",
			"a 1\nb 2\nc 2\n", nil)
	})
	t.Run("same line reference", func(t *testing.T) {
		wantPass(t, "CHECK: mov [[R:r\\d+]], [[R]]\n", "mov r3, r3\n", nil)
		wantFail(t, "CHECK: mov [[R:r\\d+]], [[R]]\n", "mov r3, r4\n", nil)
	})
	t.Run("predefined variable", func(t *testing.T) {
		wantPass(t, "CHECK: hello [[WHO]]\n", "hello world\n", func(o *Options) {
			o.Define("WHO=world")
		})
	})
	t.Run("empty capture warns", func(t *testing.T) {
		diags := verify(t, "CHECK: test [[VAL:]]\nCHECK-SAME: [[VAL]]\n",
			"test 123\n", nil)
		if diags.HasErrors() {
			t.Errorf("unexpected failure: %v", diags.All())
		}
		var warned bool
		for _, d := range diags.All() {
			warned = warned || d.Sev == SevWarning
		}
		if !warned {
			t.Error("expected empty capture warning")
		}
	})
	t.Run("empty capture rejected", func(t *testing.T) {
		diags := wantFail(t, "CHECK: test [[VAL:]]\nCHECK-SAME: [[VAL]]\n",
			"test 123\n", func(o *Options) { o.RejectEmptyVars = true })
		var warned, named bool
		for _, d := range diags.All() {
			warned = warned || d.Sev == SevWarning
			named = named || (d.Sev == SevError && strings.Contains(d.Msg, "VAL"))
		}
		if !warned || !named {
			t.Errorf("expected warning and error naming VAL: %v", diags.All())
		}
	})
}

func TestMatcher_numeric(t *testing.T) {
	t.Run("format variants", func(t *testing.T) {
		wantPass(t,
			"CHECK: [[#%.8X,]]\nCHECK: [[#%.3,]]\nCHECK: [[#%.3d,ARG:]] [[ARG]]\n",
			"print 0xFF00FF00\nprint 100\nprint -100 -100\n", nil)
	})
	t.Run("numeric reference re-renders", func(t *testing.T) {
		wantPass(t, "CHECK: addr 0x[[#%.4X,A:]]\nCHECK: load 0x[[#A]]\n",
			"addr 0x00FF\nload 0x00FF\n", nil)
		wantFail(t, "CHECK: addr 0x[[#%.4X,A:]]\nCHECK: load 0x[[#A]]\n",
			"addr 0x00FF\nload 0xFF\n", nil)
	})
	t.Run("signed value round trips", func(t *testing.T) {
		wantPass(t, "CHECK: [[#%d,N:]]\nCHECK: again [[#N]]\n",
			"val -42\nagain -42\n", nil)
	})
}

func TestMatcher_not(t *testing.T) {
	t.Run("clean span passes", func(t *testing.T) {
		wantPass(t, "CHECK: a\nCHECK-NOT: bad\nCHECK: b\n",
			"a\nfine\nb\n", nil)
	})
	t.Run("hit in span fails", func(t *testing.T) {
		wantFail(t, "CHECK: a\nCHECK-NOT: bad\nCHECK: b\n",
			"a\nbad\nb\n", nil)
	})
	t.Run("hit outside span passes", func(t *testing.T) {
		wantPass(t, "CHECK: a\nCHECK-NOT: bad\nCHECK: b\n",
			"bad\na\nb\nbad\n", nil)
	})
	t.Run("trailing not runs to end of input", func(t *testing.T) {
		wantPass(t, "CHECK: a\nCHECK-NOT: bad\n", "a\nfine\n", nil)
		wantFail(t, "CHECK: a\nCHECK-NOT: bad\n", "a\nfine\nbad\n", nil)
	})
	t.Run("not stops at label boundary", func(t *testing.T) {
		wantPass(t, "CHECK: a\nCHECK-NOT: bad\nCHECK-LABEL: next:\n",
			"a\nnext:\nbad\n", nil)
	})
	t.Run("several pending nots", func(t *testing.T) {
		wantFail(t, "CHECK: a\nCHECK-NOT: x\nCHECK-NOT: y\nCHECK: b\n",
			"a\ny\nb\n", nil)
	})
}

func TestMatcher_dag(t *testing.T) {
	const input = "test b = 2\ntest a = 1\ntest c = 3\nadd a + b = c\ntest final\n"
	dag := func(perm [3]int) string {
		var sb strings.Builder
		for _, d := range perm {
			fmt.Fprintf(&sb, "CHECK-DAG: test [[v%d:\\w+]] = %d\n", d, d)
		}
		sb.WriteString("CHECK-DAG: add [[v1]] + [[v2]] = [[v3]]\n")
		sb.WriteString("CHECK: test final\n")
		return sb.String()
	}
	t.Run("any permutation passes", func(t *testing.T) {
		for _, perm := range [][3]int{
			{1, 2, 3}, {1, 3, 2}, {2, 1, 3}, {2, 3, 1}, {3, 1, 2}, {3, 2, 1},
		} {
			if diags := verify(t, dag(perm), input, nil); diags.HasErrors() {
				t.Errorf("perm %v failed: %v", perm, diags.All())
			}
		}
	})
	t.Run("no overlapping matches", func(t *testing.T) {
		wantFail(t, "CHECK-DAG: test\nCHECK-DAG: test\n", "test once\n", nil)
	})
	t.Run("two matches on one line", func(t *testing.T) {
		wantPass(t, "CHECK-DAG: use a\nCHECK-DAG: use b\n", "use a use b\n", nil)
	})
	t.Run("group bounds later checks", func(t *testing.T) {
		wantFail(t, "CHECK-DAG: late\nCHECK-DAG: early\nCHECK: between\n",
			"early\nbetween\nlate\n", nil)
	})
	t.Run("interleaved not splits the group", func(t *testing.T) {
		check := "CHECK-DAG: a\nCHECK-NOT: sep\nCHECK-DAG: b\n"
		wantPass(t, check, "a\nb\n", nil)
		wantFail(t, check, "a\nsep\nb\n", nil)
		// b before the NOT boundary cannot be reordered back
		wantFail(t, check, "b\na\n", nil)
	})
	t.Run("unmatched dag is named", func(t *testing.T) {
		diags := wantFail(t,
			"CHECK-DAG: test 1\nCHECK-NOT: test final\nCHECK-DAG: test 9\nCHECK: test final\n",
			"test 1\ntest final\ntest 2\n", nil)
		var named bool
		for _, d := range diags.All() {
			named = named || (d.Sev == SevError && strings.Contains(d.Msg, "CHECK-DAG"))
		}
		if !named {
			t.Errorf("expected a diagnostic naming the DAG directive: %v", diags.All())
		}
	})
}

func TestMatcher_count(t *testing.T) {
	t.Run("exact repetitions", func(t *testing.T) {
		wantPass(t, "CHECK-COUNT-3: op\nCHECK: done\n",
			"op 1\nop 2\nop 3\ndone\n", nil)
	})
	t.Run("too few repetitions", func(t *testing.T) {
		wantFail(t, "CHECK-COUNT-3: op\n", "op 1\nop 2\nend\n", nil)
	})
	t.Run("search domain is forward", func(t *testing.T) {
		wantPass(t, "CHECK-COUNT-2: op\n", "intro\nop 1\nop 2\n", nil)
	})
	t.Run("cursor lands after the run", func(t *testing.T) {
		wantFail(t, "CHECK-COUNT-2: op\nCHECK: op\n", "op 1\nop 2\n", nil)
	})
}

func TestMatcher_label(t *testing.T) {
	const input = `foo:
  mov r1
bar:
  mov r2
`
	t.Run("partitions regions", func(t *testing.T) {
		wantPass(t,
			"CHECK-LABEL: foo:\nCHECK: mov r1\nCHECK-LABEL: bar:\nCHECK: mov r2\n",
			input, nil)
	})
	t.Run("directive cannot cross boundary", func(t *testing.T) {
		wantFail(t,
			"CHECK-LABEL: foo:\nCHECK: mov r2\nCHECK-LABEL: bar:\n",
			input, nil)
	})
	t.Run("missing label", func(t *testing.T) {
		wantFail(t, "CHECK-LABEL: baz:\nCHECK: mov r9\n", input, nil)
	})
	t.Run("scoped variables", func(t *testing.T) {
		check := "CHECK-LABEL: foo:\nCHECK: mov [[R:r\\d]]\n" +
			"CHECK-LABEL: bar:\nCHECK: mov [[R]]\n"
		// without scoping R=r1 stays visible and mismatches r2
		wantFail(t, check, input, nil)
		// with scoping the reference is unbound
		diags := wantFail(t, check, input, func(o *Options) {
			o.EnableVarScope = true
		})
		var unbound bool
		for _, d := range diags.All() {
			unbound = unbound || strings.Contains(d.Msg, "referenced before binding")
		}
		if !unbound {
			t.Errorf("expected unbound variable error: %v", diags.All())
		}
	})
	t.Run("global names survive scoping", func(t *testing.T) {
		wantPass(t,
			"CHECK-LABEL: foo:\nCHECK: mov [[$R:r\\d]]\nCHECK-LABEL: bar:\nCHECK: {{.*}}\nCHECK-NOT: [[$R]]x\n",
			input, func(o *Options) { o.EnableVarScope = true })
	})
}

func TestMatcher_literalDirective(t *testing.T) {
	wantPass(t, "CHECK{LITERAL}: val {{x}} [[y]]\n", "val {{x}} [[y]]\n", nil)
	wantFail(t, "CHECK{LITERAL}: {{[a-z]+}}\n", "abc\n", nil)
}

func TestMatcher_features(t *testing.T) {
	mod := func(o *Options) { o.Features = FeatMLIRRegexCls }
	wantPass(t, "CHECK: {{\\V}} = add\n", "%foo#1 = add\n", mod)
	wantFail(t, "CHECK: {{\\V}} = add\n", "!foo = add\n", mod)
}

func TestMatcher_idempotent(t *testing.T) {
	opts := NewOptions(t.Name())
	dirs, diags := ParseDirectives([]byte("CHECK: a\nCHECK-NOT: x\nCHECK: b\n"), opts)
	if diags.HasErrors() {
		t.Fatal(diags.All())
	}
	input := []byte("a\nx\nb\n")
	first := NewMatcher(opts, dirs, input).Run()
	second := NewMatcher(opts, dirs, input).Run()
	if first.Len() != second.Len() || first.HasErrors() != second.HasErrors() {
		t.Errorf("runs differ: %v vs %v", first.All(), second.All())
	}
	for i, d := range first.All() {
		if d.String() != second.All()[i].String() {
			t.Errorf("diagnostic %d differs: %s vs %s",
				i, d.String(), second.All()[i].String())
		}
	}
}
