/*
Package filecheck implements a directive-driven output verifier in the
style of LLVM's FileCheck. It reads a check file containing embedded
directives (lines such as "// CHECK: foo", "// CHECK-NEXT: bar", …) and a
separate input stream, and decides whether the input stream conforms to the
sequence of expectations expressed by those directives.

# Directives

A check file is plain text with directive lines scattered through it,
typically as comments in whatever source language is under test:

	// CHECK-LABEL: define @foo
	// CHECK: entry:
	// CHECK-NEXT: %0 = add i32 [[X:%[a-z0-9]+]], 1
	// CHECK-NEXT: ret i32 [[X]]

CHECK looks for the next line anywhere forward in the input that matches.
CHECK-NEXT requires the match on the line immediately following the
previous match. CHECK-SAME continues matching on the same line.
CHECK-NOT asserts that no line in its span matches. CHECK-DAG matches a
group of directives in any order, forbidding overlap. CHECK-LABEL
partitions the input into regions. CHECK-COUNT-<n> requires exactly n
consecutive matches. CHECK-EMPTY requires a blank line.

# Variables

"[[NAME:REGEX]]" captures the matched text of REGEX under NAME; a later
"[[NAME]]" must equal that capture exactly. "[[#fmt,NAME:]]" captures a
numeric value rendered with a format specifier; "[[#NAME]]" re-renders it.
"{{REGEX}}" embeds a raw regular expression with no capture.

# Usage

	directives, diags := filecheck.ParseDirectives(checkFileBytes, opts)
	if diags.HasErrors() {
		// report parse errors
	}
	m := filecheck.NewMatcher(opts, directives, inputBytes)
	diags = m.Run()
	if diags.HasErrors() {
		// report diags
	}
*/
package filecheck
