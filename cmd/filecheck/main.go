// A FileCheck-style command line verifier: reads a check file with embedded
// directives and decides whether an input stream conforms to them.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AntonLydike/filecheck"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	noteColor = color.New(color.FgCyan)
)

var rootCmd = struct {
	cobra.Command
	prefix          string
	prefixes        []string
	commentPrefixes []string
	inputFile       string
	matchFullLines  bool
	strictWS        bool
	varScope        bool
	allowEmpty      bool
	rejectEmptyVars bool
	dumpInput       string
	defines         []string
}{
	Command: cobra.Command{
		Use:   "filecheck [flags] <check-file>",
		Short: "Verify an input stream against check-file directives",
		Args:  cobra.ExactArgs(1),
		FParseErrWhitelist: cobra.FParseErrWhitelist{
			UnknownFlags: true,
		},
	},
	inputFile: "-",
	dumpInput: "never",
}

func init() {
	rootCmd.Run = run
	f := rootCmd.Flags()
	f.StringVar(&rootCmd.prefix, "check-prefix", "",
		"Set the directive prefix")
	f.StringSliceVar(&rootCmd.prefixes, "check-prefixes", nil,
		"Set several directive prefixes")
	f.StringSliceVar(&rootCmd.commentPrefixes, "comment-prefixes", nil,
		"Set prefixes that neutralize directives on their line")
	f.StringVar(&rootCmd.inputFile, "input-file", rootCmd.inputFile,
		"Read the input from this file instead of standard input")
	f.BoolVar(&rootCmd.matchFullLines, "match-full-lines", false,
		"Anchor positive patterns to whole lines")
	f.BoolVar(&rootCmd.strictWS, "strict-whitespace", false,
		"Disable whitespace canonicalization")
	f.BoolVar(&rootCmd.varScope, "enable-var-scope", false,
		"Scope variables to their label region")
	f.BoolVar(&rootCmd.allowEmpty, "allow-empty", false,
		"Do not fail on empty input")
	f.BoolVar(&rootCmd.rejectEmptyVars, "reject-empty-vars", false,
		"Promote the empty-capture warning to an error")
	f.StringVar(&rootCmd.dumpInput, "dump-input", rootCmd.dumpInput,
		"Dump the input on 'fail', or 'never'")
	f.StringArrayVarP(&rootCmd.defines, "define", "D", nil,
		"Pre-bind a textual variable NAME=VALUE")
}

func main() {
	log.SetFlags(0)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) {
	opts := buildOpts(args[0])

	checkSrc, err := os.ReadFile(opts.CheckFile)
	if err != nil {
		log.Fatal(err)
	}
	input := readInput(opts.InputFile)

	dirs, pdiags := filecheck.ParseDirectives(checkSrc, opts)
	render(pdiags)
	if pdiags.HasErrors() {
		os.Exit(1)
	}
	if len(dirs) == 0 {
		log.Printf("error: no check strings found with prefix %s:",
			opts.Prefixes[0])
		os.Exit(2)
	}

	m := filecheck.NewMatcher(opts, dirs, input)
	diags := m.Run()
	render(diags)
	if diags.HasErrors() {
		if rootCmd.dumpInput == "fail" {
			dumpInput(m.Input())
		}
		os.Exit(1)
	}
}

func buildOpts(checkFile string) *filecheck.Options {
	opts := filecheck.NewOptions(checkFile)
	if rootCmd.prefix != "" {
		opts.Prefixes = []string{rootCmd.prefix}
	}
	if len(rootCmd.prefixes) > 0 {
		opts.Prefixes = rootCmd.prefixes
	}
	if len(rootCmd.commentPrefixes) > 0 {
		opts.CommentPrefixes = rootCmd.commentPrefixes
	}
	opts.InputFile = rootCmd.inputFile
	opts.MatchFullLines = rootCmd.matchFullLines
	opts.StrictWhitespace = rootCmd.strictWS
	opts.EnableVarScope = rootCmd.varScope
	opts.AllowEmpty = rootCmd.allowEmpty
	opts.RejectEmptyVars = rootCmd.rejectEmptyVars
	switch rootCmd.dumpInput {
	case "never", "fail":
	default:
		log.Printf("%s: unsupported --dump-input mode '%s', using 'never'",
			warnColor.Sprint("warning"), rootCmd.dumpInput)
		rootCmd.dumpInput = "never"
	}
	for _, d := range rootCmd.defines {
		if !opts.Define(d) {
			log.Printf("%s: ignoring malformed -D definition '%s'",
				warnColor.Sprint("warning"), d)
		}
	}
	feats, unknown := filecheck.ParseFeatures(
		os.Getenv("FILECHECK_FEATURE_ENABLE"))
	for _, tok := range unknown {
		log.Printf("%s: unknown feature '%s' in FILECHECK_FEATURE_ENABLE",
			warnColor.Sprint("warning"), tok)
	}
	opts.Features = feats
	return opts
}

func readInput(name string) []byte {
	if name == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatal(err)
		}
		return data
	}
	data, err := os.ReadFile(name)
	if err != nil {
		log.Fatal(err)
	}
	return data
}

func render(ds *filecheck.Diagnostics) {
	for _, d := range ds.All() {
		var sev string
		switch d.Sev {
		case filecheck.SevError:
			sev = errColor.Sprint("error")
		case filecheck.SevWarning:
			sev = warnColor.Sprint("warning")
		default:
			sev = noteColor.Sprint("note")
		}
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", d.Loc, sev, d.Msg)
		if d.Pos != nil {
			fmt.Fprintf(os.Stderr, "  input %s\n", d.Pos)
		}
	}
}

func dumpInput(in *filecheck.Input) {
	fmt.Fprintf(os.Stderr, "full input was:\n")
	for i := 0; i < in.NumLines(); i++ {
		fmt.Fprintf(os.Stderr, "%6d: %s\n", i+1, in.Line(i))
	}
}
