package filecheck

import "strings"

// Feature toggles activated via the FILECHECK_FEATURE_ENABLE environment
// variable.
type Features uint

const (
	// FeatMLIRRegexCls enables the \V regex class matching MLIR SSA value
	// names inside {{...}} blocks.
	FeatMLIRRegexCls Features = 1 << iota
)

// ParseFeatures splits a comma separated feature list as found in
// FILECHECK_FEATURE_ENABLE. Unknown tokens are returned so the caller can
// warn about them.
func ParseFeatures(s string) (f Features, unknown []string) {
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		switch tok {
		case "":
		case "MLIR_REGEX_CLS":
			f |= FeatMLIRRegexCls
		default:
			unknown = append(unknown, tok)
		}
	}
	return f, unknown
}

// Options configures a check run. The zero value is not usable, use
// NewOptions to get the defaults.
type Options struct {
	// Name of the check file, used in diagnostics.
	CheckFile string
	// Name of the input, used in diagnostics. "-" reads standard input.
	InputFile string
	// Directive prefixes, e.g. "CHECK".
	Prefixes []string
	// Prefixes that neutralize a directive on their line.
	CommentPrefixes []string

	MatchFullLines   bool
	StrictWhitespace bool
	EnableVarScope   bool
	AllowEmpty       bool
	RejectEmptyVars  bool

	// Pre-bound textual variables from -D<NAME=VALUE>.
	Defines map[string]string

	Features Features
}

// NewOptions returns options with the default check and comment prefixes.
func NewOptions(checkFile string) *Options {
	return &Options{
		CheckFile:       checkFile,
		InputFile:       "-",
		Prefixes:        []string{"CHECK"},
		CommentPrefixes: []string{"COM", "RUN"},
	}
}

// Define records a -D style NAME=VALUE pre-binding. Returns false if s has
// no '=' or an empty name.
func (o *Options) Define(s string) bool {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return false
	}
	if o.Defines == nil {
		o.Defines = make(map[string]string)
	}
	o.Defines[name] = value
	return true
}
