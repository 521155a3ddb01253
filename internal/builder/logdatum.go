package builder

import (
	"regexp"
	"unicode/utf8"
)

// LogDatum is the classification of one line of `nix-instantiate -vv`
// stderr. The set of implementations is closed; consumers switch over
// SourceFileEvaluated, CopiedToStore, ReadRecursively, ReadDirectoryListing,
// PlainText and UndecodableText.
type LogDatum interface {
	isLogDatum()
}

// SourceFileEvaluated is a .nix file opened by the evaluator.
type SourceFileEvaluated struct{ Path string }

// CopiedToStore is a file or directory copied verbatim into the store.
type CopiedToStore struct{ Path string }

// ReadRecursively is a builtins.readFile or builtins.filterSource call at
// evaluation time. The whole subtree must be watched.
type ReadRecursively struct{ Path string }

// ReadDirectoryListing is a builtins.readDir call at evaluation time.
// Only the listing of the directory must be watched, not its children.
type ReadDirectoryListing struct{ Path string }

// PlainText is any other line.
type PlainText struct{ Text string }

// UndecodableText is a line that is not valid UTF-8. Raw holds the
// original bytes unchanged.
type UndecodableText struct{ Raw string }

// Bytes returns the original line.
func (u UndecodableText) Bytes() []byte { return []byte(u.Raw) }

func (SourceFileEvaluated) isLogDatum()  {}
func (CopiedToStore) isLogDatum()        {}
func (ReadRecursively) isLogDatum()      {}
func (ReadDirectoryListing) isLogDatum() {}
func (PlainText) isLogDatum()            {}
func (UndecodableText) isLogDatum()      {}

var (
	// .nix files opened for evaluation.
	evalFileRe = regexp.MustCompile(`^evaluating file '(?P<source>.*)'$`)

	// Printed when a source path is copied to the store, for files and for
	// directories used as path values (`src = ./dir`).
	copiedSourceRe = regexp.MustCompile(`^copied source '(?P<source>.*)' -> '(?:.*)'$`)

	// Traced by logged-evaluation.nix for builtins.readFile and builtins.filterSource.
	lorriReadRe = regexp.MustCompile(`^trace: lorri read: '(?P<source>.*)'$`)

	// Traced by logged-evaluation.nix for builtins.readDir.
	lorriReadDirRe = regexp.MustCompile(`^trace: lorri readdir: '(?P<source>.*)'$`)
)

// ClassifyLine turns one stderr line into a LogDatum. It never fails and
// never touches the filesystem.
func ClassifyLine(line []byte) LogDatum {
	if !utf8.Valid(line) {
		return UndecodableText{Raw: string(line)}
	}
	s := string(line)

	// Evaluated files are by far the most common lines, so check them first.
	if src, ok := capture(evalFileRe, s); ok {
		return SourceFileEvaluated{Path: src}
	}
	if src, ok := capture(copiedSourceRe, s); ok {
		return CopiedToStore{Path: src}
	}
	if src, ok := capture(lorriReadRe, s); ok {
		return ReadRecursively{Path: src}
	}
	if src, ok := capture(lorriReadDirRe, s); ok {
		return ReadDirectoryListing{Path: src}
	}
	return PlainText{Text: s}
}

func capture(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[re.SubexpIndex("source")], true
}
