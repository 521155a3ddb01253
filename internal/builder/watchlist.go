package builder

import (
	"fmt"
	"os"
	"path/filepath"

	builderrors "github.com/narvanalabs/nixtrace/internal/builder/errors"
	"github.com/narvanalabs/nixtrace/internal/watch"
)

// FoldLogData turns classified stderr lines into the paths to watch and the
// lines to show the user if the evaluation fails. Paths keep the order they
// were reported in and are not deduplicated.
func FoldLogData(data []LogDatum) ([]watch.Entry, []builderrors.LogLine) {
	var paths []watch.Entry
	var logs []builderrors.LogLine

	for _, d := range data {
		switch d := d.(type) {
		case CopiedToStore:
			paths = append(paths, watch.NewRecursive(d.Path))
		case ReadRecursively:
			paths = append(paths, watch.NewRecursive(d.Path))
		case ReadDirectoryListing:
			paths = append(paths, watch.NewSingle(d.Path))
		case SourceFileEvaluated:
			paths = append(paths, watch.NewSingle(resolveDefaultNix(d.Path)))
		case PlainText:
			logs = append(logs, builderrors.LogLine(d.Text))
		case UndecodableText:
			logs = append(logs, builderrors.LogLine(d.Raw))
		default:
			panic(fmt.Sprintf("unhandled log datum %T", d))
		}
	}
	return paths, logs
}

// resolveDefaultNix mirrors Nix's handling of `import ./foo` where foo is a
// directory: Nix reads foo/default.nix but reports foo. Evaluated files are
// the only lines that name a directory this way.
func resolveDefaultNix(path string) string {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return filepath.Join(path, "default.nix")
	}
	return path
}
