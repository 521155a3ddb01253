package builder

import (
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	builderrors "github.com/narvanalabs/nixtrace/internal/builder/errors"
	"github.com/narvanalabs/nixtrace/internal/watch"
)

func TestFoldLogData(t *testing.T) {
	root := t.TempDir()
	foo := filepath.Join(root, "foo")
	if err := os.Mkdir(foo, 0755); err != nil {
		t.Fatalf("creating dir: %v", err)
	}
	shell := filepath.Join(root, "shell.nix")

	data := []LogDatum{
		SourceFileEvaluated{Path: shell},
		SourceFileEvaluated{Path: foo},
		CopiedToStore{Path: filepath.Join(root, "src")},
		ReadRecursively{Path: filepath.Join(root, "pins.json")},
		ReadDirectoryListing{Path: filepath.Join(root, "overlays")},
		PlainText{Text: "warning: something"},
		UndecodableText{Raw: "\xab\xcd"},
		SourceFileEvaluated{Path: shell},
	}

	paths, logs := FoldLogData(data)

	wantPaths := []watch.Entry{
		watch.NewSingle(shell),
		watch.NewSingle(filepath.Join(foo, "default.nix")),
		watch.NewRecursive(filepath.Join(root, "src")),
		watch.NewRecursive(filepath.Join(root, "pins.json")),
		watch.NewSingle(filepath.Join(root, "overlays")),
		watch.NewSingle(shell),
	}
	if !reflect.DeepEqual(paths, wantPaths) {
		t.Errorf("paths = %v\nwant    %v", paths, wantPaths)
	}

	wantLogs := []builderrors.LogLine{
		builderrors.LogLine("warning: something"),
		builderrors.LogLine("\xab\xcd"),
	}
	if !reflect.DeepEqual(logs, wantLogs) {
		t.Errorf("logs = %q, want %q", logs, wantLogs)
	}
}

func TestFoldLogData_EvaluatedDirectoryBecomesDefaultNix(t *testing.T) {
	foo := filepath.Join(t.TempDir(), "foo")
	if err := os.Mkdir(foo, 0755); err != nil {
		t.Fatalf("creating dir: %v", err)
	}

	paths, _ := FoldLogData([]LogDatum{ClassifyLine([]byte("evaluating file '" + foo + "'"))})
	if len(paths) != 1 {
		t.Fatalf("paths = %v", paths)
	}
	if paths[0] != watch.NewSingle(filepath.Join(foo, "default.nix")) {
		t.Errorf("paths[0] = %v, want single %s/default.nix", paths[0], foo)
	}
}

func TestFoldLogData_CopiedSourceWatchesSource(t *testing.T) {
	line := "copied source '/home/user/dir' -> '/nix/store/9krlzvny65gdc8s7kpb6lkx8cd02c25b-dir'"
	paths, _ := FoldLogData([]LogDatum{ClassifyLine([]byte(line))})

	want := []watch.Entry{watch.NewRecursive("/home/user/dir")}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

// Undecodable lines reach the error message with their bytes intact; only
// the rendering is lossy.
func TestFoldLogData_UndecodableRoundTripsIntoExitError(t *testing.T) {
	raw := []byte("\xab\xbc\xcd\xde\xde\xef")
	_, logs := FoldLogData([]LogDatum{ClassifyLine(raw)})

	cmd := exec.Command("sh", "-c", "exit 1")
	_ = cmd.Run()
	err := builderrors.NewExitError(cmd, cmd.ProcessState, logs)

	if string(err.Logs[0]) != string(raw) {
		t.Errorf("log line = %q, want %q", err.Logs[0], raw)
	}
	if !strings.Contains(err.Error(), strings.ToValidUTF8(string(raw), "�")) {
		t.Errorf("error message does not render the line: %q", err.Error())
	}
}

func TestFoldLogData_Empty(t *testing.T) {
	paths, logs := FoldLogData(nil)
	if paths != nil || logs != nil {
		t.Errorf("FoldLogData(nil) = %v, %v", paths, logs)
	}
}
