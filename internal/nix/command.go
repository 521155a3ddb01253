package nix

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"

	builderrors "github.com/narvanalabs/nixtrace/internal/builder/errors"
)

// Drained holds what was read from a finished process.
type Drained[O, E any] struct {
	Stdout []O
	Stderr []E
	State  *os.ProcessState
}

type readResult[T any] struct {
	lines []T
	err   error
}

// RunDrained starts cmd with stdin closed and decodes every line of its
// stdout with parseOut and of its stderr with parseErr.
//
// Both streams are read on their own goroutine, concurrently with each
// other and with the wait for the process to exit. A process that fills one
// pipe while nobody reads it would otherwise block forever.
//
// A non-zero exit is not an error here; callers inspect State. Returned
// errors are always builderrors.BuildError values.
func RunDrained[O, E any](cmd *exec.Cmd, parseOut func([]byte) O, parseErr func([]byte) E) (*Drained[O, E], error) {
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, builderrors.NewIoError(err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, builderrors.NewIoError(err)
	}

	cmd.Stdin = nil
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		outR.Close()
		outW.Close()
		errR.Close()
		errW.Close()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, builderrors.NewSpawnError(cmd, err)
		}
		return nil, builderrors.NewIoError(err)
	}

	// The child holds its own copies; ours must go or the readers never see EOF.
	outW.Close()
	errW.Close()

	stdoutCh := make(chan readResult[O], 1)
	stderrCh := make(chan readResult[E], 1)
	go func() {
		defer outR.Close()
		lines, err := readLines(outR, parseOut)
		stdoutCh <- readResult[O]{lines: lines, err: err}
	}()
	go func() {
		defer errR.Close()
		lines, err := readLines(errR, parseErr)
		stderrCh <- readResult[E]{lines: lines, err: err}
	}()

	waitErr := cmd.Wait()
	stdout := <-stdoutCh
	stderr := <-stderrCh

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, builderrors.NewIoError(waitErr)
		}
	}
	if stdout.err != nil {
		return nil, builderrors.NewIoError(stdout.err)
	}
	if stderr.err != nil {
		return nil, builderrors.NewIoError(stderr.err)
	}

	return &Drained[O, E]{
		Stdout: stdout.lines,
		Stderr: stderr.lines,
		State:  cmd.ProcessState,
	}, nil
}

// readLines splits r at '\n', dropping the line terminator ("\n" or "\r\n").
// Lines are handed to parse as raw bytes; they need not be valid UTF-8.
func readLines[T any](r io.Reader, parse func([]byte) T) ([]T, error) {
	br := bufio.NewReader(r)
	var out []T
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimSuffix(line, []byte("\n"))
			line = bytes.TrimSuffix(line, []byte("\r"))
			out = append(out, parse(line))
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

// NonEmpty drops blank lines from decoded stdout.
func NonEmpty[T ~string](lines []T) []T {
	out := lines[:0:0]
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
