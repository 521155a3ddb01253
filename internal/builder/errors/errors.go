// Package errors provides the failure taxonomy for instrumented Nix builds.
package errors

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Error categories for build failures.
const (
	// CategoryInfrastructure groups failures of the environment the build runs in.
	CategoryInfrastructure = "infrastructure"
	// CategoryInput groups failures the user fixes by changing the Nix input.
	CategoryInput = "input"
)

// Error codes for specific failure types.
const (
	CodeSystemIO        = "SYSTEM_IO"
	CodeSpawnFailed     = "PROCESS_SPAWN_FAILED"
	CodeExitedNonZero   = "PROCESS_EXITED_NON_ZERO"
	CodeMalformedOutput = "MALFORMED_OUTPUT"
)

// BuildErrorResponse is the serializable form of a BuildError handed to
// callers that report failures outside the process.
type BuildErrorResponse struct {
	// Error is the rendered error message.
	Error string `json:"error"`

	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Category is either infrastructure or input.
	Category string `json:"category"`

	// Actionable reports whether the user can do something about it.
	Actionable bool `json:"actionable"`

	// Command is the command line that failed, if any.
	Command string `json:"command,omitempty"`

	// Logs are the captured diagnostic lines, lossily converted to text.
	Logs []string `json:"logs,omitempty"`

	// Suggestions provides remediation hints for actionable errors.
	Suggestions []string `json:"suggestions,omitempty"`
}

// BuildError is a failure of an instrumented instantiation or build.
//
// The set of implementations is closed: *IoError, *SpawnError, *ExitError
// and *OutputError. Consumers switch over those types.
type BuildError interface {
	error

	// Code returns the machine-readable error code.
	Code() string

	// Category returns CategoryInfrastructure or CategoryInput.
	Category() string

	// IsActionable reports whether there is something the user can do
	// about this error.
	IsActionable() bool

	// Suggestions returns remediation hints, empty for non-actionable errors.
	Suggestions() []string

	isBuildError()
}

// LogLine is one line of diagnostic output, byte-exact. It may not be valid UTF-8.
type LogLine []byte

// String converts the line to text for display, replacing invalid UTF-8.
func (l LogLine) String() string {
	return strings.ToValidUTF8(string(l), "�")
}

// IoError is a system-level I/O failure during the build.
type IoError struct {
	Msg string
	Err error
}

// NewIoError wraps an underlying I/O error.
func NewIoError(err error) *IoError {
	return &IoError{Msg: err.Error(), Err: err}
}

func (e *IoError) Error() string         { return "I/O error: " + e.Msg }
func (e *IoError) Unwrap() error         { return e.Err }
func (e *IoError) Code() string          { return CodeSystemIO }
func (e *IoError) Category() string      { return CategoryInfrastructure }
func (e *IoError) IsActionable() bool    { return false }
func (e *IoError) Suggestions() []string { return nil }
func (*IoError) isBuildError()           {}

// SpawnError means a Nix process could not be started. Usually the
// executable is not on $PATH.
type SpawnError struct {
	Cmd string
	Msg string
	Err error
}

// NewSpawnError records the command that could not be started.
func NewSpawnError(cmd *exec.Cmd, err error) *SpawnError {
	return &SpawnError{Cmd: CommandLine(cmd), Msg: err.Error(), Err: err}
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn Nix process. Is Nix installed and on the $PATH?\n$ %s\n%s", e.Cmd, e.Msg)
}

func (e *SpawnError) Unwrap() error      { return e.Err }
func (e *SpawnError) Code() string       { return CodeSpawnFailed }
func (e *SpawnError) Category() string   { return CategoryInfrastructure }
func (e *SpawnError) IsActionable() bool { return true }

func (e *SpawnError) Suggestions() []string {
	return []string{
		"Install Nix or make sure its binaries are on your $PATH",
	}
}

func (*SpawnError) isBuildError() {}

// ExitError means the Nix process ran and returned a non-zero status.
type ExitError struct {
	Cmd string

	// Status is the exit code, nil if the process was killed by a signal.
	Status *int

	// Logs are the plain diagnostic lines of the failed process.
	Logs []LogLine
}

// NewExitError builds an ExitError from a finished process.
// It panics if state reports success.
func NewExitError(cmd *exec.Cmd, state *os.ProcessState, logs []LogLine) *ExitError {
	if state == nil || state.Success() {
		panic("cannot create an exit error from a successful status code")
	}
	e := &ExitError{Cmd: CommandLine(cmd), Logs: logs}
	if code := state.ExitCode(); code >= 0 {
		e.Status = &code
	}
	return e
}

func (e *ExitError) Error() string {
	status := "<unknown>"
	if e.Status != nil {
		status = strconv.Itoa(*e.Status)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Nix process returned exit code %s.\n$ %s\n", status, e.Cmd)
	for _, l := range e.Logs {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (e *ExitError) Code() string       { return CodeExitedNonZero }
func (e *ExitError) Category() string   { return CategoryInput }
func (e *ExitError) IsActionable() bool { return true }

func (e *ExitError) Suggestions() []string {
	return []string{
		"Fix the Nix expression; the evaluation or build log above shows where it failed",
	}
}

func (*ExitError) isBuildError() {}

// OutputError means the Nix process succeeded but its output did not match
// what was expected, for example the wrong number of outputs.
type OutputError struct {
	Msg string
}

// NewOutputError formats an OutputError message.
func NewOutputError(format string, args ...any) *OutputError {
	return &OutputError{Msg: fmt.Sprintf(format, args...)}
}

func (e *OutputError) Error() string      { return e.Msg }
func (e *OutputError) Code() string       { return CodeMalformedOutput }
func (e *OutputError) Category() string   { return CategoryInput }
func (e *OutputError) IsActionable() bool { return true }

func (e *OutputError) Suggestions() []string {
	return []string{
		"Check that the expression evaluates to exactly one derivation",
	}
}

func (*OutputError) isBuildError() {}

// CommandLine renders a command for display, quoting arguments that
// contain whitespace or quotes.
func CommandLine(cmd *exec.Cmd) string {
	if cmd == nil {
		return ""
	}
	parts := make([]string, 0, len(cmd.Args))
	for _, a := range cmd.Args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'") {
			a = strconv.Quote(a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// AsBuildError attempts to extract a BuildError from an error chain.
func AsBuildError(err error) (BuildError, bool) {
	var be BuildError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// ToErrorResponse converts any error to a BuildErrorResponse.
// Errors outside the taxonomy are reported as non-actionable I/O failures.
func ToErrorResponse(err error) *BuildErrorResponse {
	be, ok := AsBuildError(err)
	if !ok {
		be = NewIoError(err)
	}

	resp := &BuildErrorResponse{
		Error:       be.Error(),
		Code:        be.Code(),
		Category:    be.Category(),
		Actionable:  be.IsActionable(),
		Suggestions: be.Suggestions(),
	}

	switch e := be.(type) {
	case *IoError, *OutputError:
	case *SpawnError:
		resp.Command = e.Cmd
	case *ExitError:
		resp.Command = e.Cmd
		for _, l := range e.Logs {
			resp.Logs = append(resp.Logs, l.String())
		}
	}
	return resp
}
