// Package exec runs external processes (ssh-keygen, git, gpg, installers)
// behind a small Runner interface so callers can be tested with a fake.
package exec

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/teaxyz/teabase/internal/errors"
)

// Command describes one process invocation.
type Command struct {
	Name  string
	Args  []string
	Env   []string // Extra KEY=VALUE pairs appended to the current environment
	Dir   string
	Stdin io.Reader

	// Stream, when set, receives live stdout/stderr in addition to capture.
	Stream io.Writer
}

// String renders the command for logs. Arguments are not quoted.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is what a finished process reported.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Success reports whether the process exited zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes commands. A non-zero exit is reported through
// Result.ExitCode with a nil error; errors mean the process couldn't be
// started or ran out of time.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// LocalRunner runs commands on this machine.
type LocalRunner struct{}

// NewLocalRunner returns a Runner backed by os/exec.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

// Run executes cmd and captures its output.
func (LocalRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	if cmd.Dir != "" {
		c.Dir = cmd.Dir
	}
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdin = cmd.Stdin

	var stdout, stderr bytes.Buffer
	if cmd.Stream != nil {
		c.Stdout = io.MultiWriter(&stdout, cmd.Stream)
		c.Stderr = io.MultiWriter(&stderr, cmd.Stream)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	runErr := c.Run()
	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, errors.FromContext(ctxErr, "'"+cmd.Name+"'")
	}

	if runErr != nil {
		// Command ran but returned non-zero
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, errors.WrapWithCode(runErr, errors.ErrExec,
			"Couldn't run '"+cmd.Name+"'",
			"Make sure it's installed and on your PATH.")
	}

	return result, nil
}

// Shell wraps a POSIX shell snippet in a Command. The user's $SHELL is
// ignored; installer one-liners assume sh syntax and fish or nu would
// reject them.
func Shell(script string) Command {
	return Command{Name: "/bin/sh", Args: []string{"-c", script}}
}

// LookPath reports the absolute path of an executable on PATH.
func LookPath(name string) (string, bool) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	return p, true
}
