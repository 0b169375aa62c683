// Package testing provides test doubles for the exec package.
package testing

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/teaxyz/teabase/internal/exec"
)

// Response is a scripted result for commands matching a prefix.
type Response struct {
	Result exec.Result
	Err    error

	// Do runs before the result is returned, e.g. to create files the real
	// command would have written.
	Do func(cmd exec.Command)
}

type rule struct {
	prefix string
	resp   Response
}

// FakeRunner records commands and replies with scripted responses. The
// most recently added matching rule wins; unmatched commands succeed with
// empty output.
type FakeRunner struct {
	mu    sync.Mutex
	rules []rule
	calls []exec.Command
}

// NewFakeRunner creates a runner that succeeds by default.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// On scripts the response for commands whose rendered form starts with prefix.
func (f *FakeRunner) On(prefix string, resp Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{prefix: prefix, resp: resp})
	return f
}

// OnStdout is shorthand for a successful command printing stdout.
func (f *FakeRunner) OnStdout(prefix, stdout string) *FakeRunner {
	return f.On(prefix, Response{Result: exec.Result{Stdout: []byte(stdout)}})
}

// OnExit is shorthand for a command exiting with code and stderr.
func (f *FakeRunner) OnExit(prefix string, code int, stderr string) *FakeRunner {
	return f.On(prefix, Response{Result: exec.Result{ExitCode: code, Stderr: []byte(stderr)}})
}

// Run implements exec.Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd exec.Command) (exec.Result, error) {
	if cmd.Stdin != nil {
		data, _ := io.ReadAll(cmd.Stdin)
		cmd.Stdin = strings.NewReader(string(data))
	}

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	var matched *Response
	rendered := cmd.String()
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.HasPrefix(rendered, f.rules[i].prefix) {
			r := f.rules[i].resp
			matched = &r
			break
		}
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return exec.Result{ExitCode: -1}, err
	}
	if matched == nil {
		return exec.Result{}, nil
	}
	if matched.Do != nil {
		matched.Do(cmd)
		// Do may simulate a slow process that outlives its deadline
		if err := ctx.Err(); err != nil {
			return exec.Result{ExitCode: -1}, err
		}
	}
	return matched.Result, matched.Err
}

// Calls returns every command seen so far.
func (f *FakeRunner) Calls() []exec.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]exec.Command, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many commands started with prefix.
func (f *FakeRunner) CallCount(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c.String(), prefix) {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls but keeps the rules.
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
