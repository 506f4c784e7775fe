package process

import (
	"sync"
)

// Call records one invocation of a FakeRunner.
type Call struct {
	Command string
	Env     map[string]string
}

// FakeRunner is a Runner for tests. It records every call and delegates to
// Handler when set; a nil Handler succeeds with empty output.
type FakeRunner struct {
	Handler func(command string, env map[string]string) (string, error)

	mu    sync.Mutex
	calls []Call
}

// Run implements Runner.
func (f *FakeRunner) Run(command string, env map[string]string) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Command: command, Env: env})
	f.mu.Unlock()

	if f.Handler == nil {
		return Result{Command: command}, nil
	}

	output, err := f.Handler(command, env)
	return Result{Command: command, Output: output}, err
}

// Calls returns the recorded invocations in order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Commands returns the recorded command lines in order.
func (f *FakeRunner) Commands() []string {
	calls := f.Calls()
	commands := make([]string, len(calls))
	for i, c := range calls {
		commands[i] = c.Command
	}
	return commands
}
