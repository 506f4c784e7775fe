// Package process runs the native database dump and restore tools through
// the system shell.
package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	tlogger "github.com/gruntwork-io/terratest/modules/logger"
	"github.com/gruntwork-io/terratest/modules/shell"
	terratesting "github.com/gruntwork-io/terratest/modules/testing"
	"github.com/phrazzld/functest/internal/dbconn"
	"github.com/phrazzld/functest/internal/platform/logger"
	"github.com/phrazzld/functest/internal/redact"
)

// DefaultShell interprets command lines, including redirections.
const DefaultShell = "sh"

// ErrCommandFailed matches every *CommandFailedError via errors.Is.
var ErrCommandFailed = errors.New("command failed")

// Result describes a finished command. Command is redacted.
type Result struct {
	Command  string
	Output   string
	Duration time.Duration
}

// Runner executes a shell command line with env merged over the inherited
// process environment. A non-zero exit yields a *CommandFailedError.
type Runner interface {
	Run(command string, env map[string]string) (Result, error)
}

// CommandFailedError reports a command that exited unsuccessfully. Command and
// Output are redacted.
type CommandFailedError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

// Error implements the error interface.
func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("command %q failed with exit code %d: %s", e.Command, e.ExitCode, e.Output)
}

// Unwrap returns the underlying execution error.
func (e *CommandFailedError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCommandFailed.
func (e *CommandFailedError) Is(target error) bool {
	return target == ErrCommandFailed
}

// ShellRunner runs commands with "sh -c" through terratest's shell module.
type ShellRunner struct {
	T      terratesting.TestingT
	Shell  string
	Logger *slog.Logger
}

// NewShellRunner creates a ShellRunner. t may be nil outside of tests.
func NewShellRunner(t terratesting.TestingT, log *slog.Logger) *ShellRunner {
	return &ShellRunner{T: t, Shell: DefaultShell, Logger: logger.OrDefault(log)}
}

// Run implements Runner.
func (r *ShellRunner) Run(command string, env map[string]string) (Result, error) {
	shellName := r.Shell
	if shellName == "" {
		shellName = DefaultShell
	}

	var t terratesting.TestingT = standaloneT{}
	if r.T != nil {
		t = r.T
	}

	start := time.Now()
	output, err := shell.RunCommandAndGetOutputE(t, shell.Command{
		Command: shellName,
		Args:    []string{"-c", command},
		Env:     env,
		Logger:  tlogger.Discard,
	})

	result := Result{
		Command:  redact.String(command),
		Output:   output,
		Duration: time.Since(start),
	}

	log := logger.OrDefault(r.Logger)
	if err != nil {
		exitCode, codeErr := shell.GetExitCodeForRunCommandError(err)
		if codeErr != nil {
			exitCode = -1
		}

		failure := &CommandFailedError{
			Command:  result.Command,
			ExitCode: exitCode,
			Output:   redact.String(output),
			Err:      errors.New(redact.Error(err)),
		}
		log.Error("command failed",
			"command", result.Command,
			"exit_code", exitCode,
			"env", redact.Env(env),
			"duration_ms", result.Duration.Milliseconds(),
		)
		return result, failure
	}

	log.Debug("command succeeded",
		"command", result.Command,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// PasswordEnv returns the environment overlay for the native tools. pg_dump
// and pg_restore read the password from PGPASSWORD and the port from PGPORT,
// since their command lines carry neither. The mysql tools receive both on
// the command line instead.
func PasswordEnv(p dbconn.Params) map[string]string {
	env := map[string]string{"PGPASSWORD": p.Password}
	if p.Port != "" {
		env["PGPORT"] = p.Port
	}
	return env
}

// ShellAvailable reports whether the default shell can be found on PATH.
func ShellAvailable() bool {
	_, err := exec.LookPath(DefaultShell)
	return err == nil
}

// standaloneT satisfies terratest's TestingT outside of a test. Only the
// error-returning shell helpers are used, so failure methods are never hit.
type standaloneT struct{}

func (standaloneT) Fail()                             {}
func (standaloneT) FailNow()                          { panic("process: FailNow called outside of a test") }
func (standaloneT) Fatal(args ...interface{})         { panic(fmt.Sprint(args...)) }
func (standaloneT) Fatalf(f string, a ...interface{}) { panic(fmt.Sprintf(f, a...)) }
func (standaloneT) Error(args ...interface{})         {}
func (standaloneT) Errorf(string, ...interface{})     {}
func (standaloneT) Name() string                      { return "functest" }
