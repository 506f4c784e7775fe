// Package console is the application command runner handed to fixtures
// that bootstrap data through CLI commands.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/phrazzld/functest/internal/fixture"
)

// ErrCommandNotFound is returned by Run for an unregistered command.
var ErrCommandNotFound = errors.New("command not found")

// Application is a set of cobra commands run by name with discarded output.
type Application struct {
	mu   sync.Mutex
	root *cobra.Command
}

var _ fixture.Console = (*Application)(nil)

// NewApplication creates an Application with the given commands.
func NewApplication(cmds ...*cobra.Command) *Application {
	root := &cobra.Command{
		Use:           "app",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(cmds...)
	return &Application{root: root}
}

// Add registers more commands.
func (a *Application) Add(cmds ...*cobra.Command) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.root.AddCommand(cmds...)
}

// Has reports whether a command named name is registered.
func (a *Application) Has(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.find(name) != nil
}

func (a *Application) find(name string) *cobra.Command {
	for _, c := range a.root.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return c
		}
	}
	return nil
}

// Run implements fixture.Console.
func (a *Application) Run(ctx context.Context, name string, args ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	cmd := a.find(name)
	if cmd == nil {
		return fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}
	// cobra only hands the context down to commands that have none yet.
	cmd.SetContext(ctx)

	a.root.SetArgs(append([]string{name}, args...))
	a.root.SetIn(nil)
	a.root.SetOut(io.Discard)
	a.root.SetErr(io.Discard)

	if err := a.root.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("command %s failed: %w", name, err)
	}
	return nil
}
