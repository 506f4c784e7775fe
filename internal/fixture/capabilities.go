package fixture

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrConsoleNotInjected is returned when a fixture uses the console before
// the loader injected it.
var ErrConsoleNotInjected = errors.New("console must be injected before use")

// Credentials are the default authentication credentials handed to
// fixtures that create login-capable users.
type Credentials struct {
	Username string
	Password string
}

// DefaultAuthenticationAware fixtures receive the configured credentials
// before they run.
type DefaultAuthenticationAware interface {
	SetDefaultAuthentication(username, password string)
}

// DefaultAuthentication implements DefaultAuthenticationAware; embed it in
// a fixture.
type DefaultAuthentication struct {
	DefaultUsername string
	DefaultPassword string
}

// SetDefaultAuthentication implements DefaultAuthenticationAware.
func (a *DefaultAuthentication) SetDefaultAuthentication(username, password string) {
	a.DefaultUsername = username
	a.DefaultPassword = password
}

// HashedPassword returns a bcrypt hash of the default password, suitable for
// storing on a user row.
func (a *DefaultAuthentication) HashedPassword() (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(a.DefaultPassword), bcrypt.MinCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash default password: %w", err)
	}
	return string(hash), nil
}

// Console runs named application commands. Output is discarded.
type Console interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ConsoleAware fixtures receive the application console before they run.
type ConsoleAware interface {
	SetConsole(c Console)
}

// ConsoleSupport implements ConsoleAware; embed it in a fixture.
type ConsoleSupport struct {
	console Console
}

// SetConsole implements ConsoleAware.
func (s *ConsoleSupport) SetConsole(c Console) {
	s.console = c
}

// Console returns the injected console.
func (s *ConsoleSupport) Console() (Console, error) {
	if s.console == nil {
		return nil, ErrConsoleNotInjected
	}
	return s.console, nil
}

// RunCommand runs a console command through the injected console.
func (s *ConsoleSupport) RunCommand(ctx context.Context, name string, args ...string) error {
	c, err := s.Console()
	if err != nil {
		return err
	}
	return c.Run(ctx, name, args...)
}

// Inject hands credentials and the console to every fixture that declares
// support for them. console may be nil when no fixture needs it.
func Inject(fixtures []Fixture, creds Credentials, console Console) {
	for _, f := range fixtures {
		if aware, ok := f.(DefaultAuthenticationAware); ok {
			aware.SetDefaultAuthentication(creds.Username, creds.Password)
		}
		if aware, ok := f.(ConsoleAware); ok && console != nil {
			aware.SetConsole(console)
		}
	}
}
