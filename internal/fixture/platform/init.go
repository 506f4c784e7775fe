// Package platform holds fixtures that bootstrap application platform data.
package platform

import (
	"context"

	"github.com/phrazzld/functest/internal/fixture"
	"github.com/phrazzld/functest/internal/objectmanager"
	"github.com/phrazzld/functest/internal/reference"
)

// InitCommand is the console command that initializes platform data.
const InitCommand = "platform:init"

// InitFixture runs the platform initialization command. It receives the
// console and the default credentials from the loader.
type InitFixture struct {
	fixture.ConsoleSupport
	fixture.DefaultAuthentication
}

var (
	_ fixture.ConsoleAware               = (*InitFixture)(nil)
	_ fixture.DefaultAuthenticationAware = (*InitFixture)(nil)
)

// Load implements fixture.Fixture.
func (f *InitFixture) Load(ctx context.Context, _ objectmanager.Manager, _ *reference.Repository) error {
	return f.RunCommand(ctx, InitCommand)
}
