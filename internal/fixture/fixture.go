// Package fixture loads test data into an object manager. Fixtures may
// depend on other fixtures; the Loader expands and orders them and the
// Executor runs them with reference tracking.
package fixture

import (
	"context"
	"reflect"
	"runtime"
	"strings"

	"github.com/phrazzld/functest/internal/objectmanager"
	"github.com/phrazzld/functest/internal/reference"
)

// Fixture populates an object manager. Objects other fixtures or tests need
// to find are registered in refs.
type Fixture interface {
	Load(ctx context.Context, m objectmanager.Manager, refs *reference.Repository) error
}

// DependentFixture declares fixtures that must be loaded before it.
type DependentFixture interface {
	Fixture
	Dependencies() []Fixture
}

// Named overrides the identifier derived from the fixture's type.
type Named interface {
	FixtureName() string
}

// SourceLocator reports the file defining the fixture. Fixtures built at
// runtime use it when their Load method does not live in a source file
// that reflects their content.
type SourceLocator interface {
	SourceFile() string
}

// Name returns the identifier of f: FixtureName when implemented, otherwise
// the package-qualified type name.
func Name(f Fixture) string {
	if n, ok := f.(Named); ok {
		return n.FixtureName()
	}

	t := reflect.TypeOf(f)
	prefix := ""
	for t.Kind() == reflect.Pointer {
		prefix += "*"
		t = t.Elem()
	}
	if t.Name() == "" {
		return prefix + t.String()
	}
	return prefix + t.PkgPath() + "." + t.Name()
}

// SourceFile returns the source file defining f, or "" when it cannot be
// located. Without a SourceLocator the file of the Load method is used.
func SourceFile(f Fixture) string {
	if l, ok := f.(SourceLocator); ok {
		return l.SourceFile()
	}

	t := reflect.TypeOf(f)
	for {
		if m, ok := t.MethodByName("Load"); ok {
			if file := funcFile(m.Func); file != "" {
				return file
			}
		}
		if t.Kind() != reflect.Pointer {
			return ""
		}
		t = t.Elem()
	}
}

func funcFile(fn reflect.Value) string {
	if !fn.IsValid() {
		return ""
	}
	rf := runtime.FuncForPC(fn.Pointer())
	if rf == nil {
		return ""
	}
	file, _ := rf.FileLine(rf.Entry())
	// Wrapper methods report "<autogenerated>".
	if file == "" || strings.HasPrefix(file, "<") {
		return ""
	}
	return file
}
