package fixture

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCircularDependency is returned when fixtures depend on each other.
var ErrCircularDependency = errors.New("circular fixture dependency")

// Loader collects fixtures and their transitive dependencies. Each fixture
// name is kept once; the first instance added wins.
type Loader struct {
	order    []string
	fixtures map[string]Fixture
	deps     map[string][]string
}

// NewLoader creates a Loader and adds fixtures to it.
func NewLoader(fixtures ...Fixture) *Loader {
	l := &Loader{
		fixtures: make(map[string]Fixture),
		deps:     make(map[string][]string),
	}
	for _, f := range fixtures {
		l.Add(f)
	}
	return l
}

// Add adds f and, recursively, its dependencies.
func (l *Loader) Add(f Fixture) {
	name := Name(f)
	if _, seen := l.fixtures[name]; seen {
		return
	}
	l.fixtures[name] = f
	l.order = append(l.order, name)

	dependent, ok := f.(DependentFixture)
	if !ok {
		return
	}
	for _, dep := range dependent.Dependencies() {
		l.deps[name] = append(l.deps[name], Name(dep))
		l.Add(dep)
	}
}

// Len returns the number of distinct fixtures.
func (l *Loader) Len() int { return len(l.order) }

// All returns every fixture in the order it was added, without ordering
// by dependencies.
func (l *Loader) All() []Fixture {
	all := make([]Fixture, len(l.order))
	for i, name := range l.order {
		all[i] = l.fixtures[name]
	}
	return all
}

// Names returns the distinct fixture names, sorted.
func (l *Loader) Names() []string {
	names := append([]string(nil), l.order...)
	sort.Strings(names)
	return names
}

// Fixtures returns every fixture, dependencies before dependents. Fixtures
// without an ordering constraint keep the order they were added in.
func (l *Loader) Fixtures() ([]Fixture, error) {
	dependants := make(map[string][]string)
	inDegree := make(map[string]int, len(l.order))
	for _, name := range l.order {
		inDegree[name] = 0
	}
	for _, name := range l.order {
		for _, dep := range l.deps[name] {
			dependants[dep] = append(dependants[dep], name)
			inDegree[name]++
		}
	}

	position := make(map[string]int, len(l.order))
	var ready []string
	for i, name := range l.order {
		position[name] = i
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	sorted := make([]Fixture, 0, len(l.order))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return position[ready[i]] < position[ready[j]] })
		name := ready[0]
		ready = ready[1:]
		sorted = append(sorted, l.fixtures[name])

		for _, next := range dependants[name] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(sorted) != len(l.order) {
		var cyclic []string
		for _, name := range l.order {
			if inDegree[name] > 0 {
				cyclic = append(cyclic, name)
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(cyclic, ", "))
	}

	return sorted, nil
}
