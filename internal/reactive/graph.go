// Package reactive is a small pull-based dependency graph: inputs are set
// explicitly, derived values are recomputed lazily when one of their
// dependencies changed since the last evaluation.
//
// Nodes are not safe for concurrent use; callers serialise access.
package reactive

// Node is anything a Computed can depend on.
type Node interface {
	// version increases every time the node's value may have changed.
	version() uint64
}

// Input is a node whose value is set from outside the graph.
type Input[T any] struct {
	value T
	ver   uint64
}

// NewInput returns an input holding v.
func NewInput[T any](v T) *Input[T] {
	return &Input[T]{value: v, ver: 1}
}

// Set stores v and invalidates dependents.
func (in *Input[T]) Set(v T) {
	in.value = v
	in.ver++
}

// Get returns the current value.
func (in *Input[T]) Get() T { return in.value }

func (in *Input[T]) version() uint64 { return in.ver }

// Computed derives a value from its dependencies. The value and any error
// are memoised until a dependency changes.
type Computed[T any] struct {
	name    string
	deps    []Node
	compute func() (T, error)

	seen  []uint64
	value T
	err   error
	ver   uint64
	valid bool
	runs  int
}

// NewComputed declares a derived node. compute must only read the nodes
// listed in deps.
func NewComputed[T any](name string, compute func() (T, error), deps ...Node) *Computed[T] {
	return &Computed[T]{
		name:    name,
		deps:    deps,
		compute: compute,
		seen:    make([]uint64, len(deps)),
	}
}

// Name returns the node name given at construction.
func (c *Computed[T]) Name() string { return c.name }

// Get returns the memoised value, recomputing it first if any dependency
// changed.
func (c *Computed[T]) Get() (T, error) {
	c.refresh()
	return c.value, c.err
}

// Runs returns how many times the node has been computed.
func (c *Computed[T]) Runs() int { return c.runs }

func (c *Computed[T]) version() uint64 {
	c.refresh()
	return c.ver
}

func (c *Computed[T]) refresh() {
	stale := !c.valid
	for i, d := range c.deps {
		// Pulling the version also refreshes computed dependencies.
		if v := d.version(); v != c.seen[i] {
			c.seen[i] = v
			stale = true
		}
	}
	if !stale {
		return
	}
	c.value, c.err = c.compute()
	c.valid = true
	c.ver++
	c.runs++
}
