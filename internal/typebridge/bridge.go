// Package typebridge mirrors the host's native single-inheritance type tree
// into a foreign runtime's class hierarchy, lazily and at most once per type.
package typebridge

import (
	"errors"
	"fmt"

	"gladebind/internal/host"
	"gladebind/internal/logging"
)

// ErrRegistration marks a failure reported by the foreign runtime while
// creating or registering a class.
var ErrRegistration = errors.New("foreign class registration failed")

// Hierarchy is the native side: a pure walk from a type to its parent.
// *host.TypeSystem satisfies it.
type Hierarchy interface {
	Parent(t host.TypeID) (host.TypeID, bool)
	Name(t host.TypeID) string
}

// Runtime is the foreign side. C is the runtime's class handle; the runtime
// owns its storage and the bridge never frees it.
type Runtime[C any] interface {
	// Class returns the foreign class named name, creating it if needed.
	Class(name string) (C, error)
	// Register makes class a direct, constructible subclass of parent.
	Register(class, parent C) error
}

// RegistrationError reports which native type failed to bridge.
type RegistrationError struct {
	Type string
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrRegistration, e.Type, e.Err)
}

func (e *RegistrationError) Unwrap() []error {
	return []error{ErrRegistration, e.Err}
}

// Bridge maps native types to foreign classes. The memo table is
// append-only; it must be used from one goroutine.
type Bridge[C any] struct {
	types Hierarchy
	rt    Runtime[C]
	root  host.TypeID
	base  C
	memo  map[host.TypeID]C
}

// New creates a bridge. root is the adaptor root type; it and every
// parentless type map to base, the sentinel class with no native counterpart.
func New[C any](types Hierarchy, rt Runtime[C], root host.TypeID, base C) *Bridge[C] {
	return &Bridge[C]{
		types: types,
		rt:    rt,
		root:  root,
		base:  base,
		memo:  make(map[host.TypeID]C),
	}
}

// Base returns the sentinel class.
func (b *Bridge[C]) Base() C {
	return b.base
}

// Ensure returns the foreign class for t, registering t and any unmirrored
// ancestors parent-first. On failure the ancestors registered so far stay
// memoized.
func (b *Bridge[C]) Ensure(t host.TypeID) (C, error) {
	if c, ok := b.memo[t]; ok {
		return c, nil
	}

	// Walk up until a memoized ancestor, the root, or a parentless type.
	var pending []host.TypeID
	parent := b.base
	for cur := t; ; {
		if c, ok := b.memo[cur]; ok {
			parent = c
			break
		}
		if cur == b.root {
			break
		}
		p, ok := b.types.Parent(cur)
		if !ok {
			break
		}
		pending = append(pending, cur)
		cur = p
	}

	for i := len(pending) - 1; i >= 0; i-- {
		nt := pending[i]
		name := b.types.Name(nt)

		class, err := b.rt.Class(name)
		if err == nil {
			err = b.rt.Register(class, parent)
		}
		if err != nil {
			logging.BridgeWarn("mirroring %s: %v", name, err)
			var zero C
			return zero, &RegistrationError{Type: name, Err: err}
		}
		b.memo[nt] = class
		parent = class
		logging.BridgeDebug("mirrored %s", name)
	}
	return parent, nil
}

// Lookup returns the memoized class for t without registering anything.
func (b *Bridge[C]) Lookup(t host.TypeID) (C, bool) {
	c, ok := b.memo[t]
	return c, ok
}

// Len returns the number of memoized types.
func (b *Bridge[C]) Len() int {
	return len(b.memo)
}
