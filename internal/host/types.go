// Package host models the design tool side of the binding layer: the native
// single-inheritance type tree the bridge mirrors, and the opaque widget and
// project capabilities scripts are allowed to drive.
package host

import (
	"fmt"
)

// TypeID identifies a native type. The zero value is never a valid type.
type TypeID int

// InvalidType is the zero TypeID.
const InvalidType TypeID = 0

type typeInfo struct {
	name       string
	parent     TypeID
	abstract   bool
	container  bool
	properties []string
}

// TypeSystem is a single-inheritance tree of native types. A type can only
// name an already registered parent, so the tree is acyclic by construction.
type TypeSystem struct {
	types  []typeInfo
	byName map[string]TypeID
}

// NewTypeSystem creates an empty type tree.
func NewTypeSystem() *TypeSystem {
	return &TypeSystem{byName: make(map[string]TypeID)}
}

// TypeSpec describes one type to register.
type TypeSpec struct {
	Name       string
	Parent     TypeID // InvalidType for a root type
	Abstract   bool
	Container  bool // instances may hold children; inherited
	Properties []string
}

// Register adds a type and returns its id.
func (ts *TypeSystem) Register(spec TypeSpec) (TypeID, error) {
	if spec.Name == "" {
		return InvalidType, ErrEmptyTypeName
	}
	if _, exists := ts.byName[spec.Name]; exists {
		return InvalidType, fmt.Errorf("%w: %s", ErrTypeExists, spec.Name)
	}
	if spec.Parent != InvalidType && !ts.valid(spec.Parent) {
		return InvalidType, fmt.Errorf("%w: parent %d of %s", ErrUnknownType, spec.Parent, spec.Name)
	}

	ts.types = append(ts.types, typeInfo{
		name:       spec.Name,
		parent:     spec.Parent,
		abstract:   spec.Abstract,
		container:  spec.Container,
		properties: append([]string(nil), spec.Properties...),
	})
	id := TypeID(len(ts.types))
	ts.byName[spec.Name] = id
	return id, nil
}

func (ts *TypeSystem) valid(id TypeID) bool {
	return id > 0 && int(id) <= len(ts.types)
}

func (ts *TypeSystem) info(id TypeID) *typeInfo {
	if !ts.valid(id) {
		return nil
	}
	return &ts.types[id-1]
}

// Lookup returns the id registered for name.
func (ts *TypeSystem) Lookup(name string) (TypeID, bool) {
	id, ok := ts.byName[name]
	return id, ok
}

// Name returns the type's name, or "" for an unknown id.
func (ts *TypeSystem) Name(id TypeID) string {
	if ti := ts.info(id); ti != nil {
		return ti.name
	}
	return ""
}

// Parent returns the direct parent of id. ok is false for root types and
// unknown ids.
func (ts *TypeSystem) Parent(id TypeID) (parent TypeID, ok bool) {
	ti := ts.info(id)
	if ti == nil || ti.parent == InvalidType {
		return InvalidType, false
	}
	return ti.parent, true
}

// IsAbstract reports whether instances of id may not be created.
func (ts *TypeSystem) IsAbstract(id TypeID) bool {
	ti := ts.info(id)
	return ti == nil || ti.abstract
}

// IsContainer reports whether id or any ancestor is a container type.
func (ts *TypeSystem) IsContainer(id TypeID) bool {
	for _, t := range ts.Ancestry(id) {
		if ts.info(t).container {
			return true
		}
	}
	return false
}

// IsA reports whether id equals ancestor or derives from it.
func (ts *TypeSystem) IsA(id, ancestor TypeID) bool {
	for cur, ok := id, ts.valid(id); ok; cur, ok = ts.Parent(cur) {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Ancestry returns id followed by its ancestors up to the root.
func (ts *TypeSystem) Ancestry(id TypeID) []TypeID {
	if !ts.valid(id) {
		return nil
	}
	chain := []TypeID{id}
	for p, ok := ts.Parent(id); ok; p, ok = ts.Parent(p) {
		chain = append(chain, p)
	}
	return chain
}

// Properties returns the property names of id including inherited ones,
// root-most first.
func (ts *TypeSystem) Properties(id TypeID) []string {
	chain := ts.Ancestry(id)
	var props []string
	for i := len(chain) - 1; i >= 0; i-- {
		props = append(props, ts.info(chain[i]).properties...)
	}
	return props
}

// HasProperty reports whether id declares or inherits prop.
func (ts *TypeSystem) HasProperty(id TypeID, prop string) bool {
	for _, p := range ts.Properties(id) {
		if p == prop {
			return true
		}
	}
	return false
}

// Len returns the number of registered types.
func (ts *TypeSystem) Len() int {
	return len(ts.types)
}
