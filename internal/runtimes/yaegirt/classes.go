package yaegirt

import (
	"errors"
	"fmt"

	"gladebind/internal/host"
)

// ErrClassConflict is returned when a class is registered twice under
// different parents.
var ErrClassConflict = errors.New("class already registered with another parent")

// ErrNotConstructible is returned when a script instantiates a class that
// was never registered as constructible.
var ErrNotConstructible = errors.New("class is not constructible")

// Class is the interpreter-side mirror of a host adaptor type. Scripts get
// it from glade.AdaptorFor.
type Class struct {
	name          string
	parent        *Class
	constructible bool
	registered    bool
	reg           *ClassRegistry
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Parent returns the superclass, nil for the base class.
func (c *Class) Parent() *Class { return c.parent }

// Constructible reports whether New may be called.
func (c *Class) Constructible() bool { return c.constructible }

// Ancestry returns the class name followed by its superclass names.
func (c *Class) Ancestry() []string {
	var names []string
	for cur := c; cur != nil; cur = cur.parent {
		names = append(names, cur.name)
	}
	return names
}

// IsA reports whether the class is name or derives from it.
func (c *Class) IsA(name string) bool {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.name == name {
			return true
		}
	}
	return false
}

// New creates a widget of this class in the current project.
func (c *Class) New(parent string) (string, error) {
	if !c.constructible {
		return "", fmt.Errorf("%w: %s", ErrNotConstructible, c.name)
	}
	return c.reg.host.CreateWidget(c.name, parent)
}

func (c *Class) String() string { return "<class " + c.name + ">" }

// ClassRegistry owns every Class of one runtime. It is the foreign side of
// the type bridge.
type ClassRegistry struct {
	host    host.App
	classes map[string]*Class
	order   []string
}

// NewClassRegistry creates a registry whose classes construct widgets in h.
func NewClassRegistry(h host.App) *ClassRegistry {
	return &ClassRegistry{host: h, classes: make(map[string]*Class)}
}

// Base creates the sentinel base class. It has no native counterpart and is
// never constructible.
func (r *ClassRegistry) Base(name string) *Class {
	c := &Class{name: name, registered: true, reg: r}
	r.classes[name] = c
	r.order = append(r.order, name)
	return c
}

// Class returns the class called name, creating an unregistered one.
func (r *ClassRegistry) Class(name string) (*Class, error) {
	if name == "" {
		return nil, errors.New("class name cannot be empty")
	}
	if c, ok := r.classes[name]; ok {
		return c, nil
	}
	c := &Class{name: name, reg: r}
	r.classes[name] = c
	return c, nil
}

// Register makes class a constructible direct subclass of parent.
func (r *ClassRegistry) Register(class, parent *Class) error {
	if class.registered {
		if class.parent != parent {
			return fmt.Errorf("%w: %s", ErrClassConflict, class.name)
		}
		return nil
	}
	class.parent = parent
	class.constructible = true
	class.registered = true
	r.order = append(r.order, class.name)
	return nil
}

// Registered returns registered class names in registration order.
func (r *ClassRegistry) Registered() []string {
	return append([]string(nil), r.order...)
}
