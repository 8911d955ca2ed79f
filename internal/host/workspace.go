package host

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"gladebind/internal/logging"
)

// App is the surface of the design tool handed to bindings. Scripts reach
// projects and widgets only through it.
type App interface {
	Types() *TypeSystem
	AdaptorRoot() TypeID
	AdaptorFor(class string) (TypeID, error)

	NewProject(name string) string
	Projects() []string
	CurrentProject() string
	SetProject(name string) error
	CloseProject(name string) error

	CreateWidget(class, parent string) (string, error)
	DeleteWidget(name string) error
	SetProperty(widget, property string, value any) error
	GetProperty(widget, property string) (any, error)
	Widgets() []string
	WidgetClass(name string) (string, error)
}

// Widget is a widget instance inside a project.
type Widget struct {
	Name   string
	Class  TypeID
	Parent string
	props  map[string]any
}

type project struct {
	name     string
	widgets  map[string]*Widget
	order    []string
	counters map[string]int
}

// Workspace is an in-memory App.
type Workspace struct {
	mu          sync.RWMutex
	types       *TypeSystem
	adaptorRoot TypeID
	projects    []*project
	current     *project
	untitled    int
}

// NewWorkspace creates a workspace over an existing type tree.
func NewWorkspace(types *TypeSystem, adaptorRoot TypeID) *Workspace {
	return &Workspace{types: types, adaptorRoot: adaptorRoot}
}

// NewDefaultWorkspace creates a workspace over the built-in catalog.
func NewDefaultWorkspace() (*Workspace, error) {
	cat, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	ts, root, err := cat.Build()
	if err != nil {
		return nil, err
	}
	return NewWorkspace(ts, root), nil
}

func (w *Workspace) Types() *TypeSystem  { return w.types }
func (w *Workspace) AdaptorRoot() TypeID { return w.adaptorRoot }

// AdaptorFor returns the adaptor type for a widget class name.
func (w *Workspace) AdaptorFor(class string) (TypeID, error) {
	id, ok := w.types.Lookup(class)
	if !ok || !w.types.IsA(id, w.adaptorRoot) {
		return InvalidType, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	return id, nil
}

// NewProject creates a project and makes it current. An empty name gets a
// generated "Untitled N" name.
func (w *Workspace) NewProject(name string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if name == "" {
		w.untitled++
		name = fmt.Sprintf("Untitled %d", w.untitled)
	}
	p := &project{
		name:     name,
		widgets:  make(map[string]*Widget),
		counters: make(map[string]int),
	}
	w.projects = append(w.projects, p)
	w.current = p
	logging.HostDebug("project %q opened", name)
	return name
}

// Projects returns open project names in creation order.
func (w *Workspace) Projects() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	names := make([]string, 0, len(w.projects))
	for _, p := range w.projects {
		names = append(names, p.name)
	}
	return names
}

// CurrentProject returns the current project's name, or "".
func (w *Workspace) CurrentProject() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.current == nil {
		return ""
	}
	return w.current.name
}

// SetProject makes the named project current.
func (w *Workspace) SetProject(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.findProject(name)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchProject, name)
	}
	w.current = p
	return nil
}

// CloseProject removes a project. Closing the current project makes the most
// recently opened remaining project current.
func (w *Workspace) CloseProject(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, p := range w.projects {
		if p.name != name {
			continue
		}
		w.projects = append(w.projects[:i], w.projects[i+1:]...)
		if w.current == p {
			w.current = nil
			if n := len(w.projects); n > 0 {
				w.current = w.projects[n-1]
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNoSuchProject, name)
}

func (w *Workspace) findProject(name string) *project {
	for _, p := range w.projects {
		if p.name == name {
			return p
		}
	}
	return nil
}

// CreateWidget instantiates class in the current project, optionally inside
// a parent container, and returns the generated widget name.
func (w *Workspace) CreateWidget(class, parent string) (string, error) {
	id, err := w.AdaptorFor(class)
	if err != nil {
		return "", err
	}
	if w.types.IsAbstract(id) {
		return "", fmt.Errorf("%w: %s", ErrAbstractClass, class)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.current
	if p == nil {
		return "", ErrNoProject
	}
	if parent != "" {
		pw, ok := p.widgets[parent]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrNoSuchWidget, parent)
		}
		if !w.types.IsContainer(pw.Class) {
			return "", fmt.Errorf("%w: %s", ErrNotContainer, parent)
		}
	}

	name := p.nextName(class)
	p.widgets[name] = &Widget{
		Name:   name,
		Class:  id,
		Parent: parent,
		props:  map[string]any{"name": name},
	}
	p.order = append(p.order, name)
	logging.HostDebug("created %s (%s) in %q", name, class, p.name)
	return name, nil
}

// nextName derives "button1" style names from "GtkButton".
func (p *project) nextName(class string) string {
	base := strings.ToLower(strings.TrimPrefix(class, "Gtk"))
	for {
		p.counters[base]++
		name := fmt.Sprintf("%s%d", base, p.counters[base])
		if _, taken := p.widgets[name]; !taken {
			return name
		}
	}
}

// DeleteWidget removes a widget and its descendants from the current project.
func (w *Workspace) DeleteWidget(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.current
	if p == nil {
		return ErrNoProject
	}
	if _, ok := p.widgets[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchWidget, name)
	}

	doomed := map[string]bool{name: true}
	// order is creation order, so parents precede children.
	for _, n := range p.order {
		if doomed[p.widgets[n].Parent] {
			doomed[n] = true
		}
	}
	kept := p.order[:0]
	for _, n := range p.order {
		if doomed[n] {
			delete(p.widgets, n)
			continue
		}
		kept = append(kept, n)
	}
	p.order = kept
	logging.HostDebug("deleted %s and %d descendant(s) from %q", name, len(doomed)-1, p.name)
	return nil
}

func (w *Workspace) widget(name, property string) (*Widget, error) {
	p := w.current
	if p == nil {
		return nil, ErrNoProject
	}
	wd, ok := p.widgets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchWidget, name)
	}
	if !w.types.HasProperty(wd.Class, property) {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchProperty, w.types.Name(wd.Class), property)
	}
	return wd, nil
}

// SetProperty sets a declared or inherited property. The "name" property is
// read-only.
func (w *Workspace) SetProperty(widget, property string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	wd, err := w.widget(widget, property)
	if err != nil {
		return err
	}
	if property == "name" {
		return fmt.Errorf("%w: %s.name", ErrReadOnlyProperty, widget)
	}
	wd.props[property] = value
	return nil
}

// GetProperty returns a property value, nil when never set.
func (w *Workspace) GetProperty(widget, property string) (any, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	wd, err := w.widget(widget, property)
	if err != nil {
		return nil, err
	}
	return wd.props[property], nil
}

// Widgets returns the current project's widget names, sorted.
func (w *Workspace) Widgets() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.current == nil {
		return nil
	}
	names := append([]string(nil), w.current.order...)
	sort.Strings(names)
	return names
}

// WidgetClass returns the class name of a widget in the current project.
func (w *Workspace) WidgetClass(name string) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.current == nil {
		return "", ErrNoProject
	}
	wd, ok := w.current.widgets[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoSuchWidget, name)
	}
	return w.types.Name(wd.Class), nil
}

var _ App = (*Workspace)(nil)
