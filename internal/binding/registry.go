package binding

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gladebind/internal/logging"
)

// State is the registry lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting-down"
	default:
		return "uninitialized"
	}
}

// Options configures a Registry.
type Options struct {
	// PluginsDir is enumerated for *.so modules. Empty disables directory
	// loading.
	PluginsDir string

	// ScriptRoots returns the script roots of a binding, factory root first.
	ScriptRoots func(name string) []string

	// Builtins are in-process entry points loaded before PluginsDir, in key
	// order.
	Builtins map[string]EntryFunc

	// Opener opens module files. Defaults to NewPluginOpener().
	Opener ModuleOpener

	// Env is handed to every binding's init.
	Env Env
}

// LoadFailure records one module that was not registered.
type LoadFailure struct {
	Path string
	Err  error
}

// LoadReport summarizes one LoadAll call.
type LoadReport struct {
	Loaded  []string
	Skipped []LoadFailure
}

// Registry owns every loaded binding, keyed by name. It is not safe for
// concurrent use.
type Registry struct {
	opts     Options
	opener   ModuleOpener
	state    State
	bindings map[string]*Binding
	order    []string
	paths    map[string]bool
}

// NewRegistry creates an uninitialized registry.
func NewRegistry(opts Options) *Registry {
	opener := opts.Opener
	if opener == nil {
		opener = NewPluginOpener()
	}
	return &Registry{
		opts:     opts,
		opener:   opener,
		bindings: make(map[string]*Binding),
		paths:    make(map[string]bool),
	}
}

// State returns the lifecycle state.
func (r *Registry) State() State { return r.state }

// LoadAll loads builtins and every module in the plugins dir. Modules whose
// path or name is already loaded are not loaded again. A module that fails
// the load contract is skipped with a warning and leaves nothing behind.
func (r *Registry) LoadAll() (*LoadReport, error) {
	if r.state == StateShuttingDown {
		return nil, ErrShuttingDown
	}
	report := &LoadReport{}

	keys := make([]string, 0, len(r.opts.Builtins))
	for k := range r.opts.Builtins {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path := "builtin:" + k
		if r.paths[path] {
			continue
		}
		b, err := newBuiltin(k, r.opts.Builtins[k], r.opts.Env)
		r.accept(report, path, b, err)
	}

	for _, path := range r.modulePaths() {
		if r.paths[path] {
			continue
		}
		b, err := openModule(r.opener, path, r.opts.Env)
		r.accept(report, path, b, err)
	}

	r.state = StateReady
	logging.Bindings("loaded %d binding(s), skipped %d", len(report.Loaded), len(report.Skipped))
	return report, nil
}

// modulePaths lists plugins dir entries with the module suffix, sorted.
func (r *Registry) modulePaths() []string {
	if r.opts.PluginsDir == "" {
		return nil
	}
	entries, err := os.ReadDir(r.opts.PluginsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.BindingsWarn("plugins dir %s does not exist", r.opts.PluginsDir)
		} else {
			logging.BindingsWarn("plugins dir %s unavailable: %v", r.opts.PluginsDir, err)
		}
		return nil
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ModuleSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(r.opts.PluginsDir, e.Name()))
	}
	return paths
}

func (r *Registry) accept(report *LoadReport, path string, b *Binding, err error) {
	if err == nil {
		if _, exists := r.bindings[b.name]; exists {
			b.release()
			err = &LoadError{Path: path, Stage: StageAccept, Err: fmt.Errorf("%w: %s", ErrDuplicateBinding, b.name)}
		}
	}
	if err != nil {
		logging.BindingsWarn("%v", err)
		report.Skipped = append(report.Skipped, LoadFailure{Path: path, Err: err})
		return
	}

	b.catalog = scanCatalog(b, r.scriptRoots(b.name))
	r.bindings[b.name] = b
	r.order = append(r.order, b.name)
	r.paths[path] = true
	report.Loaded = append(report.Loaded, b.name)
	logging.Bindings("registered binding %s from %s (%d scripts)", b.name, path, b.catalog.Len())
}

func (r *Registry) scriptRoots(name string) []string {
	if r.opts.ScriptRoots == nil {
		return nil
	}
	return r.opts.ScriptRoots(name)
}

// UnloadAll finalizes and closes every binding in registration order, then
// resets the registry so LoadAll can run again.
func (r *Registry) UnloadAll() {
	if r.state == StateUninitialized && len(r.order) == 0 {
		return
	}
	r.state = StateShuttingDown

	for _, name := range r.order {
		b := r.bindings[name]
		b.release()
		logging.BindingsDebug("unloaded binding %s", name)
	}

	r.bindings = make(map[string]*Binding)
	r.order = nil
	r.paths = make(map[string]bool)
	r.state = StateUninitialized
	logging.Bindings("all bindings unloaded")
}

// Get returns a binding by name, or nil if not loaded.
func (r *Registry) Get(name string) *Binding {
	return r.bindings[name]
}

// Has returns true if a binding with the given name is loaded.
func (r *Registry) Has(name string) bool {
	_, ok := r.bindings[name]
	return ok
}

// GetAll returns every binding in registration order.
func (r *Registry) GetAll() []*Binding {
	result := make([]*Binding, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.bindings[name])
	}
	return result
}

// Names returns binding names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Count returns the number of loaded bindings.
func (r *Registry) Count() int {
	return len(r.order)
}

// lookup returns the named binding or ErrBindingNotFound.
func (r *Registry) lookup(name string) (*Binding, error) {
	b, ok := r.bindings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBindingNotFound, name)
	}
	return b, nil
}

// RescanScripts rebuilds one binding's catalog from disk and swaps it in.
func (r *Registry) RescanScripts(name string) error {
	b, err := r.lookup(name)
	if err != nil {
		return err
	}
	b.catalog = scanCatalog(b, r.scriptRoots(name))
	logging.Scripts("rescanned scripts for %s (%d scripts)", name, b.catalog.Len())
	return nil
}

// ScriptRoots returns the roots scanned for the named binding.
func (r *Registry) ScriptRoots(name string) []string {
	return r.scriptRoots(name)
}
