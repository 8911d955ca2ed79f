package binding

import (
	"fmt"

	"gladebind/internal/logging"
)

// moduleState tracks a module through the load contract.
type moduleState int

const (
	stateUnloaded moduleState = iota
	stateOpened
	stateResolved
	stateReady
)

func (s moduleState) String() string {
	switch s {
	case stateOpened:
		return "opened"
	case stateResolved:
		return "resolved"
	case stateReady:
		return "ready"
	default:
		return "unloaded"
	}
}

// Binding is one loaded module with its control block and script catalog.
// The registry owns it; the handle stays open until UnloadAll.
type Binding struct {
	name    string
	path    string
	handle  Handle
	ctrl    *Ctrl
	catalog *Catalog
	state   moduleState
}

// Name returns the name the binding chose in init.
func (b *Binding) Name() string { return b.name }

// Path returns the module path, or "builtin:<key>" for builtins.
func (b *Binding) Path() string { return b.path }

// Catalog returns the binding's script catalog. It is never nil for a
// registered binding.
func (b *Binding) Catalog() *Catalog { return b.catalog }

// Loaded reports whether the binding is still usable.
func (b *Binding) Loaded() bool { return b.state == stateReady }

// Has reports whether the binding offers the capability.
func (b *Binding) Has(capability Capability) bool {
	return b.ctrl != nil && b.ctrl.Has(capability)
}

// Capabilities lists the offered capabilities in vtable order.
func (b *Binding) Capabilities() []Capability {
	var caps []Capability
	for _, c := range AllCapabilities {
		if b.Has(c) {
			caps = append(caps, c)
		}
	}
	return caps
}

// openModule runs the load contract for a module file. On any failure the
// handle is closed before returning and no Binding exists.
func openModule(opener ModuleOpener, path string, env Env) (*Binding, error) {
	h, err := opener.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Stage: StageOpen, Err: err}
	}
	b := &Binding{path: path, handle: h, state: stateOpened}

	sym, err := h.Lookup(EntrySymbol)
	if err != nil {
		b.discard()
		return nil, &LoadError{Path: path, Stage: StageResolve,
			Err: fmt.Errorf("%w: missing %s: %v", ErrContractViolation, EntrySymbol, err)}
	}
	entry, ok := asEntry(sym)
	if !ok {
		b.discard()
		return nil, &LoadError{Path: path, Stage: StageResolve,
			Err: fmt.Errorf("%w: %s has type %T", ErrContractViolation, EntrySymbol, sym)}
	}
	b.state = stateResolved

	if err := b.init(entry, env); err != nil {
		return nil, err
	}
	return b, nil
}

// newBuiltin runs the load contract for an in-process entry point.
func newBuiltin(key string, entry EntryFunc, env Env) (*Binding, error) {
	b := &Binding{
		path:   "builtin:" + key,
		handle: builtinHandle{entry: entry},
		state:  stateResolved,
	}
	if entry == nil {
		b.discard()
		return nil, &LoadError{Path: b.path, Stage: StageResolve,
			Err: fmt.Errorf("%w: nil entry", ErrContractViolation)}
	}
	if err := b.init(entry, env); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Binding) init(entry EntryFunc, env Env) error {
	ctrl := env.newCtrl()

	ok, err := callEntry(entry, ctrl)
	if err != nil {
		b.discard()
		return &LoadError{Path: b.path, Stage: StageInit, Err: fmt.Errorf("%w: %v", ErrContractViolation, err)}
	}
	if !ok {
		b.discard()
		return &LoadError{Path: b.path, Stage: StageInit, Err: fmt.Errorf("%w: init returned false", ErrContractViolation)}
	}
	if ctrl.Name == "" {
		// Init succeeded, so whatever it set up must be released.
		callFinalize(b.path, ctrl.Finalize)
		b.discard()
		return &LoadError{Path: b.path, Stage: StageInit, Err: fmt.Errorf("%w: init left name empty", ErrContractViolation)}
	}

	b.name = ctrl.Name
	b.ctrl = ctrl
	b.state = stateReady
	logging.BindingsDebug("module %s ready as %q", b.path, b.name)
	return nil
}

// callEntry turns a panicking init into an error.
func callEntry(entry EntryFunc, ctrl *Ctrl) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("init panicked: %v", r)
		}
	}()
	return entry(ctrl), nil
}

// callFinalize runs a finalize hook. A panic is logged and swallowed so the
// module is still closed.
func callFinalize(path string, finalize func()) {
	if finalize == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.BindingsError("finalize %s panicked: %v", path, r)
		}
	}()
	finalize()
}

// release finalizes a ready binding and closes its module.
func (b *Binding) release() {
	if b.state == stateReady {
		callFinalize(b.path, b.ctrl.Finalize)
	}
	b.discard()
}

// discard closes the module without finalizing and drops everything the
// binding referenced.
func (b *Binding) discard() {
	if b.handle != nil {
		if err := b.handle.Close(); err != nil {
			logging.BindingsWarn("closing %s: %v", b.path, err)
		}
	}
	b.handle = nil
	b.ctrl = nil
	b.catalog = nil
	b.state = stateUnloaded
}
