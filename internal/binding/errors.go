package binding

import (
	"errors"
	"fmt"
)

// Binding errors.
var (
	// ErrContractViolation is returned when a module is not a binding: the
	// entry symbol is missing or mistyped, init fails, or init leaves the
	// name empty.
	ErrContractViolation = errors.New("binding contract violation")

	// ErrUnsupported is returned when a binding lacks a capability.
	ErrUnsupported = errors.New("capability not supported by binding")

	// ErrForeignRuntime marks errors raised inside a binding's runtime.
	ErrForeignRuntime = errors.New("foreign runtime error")

	// ErrBindingNotFound is returned when no binding has the given name.
	ErrBindingNotFound = errors.New("binding not found")

	// ErrDuplicateBinding is returned when a module registers a name that
	// is already loaded.
	ErrDuplicateBinding = errors.New("binding already loaded")

	// ErrBindingUnloaded is returned when a binding is used after UnloadAll.
	ErrBindingUnloaded = errors.New("binding has been unloaded")

	// ErrShuttingDown is returned by LoadAll while UnloadAll is running.
	ErrShuttingDown = errors.New("registry is shutting down")

	// ErrPluginsUnsupported is returned by the plugin opener on platforms
	// without Go plugin support.
	ErrPluginsUnsupported = errors.New("dynamic plugins are not supported on this platform")

	// ErrActionNotFound is returned when a script action id is unknown.
	ErrActionNotFound = errors.New("script action not found")
)

// LoadStage names the step of the load contract that failed.
type LoadStage string

const (
	StageOpen    LoadStage = "open"
	StageResolve LoadStage = "resolve"
	StageInit    LoadStage = "init"
	StageAccept  LoadStage = "accept"
)

// LoadError describes why one module was not registered.
type LoadError struct {
	Path  string
	Stage LoadStage
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s (%s): %v", e.Path, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ForeignRuntimeError carries the runtime's own diagnostic text.
type ForeignRuntimeError struct {
	Binding    string
	Op         string
	Diagnostic string
	Err        error
}

func (e *ForeignRuntimeError) Error() string {
	if e.Binding == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Diagnostic)
	}
	return fmt.Sprintf("%s: %s: %s", e.Binding, e.Op, e.Diagnostic)
}

func (e *ForeignRuntimeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrForeignRuntime}
	}
	return []error{ErrForeignRuntime, e.Err}
}

// NewForeignRuntimeError wraps err as a runtime failure of op.
func NewForeignRuntimeError(op string, err error) *ForeignRuntimeError {
	return &ForeignRuntimeError{Op: op, Diagnostic: err.Error(), Err: err}
}
