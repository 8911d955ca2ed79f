package binding

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"gladebind/internal/logging"
)

// ExitFailed is the exit indication returned when a script did not run.
const ExitFailed = -1

func (b *Binding) usable(capability Capability) error {
	if b.state != stateReady {
		return fmt.Errorf("%w: %s", ErrBindingUnloaded, b.name)
	}
	if !b.ctrl.Has(capability) {
		return fmt.Errorf("%w: %s has no %s", ErrUnsupported, b.name, capability)
	}
	return nil
}

// foreign attributes a runtime error to this binding.
func (b *Binding) foreign(op string, err error) error {
	var fre *ForeignRuntimeError
	if errors.As(err, &fre) {
		if fre.Binding == "" {
			fre.Binding = b.name
		}
		return fre
	}
	return &ForeignRuntimeError{Binding: b.name, Op: op, Diagnostic: err.Error(), Err: err}
}

// LibraryLoad makes the binding's runtime import and execute the named
// library. It is a no-op when the binding lacks the capability.
func (b *Binding) LibraryLoad(ctx context.Context, name string) error {
	if err := b.usable(CapLibraryLoad); err != nil {
		if errors.Is(err, ErrUnsupported) {
			logging.BindingsDebug("%s: library_load %s ignored: %v", b.name, name, err)
			return nil
		}
		return err
	}
	if err := b.ctrl.LibraryLoad(ctx, name); err != nil {
		return b.foreign("library_load", err)
	}
	logging.BindingsDebug("%s: loaded library %s", b.name, name)
	return nil
}

// RunScript executes the file at path with exactly argv as its argument
// list and returns the runtime's exit indication. It blocks until the
// runtime finishes.
func (b *Binding) RunScript(ctx context.Context, path string, argv []string) (int, error) {
	if err := b.usable(CapRunScript); err != nil {
		return ExitFailed, err
	}

	runID := uuid.NewString()
	args := append([]string{}, argv...)
	logging.Scripts("%s: run %s argv=%q run_id=%s", b.name, path, args, runID)

	code, err := b.ctrl.RunScript(ctx, path, args)
	if err != nil {
		logging.ScriptsWarn("%s: run %s failed (run_id=%s): %v", b.name, path, runID, err)
		return code, b.foreign("run_script", err)
	}
	logging.ScriptsDebug("%s: run %s exited %d run_id=%s", b.name, path, code, runID)
	return code, nil
}

// ConsoleNew returns an interactive console model for the runtime.
func (b *Binding) ConsoleNew() (tea.Model, error) {
	if err := b.usable(CapConsoleNew); err != nil {
		return nil, err
	}
	m, err := b.ctrl.ConsoleNew()
	if err != nil {
		return nil, b.foreign("console_new", err)
	}
	return m, nil
}

// LibraryLoad forwards to the named binding.
func (r *Registry) LibraryLoad(ctx context.Context, binding, library string) error {
	b, err := r.lookup(binding)
	if err != nil {
		return err
	}
	return b.LibraryLoad(ctx, library)
}

// RunScript forwards to the named binding.
func (r *Registry) RunScript(ctx context.Context, binding, path string, argv []string) (int, error) {
	b, err := r.lookup(binding)
	if err != nil {
		return ExitFailed, err
	}
	return b.RunScript(ctx, path, argv)
}
