// Package binding loads language bindings, indexes their scripts and
// forwards host calls into their runtimes.
package binding

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"gladebind/internal/host"
)

// EntrySymbol is the one symbol a binding module must export. Its type must
// be func(*Ctrl) bool.
const EntrySymbol = "BindingInit"

// EntryFunc is a binding's init function. It returns true and sets
// ctrl.Name to accept the load.
type EntryFunc func(ctrl *Ctrl) bool

// Ctrl is the control block handed to a binding's init. The registry fills
// the input fields; init fills Name and whichever capabilities it offers.
// A nil capability is absent.
type Ctrl struct {
	// Inputs.
	Host       host.App
	ModulesDir string
	Stdout     io.Writer
	Stderr     io.Writer
	Settings   map[string]string

	// Outputs.
	Name        string
	Finalize    func()
	LibraryLoad func(ctx context.Context, name string) error
	RunScript   func(ctx context.Context, path string, argv []string) (int, error)
	ConsoleNew  func() (tea.Model, error)
}

// Setting returns a runtime setting or def when unset.
func (c *Ctrl) Setting(key, def string) string {
	if v, ok := c.Settings[key]; ok {
		return v
	}
	return def
}

// Capability is one optional vtable entry.
type Capability int

const (
	CapFinalize Capability = iota
	CapLibraryLoad
	CapRunScript
	CapConsoleNew
)

var capabilityNames = map[Capability]string{
	CapFinalize:    "finalize",
	CapLibraryLoad: "library_load",
	CapRunScript:   "run_script",
	CapConsoleNew:  "console_new",
}

func (c Capability) String() string {
	if n, ok := capabilityNames[c]; ok {
		return n
	}
	return "unknown"
}

// AllCapabilities lists capabilities in vtable order.
var AllCapabilities = []Capability{CapFinalize, CapLibraryLoad, CapRunScript, CapConsoleNew}

// Has reports whether the capability is present.
func (c *Ctrl) Has(capability Capability) bool {
	switch capability {
	case CapFinalize:
		return c.Finalize != nil
	case CapLibraryLoad:
		return c.LibraryLoad != nil
	case CapRunScript:
		return c.RunScript != nil
	case CapConsoleNew:
		return c.ConsoleNew != nil
	}
	return false
}

// Env is the input side of Ctrl shared by every binding the registry loads.
type Env struct {
	Host       host.App
	ModulesDir string
	Stdout     io.Writer
	Stderr     io.Writer
	Settings   map[string]string
}

func (e Env) newCtrl() *Ctrl {
	settings := make(map[string]string, len(e.Settings))
	for k, v := range e.Settings {
		settings[k] = v
	}
	stdout, stderr := e.Stdout, e.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &Ctrl{
		Host:       e.Host,
		ModulesDir: e.ModulesDir,
		Stdout:     stdout,
		Stderr:     stderr,
		Settings:   settings,
	}
}
