// Package yaegirt is the Go-source scripting binding. Scripts are plain Go
// files evaluated by the yaegi interpreter, one fresh interpreter per run.
// The host is reachable through the "glade" package.
package yaegirt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib/unrestricted"

	"gladebind/internal/binding"
	"gladebind/internal/console"
	"gladebind/internal/host"
	"gladebind/internal/logging"
	"gladebind/internal/typebridge"
)

// Name is the binding name the runtime reports at init.
const Name = "go"

// ExitRuntimeError is the exit indication for a script that failed inside
// the interpreter.
const ExitRuntimeError = 1

// adaptorBase is the native root every mirrored class descends from.
const adaptorBase = "GladeWidgetAdaptor"

// Options configures a Runtime.
type Options struct {
	Host            host.App
	GoPath          string
	AllowedPackages []string
	Unrestricted    bool
	Stdout          io.Writer
	Stderr          io.Writer
}

// Runtime is one yaegi-backed binding instance.
type Runtime struct {
	host   host.App
	stdout io.Writer
	stderr io.Writer
	goPath string
	gate   *importGate

	mu        sync.Mutex // guards classes, bridge and libraries
	classes   *ClassRegistry
	bridge    *typebridge.Bridge[*Class]
	libraries []string

	sessionMu  sync.Mutex
	session    *interp.Interpreter
	sessionOut *captureWriter
	closed     bool
}

// New creates a runtime. A nil host gets a default workspace.
func New(opts Options) (*Runtime, error) {
	h := opts.Host
	if h == nil {
		ws, err := host.NewDefaultWorkspace()
		if err != nil {
			return nil, err
		}
		h = ws
	}
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	pkgs := opts.AllowedPackages
	if len(pkgs) == 0 {
		pkgs = DefaultAllowedPackages
	}

	classes := NewClassRegistry(h)
	return &Runtime{
		host:    h,
		stdout:  stdout,
		stderr:  stderr,
		goPath:  opts.GoPath,
		gate:    newImportGate(pkgs, opts.Unrestricted),
		classes: classes,
		bridge:  typebridge.New[*Class](h.Types(), classes, h.AdaptorRoot(), classes.Base(adaptorBase)),
	}, nil
}

// Init is the binding entry point.
func Init(ctrl *binding.Ctrl) bool {
	opts := Options{
		Host:   ctrl.Host,
		GoPath: ctrl.Setting("yaegi.gopath", ""),
		Stdout: ctrl.Stdout,
		Stderr: ctrl.Stderr,
	}
	if opts.GoPath == "" {
		opts.GoPath = ctrl.ModulesDir
	}
	if pkgs := ctrl.Setting("yaegi.allowed_packages", ""); pkgs != "" {
		opts.AllowedPackages = strings.Split(pkgs, ",")
	}
	if v := ctrl.Setting("yaegi.unrestricted", ""); v != "" {
		u, err := strconv.ParseBool(v)
		if err != nil {
			logging.RuntimeWarn("yaegi: bad yaegi.unrestricted %q: %v", v, err)
			return false
		}
		opts.Unrestricted = u
	}

	rt, err := New(opts)
	if err != nil {
		logging.RuntimeError("yaegi: %v", err)
		return false
	}
	ctrl.Name = Name
	ctrl.Finalize = rt.Close
	ctrl.LibraryLoad = rt.LibraryLoad
	ctrl.RunScript = rt.RunScript
	ctrl.ConsoleNew = rt.ConsoleNew
	logging.RuntimeDebug("yaegi: initialized gopath=%q unrestricted=%v", opts.GoPath, opts.Unrestricted)
	return true
}

// Adaptor returns the interpreter class mirroring the adaptor for the named
// host class, mirroring its ancestry first.
func (rt *Runtime) Adaptor(class string) (*Class, error) {
	t, err := rt.host.AdaptorFor(class)
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.bridge.Ensure(t)
}

// Classes returns the mirrored class names in registration order.
func (rt *Runtime) Classes() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.classes.Registered()
}

// Libraries returns the names passed to LibraryLoad so far.
func (rt *Runtime) Libraries() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]string(nil), rt.libraries...)
}

func (rt *Runtime) newInterpreter(state *runState, stdout, stderr io.Writer) (*interp.Interpreter, error) {
	i := interp.New(interp.Options{
		GoPath:       rt.goPath,
		Stdout:       stdout,
		Stderr:       stderr,
		Args:         state.args,
		Unrestricted: rt.gate.unrestricted,
	})
	if err := i.Use(rt.gate.symbols()); err != nil {
		return nil, err
	}
	if rt.gate.unrestricted {
		if err := i.Use(unrestricted.Symbols); err != nil {
			return nil, err
		}
	}
	if err := i.Use(rt.hostSymbols(state)); err != nil {
		return nil, err
	}
	return i, nil
}

// RunScript evaluates the Go file at path in a fresh interpreter. The exit
// indication is whatever the script passed to glade.SetExitCode, 0 when it
// never called it.
func (rt *Runtime) RunScript(ctx context.Context, path string, argv []string) (int, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return binding.ExitFailed, err
	}
	if err := rt.gate.check(path, src); err != nil {
		return ExitRuntimeError, binding.NewForeignRuntimeError("run_script", err)
	}

	state := &runState{args: append([]string(nil), argv...)}
	i, err := rt.newInterpreter(state, rt.stdout, rt.stderr)
	if err != nil {
		return binding.ExitFailed, err
	}

	logging.RuntimeDebug("yaegi: run %s argv=%v", path, argv)
	if _, err := i.EvalWithContext(ctx, string(src)); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ExitRuntimeError, err
		}
		return ExitRuntimeError, binding.NewForeignRuntimeError("run_script", err)
	}
	return state.exitCode, nil
}

// LibraryLoad imports the named package into the session interpreter,
// running its init code, and admits it for later scripts.
func (rt *Runtime) LibraryLoad(ctx context.Context, name string) error {
	i, err := rt.sessionInterp()
	if err != nil {
		return err
	}

	rt.sessionMu.Lock()
	_, err = i.EvalWithContext(ctx, fmt.Sprintf("import %q", name))
	rt.sessionMu.Unlock()
	if err != nil {
		return binding.NewForeignRuntimeError("library_load", err)
	}

	rt.gate.allow(name)
	rt.mu.Lock()
	rt.libraries = append(rt.libraries, name)
	rt.mu.Unlock()
	logging.Runtime("yaegi: library %s loaded", name)
	return nil
}

// ConsoleNew returns an interactive console over the session interpreter.
func (rt *Runtime) ConsoleNew() (tea.Model, error) {
	if _, err := rt.sessionInterp(); err != nil {
		return nil, err
	}
	return console.New(Name, console.EvalFunc(rt.evalLine)), nil
}

// evalLine evaluates one console line and renders what it printed and
// returned.
func (rt *Runtime) evalLine(line string) (string, error) {
	rt.sessionMu.Lock()
	defer rt.sessionMu.Unlock()
	if rt.session == nil {
		return "", binding.ErrBindingUnloaded
	}

	rt.sessionOut.capture()
	v, err := rt.session.Eval(line)
	printed := strings.TrimRight(rt.sessionOut.release(), "\n")
	if err != nil {
		return printed, binding.NewForeignRuntimeError("eval", err)
	}

	result := formatValue(v)
	switch {
	case printed == "":
		return result, nil
	case result == "":
		return printed, nil
	}
	return printed + "\n" + result, nil
}

func formatValue(v reflect.Value) string {
	if !v.IsValid() || !v.CanInterface() {
		return ""
	}
	switch v.Kind() {
	case reflect.Func:
		return ""
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return "nil"
		}
	}
	return fmt.Sprint(v.Interface())
}

func (rt *Runtime) sessionInterp() (*interp.Interpreter, error) {
	rt.sessionMu.Lock()
	defer rt.sessionMu.Unlock()
	if rt.closed {
		return nil, binding.ErrBindingUnloaded
	}
	if rt.session != nil {
		return rt.session, nil
	}

	out := &captureWriter{dst: rt.stdout}
	i, err := rt.newInterpreter(&runState{}, out, rt.stderr)
	if err != nil {
		return nil, err
	}
	rt.session, rt.sessionOut = i, out
	return i, nil
}

// Close drops the session interpreter. Scripts already running keep their
// own interpreters.
func (rt *Runtime) Close() {
	rt.sessionMu.Lock()
	defer rt.sessionMu.Unlock()
	rt.session = nil
	rt.closed = true
	logging.RuntimeDebug("yaegi: finalized")
}

// captureWriter forwards to dst unless a console line is being evaluated.
type captureWriter struct {
	mu        sync.Mutex
	dst       io.Writer
	buf       bytes.Buffer
	capturing bool
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.capturing {
		return w.buf.Write(p)
	}
	return w.dst.Write(p)
}

func (w *captureWriter) capture() {
	w.mu.Lock()
	w.capturing = true
	w.buf.Reset()
	w.mu.Unlock()
}

func (w *captureWriter) release() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.capturing = false
	return w.buf.String()
}
