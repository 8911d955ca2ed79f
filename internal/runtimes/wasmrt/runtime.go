// Package wasmrt is the WebAssembly scripting binding. Scripts are WASI
// command modules run by wazero; libraries are named modules later scripts
// may import.
package wasmrt

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"gladebind/internal/binding"
	"gladebind/internal/logging"
)

// Name is the binding name the runtime reports at init.
const Name = "wasm"

// ModuleExt is the file extension of script and library modules.
const ModuleExt = ".wasm"

// ExitRuntimeError is the exit indication for a module that trapped or
// failed to compile.
const ExitRuntimeError = 1

// Config holds runtime creation options.
type Config struct {
	// MemoryLimitPages caps guest memory in 64KiB pages. 0 keeps wazero's
	// default.
	MemoryLimitPages uint32
	// ModulesDir is searched for libraries by name.
	ModulesDir string
	Stdout     io.Writer
	Stderr     io.Writer
}

// Runtime owns one wazero runtime with WASI instantiated.
type Runtime struct {
	runtime    wazero.Runtime
	modulesDir string
	stdout     io.Writer
	stderr     io.Writer

	mu        sync.Mutex
	libraries map[string]api.Module
	order     []string
	closed    bool
}

// New creates a runtime and instantiates WASI into it.
func New(ctx context.Context, cfg Config) (*Runtime, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}

	stdout, stderr := cfg.Stdout, cfg.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &Runtime{
		runtime:    r,
		modulesDir: cfg.ModulesDir,
		stdout:     stdout,
		stderr:     stderr,
		libraries:  make(map[string]api.Module),
	}, nil
}

// Init is the binding entry point. The runtime has no console.
func Init(ctrl *binding.Ctrl) bool {
	cfg := Config{
		ModulesDir: ctrl.ModulesDir,
		Stdout:     ctrl.Stdout,
		Stderr:     ctrl.Stderr,
	}
	if v := ctrl.Setting("wasm.memory_limit_pages", ""); v != "" {
		pages, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			logging.RuntimeWarn("wasm: bad wasm.memory_limit_pages %q: %v", v, err)
			return false
		}
		cfg.MemoryLimitPages = uint32(pages)
	}

	rt, err := New(context.Background(), cfg)
	if err != nil {
		logging.RuntimeError("wasm: %v", err)
		return false
	}
	ctrl.Name = Name
	ctrl.Finalize = rt.Close
	ctrl.LibraryLoad = rt.LibraryLoad
	ctrl.RunScript = rt.RunScript
	logging.RuntimeDebug("wasm: initialized memory_limit_pages=%d", cfg.MemoryLimitPages)
	return true
}

// RunScript compiles and runs the module at path. argv becomes the WASI
// argument list unchanged. The exit indication is the module's proc_exit
// code, 0 when _start returns normally.
func (rt *Runtime) RunScript(ctx context.Context, path string, argv []string) (int, error) {
	if err := rt.usable(); err != nil {
		return binding.ExitFailed, err
	}
	wasm, err := os.ReadFile(path)
	if err != nil {
		return binding.ExitFailed, err
	}

	compiled, err := rt.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return ExitRuntimeError, binding.NewForeignRuntimeError("run_script", err)
	}
	defer compiled.Close(ctx)

	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(argv...).
		WithStdout(rt.stdout).
		WithStderr(rt.stderr).
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader).
		WithFSConfig(wazero.NewFSConfig().WithReadOnlyDirMount(filepath.Dir(path), "/"))

	logging.RuntimeDebug("wasm: run %s argv=%v", path, argv)
	mod, err := rt.runtime.InstantiateModule(ctx, compiled, modCfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	return exitIndication(ctx, err)
}

func exitIndication(ctx context.Context, err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case sys.ExitCodeContextCanceled, sys.ExitCodeDeadlineExceeded:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ExitRuntimeError, ctxErr
			}
		}
		return int(int32(exitErr.ExitCode())), nil
	}
	return ExitRuntimeError, binding.NewForeignRuntimeError("run_script", err)
}

// LibraryLoad instantiates the named module so later scripts can import
// it. A bare name is looked up as <modules dir>/<name>.wasm. Loading a
// name twice is a no-op.
func (rt *Runtime) LibraryLoad(ctx context.Context, name string) error {
	if err := rt.usable(); err != nil {
		return err
	}
	modName, path := rt.resolveLibrary(name)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.libraries[modName]; ok {
		return nil
	}

	wasm, err := os.ReadFile(path)
	if err != nil {
		return binding.NewForeignRuntimeError("library_load", err)
	}
	modCfg := wazero.NewModuleConfig().
		WithName(modName).
		WithStartFunctions("_initialize").
		WithStdout(rt.stdout).
		WithStderr(rt.stderr)
	mod, err := rt.runtime.InstantiateWithConfig(ctx, wasm, modCfg)
	if err != nil {
		return binding.NewForeignRuntimeError("library_load", err)
	}
	rt.libraries[modName] = mod
	rt.order = append(rt.order, modName)
	logging.RuntimeDebug("wasm: library %s from %s", modName, path)
	return nil
}

func (rt *Runtime) resolveLibrary(name string) (modName, path string) {
	if strings.HasSuffix(name, ModuleExt) || filepath.IsAbs(name) {
		return strings.TrimSuffix(filepath.Base(name), ModuleExt), name
	}
	return name, filepath.Join(rt.modulesDir, name+ModuleExt)
}

// Libraries returns loaded library names in load order.
func (rt *Runtime) Libraries() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]string(nil), rt.order...)
}

func (rt *Runtime) usable() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return binding.ErrBindingUnloaded
	}
	return nil
}

// Close releases the wazero runtime and every library module.
func (rt *Runtime) Close() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return
	}
	rt.closed = true
	if err := rt.runtime.Close(context.Background()); err != nil {
		logging.RuntimeWarn("wasm: close: %v", err)
	}
	rt.libraries = nil
	logging.RuntimeDebug("wasm: finalized")
}
