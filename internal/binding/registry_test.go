package binding

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"gladebind/internal/logging"
)

func TestLoadAllRegistersValidModule(t *testing.T) {
	opener := newFakeOpener()
	rt := &fakeRuntime{}
	opener.add("demo.so", map[string]any{EntrySymbol: rt.entry("demo")})

	r := NewRegistry(Options{PluginsDir: pluginsDir(t, "demo.so"), Opener: opener})
	assert.Equal(t, StateUninitialized, r.State())

	report, err := r.LoadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"demo"}, report.Loaded)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, StateReady, r.State())

	b := r.Get("demo")
	require.NotNil(t, b)
	assert.Equal(t, "demo", b.Name())
	assert.True(t, b.Loaded())
	assert.NotNil(t, b.Catalog())
	assert.Equal(t, []Capability{CapFinalize, CapLibraryLoad, CapRunScript}, b.Capabilities())
	assert.Equal(t, 1, opener.open())
}

func TestLoadAllRejectsContractViolations(t *testing.T) {
	tests := []struct {
		name    string
		symbols map[string]any
	}{
		{name: "missing entry symbol", symbols: map[string]any{"Other": bareEntry("x")}},
		{name: "wrong symbol type", symbols: map[string]any{EntrySymbol: "not a func"}},
		{name: "init returns false", symbols: map[string]any{EntrySymbol: EntryFunc(func(c *Ctrl) bool {
			c.Name = "quitter"
			return false
		})}},
		{name: "init leaves name empty", symbols: map[string]any{EntrySymbol: func(c *Ctrl) bool { return true }}},
		{name: "init panics", symbols: map[string]any{EntrySymbol: EntryFunc(func(c *Ctrl) bool { panic("boom") })}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			restore := logging.Replace(zap.New(core))
			defer restore()

			opener := newFakeOpener()
			opener.add("bad.so", tt.symbols)
			r := NewRegistry(Options{PluginsDir: pluginsDir(t, "bad.so"), Opener: opener})

			report, err := r.LoadAll()
			require.NoError(t, err)

			assert.Empty(t, r.GetAll())
			assert.Equal(t, 0, opener.open(), "module handle leaked")
			require.Len(t, report.Skipped, 1)
			assert.ErrorIs(t, report.Skipped[0].Err, ErrContractViolation)

			var loadErr *LoadError
			require.True(t, errors.As(report.Skipped[0].Err, &loadErr))
			assert.Equal(t, "bad.so", filepath.Base(loadErr.Path))

			assert.Equal(t, 1, logs.FilterLoggerName("bindings").FilterLevelExact(zapcore.WarnLevel).Len())
		})
	}
}

func TestLoadAllEmptyNameStillFinalizes(t *testing.T) {
	finalized := 0
	opener := newFakeOpener()
	opener.add("anon.so", map[string]any{EntrySymbol: EntryFunc(func(c *Ctrl) bool {
		c.Finalize = func() { finalized++ }
		return true
	})})

	r := NewRegistry(Options{PluginsDir: pluginsDir(t, "anon.so"), Opener: opener})
	_, err := r.LoadAll()
	require.NoError(t, err)

	assert.Equal(t, 1, finalized)
	assert.Equal(t, 0, r.Count())
}

func TestLoadAllContinuesPastFailures(t *testing.T) {
	opener := newFakeOpener()
	opener.add("a.so", map[string]any{EntrySymbol: bareEntry("alpha")})
	opener.add("b.so", map[string]any{})
	opener.add("c.so", map[string]any{EntrySymbol: bareEntry("gamma")})

	dir := pluginsDir(t, "a.so", "b.so", "c.so", "README.txt", "notes.so.bak")
	r := NewRegistry(Options{PluginsDir: dir, Opener: opener})

	report, err := r.LoadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "gamma"}, r.Names())
	assert.Len(t, report.Skipped, 1)
	assert.Equal(t, 2, opener.open())
}

func TestLoadAllOpenFailureIsSkipped(t *testing.T) {
	opener := newFakeOpener()
	r := NewRegistry(Options{PluginsDir: pluginsDir(t, "garbage.so"), Opener: opener})

	report, err := r.LoadAll()
	require.NoError(t, err)

	require.Len(t, report.Skipped, 1)
	var loadErr *LoadError
	require.ErrorAs(t, report.Skipped[0].Err, &loadErr)
	assert.Equal(t, StageOpen, loadErr.Stage)
	assert.Equal(t, 0, r.Count())
}

func TestLoadAllMissingPluginsDir(t *testing.T) {
	r := NewRegistry(Options{
		PluginsDir: filepath.Join(t.TempDir(), "nope"),
		Opener:     newFakeOpener(),
	})

	report, err := r.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, report.Loaded)
	assert.Equal(t, StateReady, r.State())
}

func TestLoadAllIsIdempotent(t *testing.T) {
	opener := newFakeOpener()
	opener.add("demo.so", map[string]any{EntrySymbol: bareEntry("demo")})
	r := NewRegistry(Options{PluginsDir: pluginsDir(t, "demo.so"), Opener: opener})

	_, err := r.LoadAll()
	require.NoError(t, err)
	report, err := r.LoadAll()
	require.NoError(t, err)

	assert.Empty(t, report.Loaded)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, 1, opener.opens, "already loaded module was reopened")
	assert.Equal(t, 1, r.Count())
}

func TestLoadAllDuplicateNameDiscarded(t *testing.T) {
	first, second := &fakeRuntime{}, &fakeRuntime{}
	opener := newFakeOpener()
	opener.add("a.so", map[string]any{EntrySymbol: first.entry("same")})
	opener.add("b.so", map[string]any{EntrySymbol: second.entry("same")})
	r := NewRegistry(Options{PluginsDir: pluginsDir(t, "a.so", "b.so"), Opener: opener})

	report, err := r.LoadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"same"}, r.Names())
	require.Len(t, report.Skipped, 1)
	assert.ErrorIs(t, report.Skipped[0].Err, ErrDuplicateBinding)
	assert.Equal(t, 0, first.finalized)
	assert.Equal(t, 1, second.finalized)
	assert.Equal(t, 1, opener.open())
}

func TestBuiltinsLoadBeforePlugins(t *testing.T) {
	opener := newFakeOpener()
	opener.add("zeta.so", map[string]any{EntrySymbol: bareEntry("zeta")})
	r := NewRegistry(Options{
		PluginsDir: pluginsDir(t, "zeta.so"),
		Opener:     opener,
		Builtins: map[string]EntryFunc{
			"wasm":  bareEntry("wasm"),
			"yaegi": bareEntry("go"),
			"nil":   nil,
		},
	})

	report, err := r.LoadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"wasm", "go", "zeta"}, r.Names())
	assert.Equal(t, "builtin:yaegi", r.Get("go").Path())
	require.Len(t, report.Skipped, 1)
	assert.ErrorIs(t, report.Skipped[0].Err, ErrContractViolation)
}

func TestGetAllStableOrder(t *testing.T) {
	opener := newFakeOpener()
	for _, f := range []string{"c.so", "a.so", "b.so"} {
		opener.add(f, map[string]any{EntrySymbol: bareEntry(f[:1])})
	}
	r := NewRegistry(Options{PluginsDir: pluginsDir(t, "c.so", "a.so", "b.so"), Opener: opener})
	_, err := r.LoadAll()
	require.NoError(t, err)

	first := r.GetAll()
	second := r.GetAll()
	require.Len(t, first, 3)
	for i := range first {
		assert.Same(t, first[i], second[i])
	}
	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
	assert.Nil(t, r.Get("missing"))
	assert.False(t, r.Has("missing"))
}

func TestUnloadAllThenLoadAllRoundTrip(t *testing.T) {
	factory, user := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(factory, "scripts", "demo", "Hello.go"))
	writeFile(t, filepath.Join(user, "glade", "scripts", "demo", "GtkButton", "Wave.go"))

	rt := &fakeRuntime{}
	opener := newFakeOpener()
	opener.add("demo.so", map[string]any{EntrySymbol: rt.entry("demo")})
	opener.add("other.so", map[string]any{EntrySymbol: bareEntry("other")})
	r := NewRegistry(Options{
		PluginsDir:  pluginsDir(t, "demo.so", "other.so"),
		Opener:      opener,
		ScriptRoots: scriptRoots(factory, user),
	})

	_, err := r.LoadAll()
	require.NoError(t, err)
	before := r.Names()
	stale := r.Get("demo")
	beforeGlobal := names(stale.Catalog().ListGlobal())

	r.UnloadAll()
	assert.Equal(t, StateUninitialized, r.State())
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 1, rt.finalized)
	assert.Equal(t, 0, opener.open())
	assert.False(t, stale.Loaded())

	_, err = stale.RunScript(t.Context(), "x", nil)
	assert.ErrorIs(t, err, ErrBindingUnloaded)

	_, err = r.LoadAll()
	require.NoError(t, err)
	if diff := cmp.Diff(before, r.Names()); diff != "" {
		t.Errorf("registry changed across reload (-before +after):\n%s", diff)
	}
	assert.Equal(t, beforeGlobal, names(r.Get("demo").Catalog().ListGlobal()))
	assert.Equal(t, []string{"Wave"}, names(r.Get("demo").Catalog().ListForOwner("GtkButton")))
}

func TestUnloadAllOnEmptyRegistry(t *testing.T) {
	r := NewRegistry(Options{Opener: newFakeOpener()})
	r.UnloadAll()
	assert.Equal(t, StateUninitialized, r.State())
}

func TestUnloadAllSurvivesPanickingFinalize(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := logging.Replace(zap.New(core))
	defer restore()

	other := &fakeRuntime{}
	r := NewRegistry(Options{
		Opener: newFakeOpener(),
		Builtins: map[string]EntryFunc{
			"a": func(c *Ctrl) bool {
				c.Name = "a"
				c.Finalize = func() { panic("finalize boom") }
				return true
			},
			"b": other.entry("b"),
		},
	})
	_, err := r.LoadAll()
	require.NoError(t, err)
	require.Equal(t, 2, r.Count())

	assert.NotPanics(t, r.UnloadAll)
	assert.Equal(t, StateUninitialized, r.State())
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 1, other.finalized)
	assert.Equal(t, 1, logs.FilterMessageSnippet("finalize boom").Len())

	_, err = r.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.Names())
	r.UnloadAll()
}

func TestLoadAllEmptyNamePanickingFinalizeContinues(t *testing.T) {
	opener := newFakeOpener()
	opener.add("anon.so", map[string]any{EntrySymbol: EntryFunc(func(c *Ctrl) bool {
		c.Finalize = func() { panic("finalize boom") }
		return true
	})})
	opener.add("zeta.so", map[string]any{EntrySymbol: bareEntry("zeta")})

	r := NewRegistry(Options{PluginsDir: pluginsDir(t, "anon.so", "zeta.so"), Opener: opener})

	var report *LoadReport
	var err error
	require.NotPanics(t, func() { report, err = r.LoadAll() })
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta"}, r.Names())
	require.Len(t, report.Skipped, 1)
	assert.ErrorIs(t, report.Skipped[0].Err, ErrContractViolation)
	assert.Equal(t, 1, opener.open())
}

func TestRescanScripts(t *testing.T) {
	factory := t.TempDir()
	writeFile(t, filepath.Join(factory, "scripts", "demo", "One.go"))

	r := NewRegistry(Options{
		Builtins:    map[string]EntryFunc{"demo": bareEntry("demo")},
		Opener:      newFakeOpener(),
		ScriptRoots: scriptRoots(factory, t.TempDir()),
	})
	_, err := r.LoadAll()
	require.NoError(t, err)
	old := r.Get("demo").Catalog()

	writeFile(t, filepath.Join(factory, "scripts", "demo", "Two.go"))
	require.NoError(t, r.RescanScripts("demo"))

	assert.Equal(t, []string{"One", "Two"}, names(r.Get("demo").Catalog().ListGlobal()))
	assert.Equal(t, []string{"One"}, names(old.ListGlobal()), "old catalog must not change")
	assert.ErrorIs(t, r.RescanScripts("ghost"), ErrBindingNotFound)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "shutting-down", StateShuttingDown.String())
}
