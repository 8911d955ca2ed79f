package typebridge

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"gladebind/internal/host"
	"gladebind/internal/logging"
)

type stubClass struct {
	name   string
	parent *stubClass
}

// stubRuntime records every registration and can be told to reject a name.
type stubRuntime struct {
	classes    map[string]*stubClass
	registered []string
	reject     map[string]bool
}

func newStubRuntime() *stubRuntime {
	return &stubRuntime{classes: map[string]*stubClass{}, reject: map[string]bool{}}
}

func (r *stubRuntime) Class(name string) (*stubClass, error) {
	if c, ok := r.classes[name]; ok {
		return c, nil
	}
	c := &stubClass{name: name}
	r.classes[name] = c
	return c, nil
}

func (r *stubRuntime) Register(class, parent *stubClass) error {
	if r.reject[class.name] {
		return errors.New("rejected by runtime")
	}
	class.parent = parent
	r.registered = append(r.registered, class.name)
	return nil
}

type fixture struct {
	types      *host.TypeSystem
	root       host.TypeID
	p2, p1, tt host.TypeID
	other      host.TypeID
	orphan     host.TypeID
}

// newFixture builds T -> P1 -> P2 -> Root, plus Other -> P2 and a parentless
// Orphan.
func newFixture(t *testing.T) fixture {
	t.Helper()
	ts := host.NewTypeSystem()
	reg := func(name string, parent host.TypeID) host.TypeID {
		id, err := ts.Register(host.TypeSpec{Name: name, Parent: parent})
		require.NoError(t, err)
		return id
	}
	f := fixture{types: ts}
	f.root = reg("Root", host.InvalidType)
	f.p2 = reg("P2", f.root)
	f.p1 = reg("P1", f.p2)
	f.tt = reg("T", f.p1)
	f.other = reg("Other", f.p2)
	f.orphan = reg("Orphan", host.InvalidType)
	return f
}

func TestEnsureRegistersAncestorsParentFirst(t *testing.T) {
	f := newFixture(t)
	rt := newStubRuntime()
	base := &stubClass{name: "base"}
	b := New[*stubClass](f.types, rt, f.root, base)

	class, err := b.Ensure(f.tt)
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"P2", "P1", "T"}, rt.registered); diff != "" {
		t.Errorf("registration order (-want +got):\n%s", diff)
	}
	assert.Equal(t, "T", class.name)
	assert.Equal(t, "P1", class.parent.name)
	assert.Same(t, base, class.parent.parent.parent)
	assert.Equal(t, 3, b.Len())
}

func TestEnsureMemoizes(t *testing.T) {
	f := newFixture(t)
	rt := newStubRuntime()
	b := New[*stubClass](f.types, rt, f.root, &stubClass{name: "base"})

	first, err := b.Ensure(f.tt)
	require.NoError(t, err)
	second, err := b.Ensure(f.tt)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// A sibling reuses the memoized P2.
	_, err = b.Ensure(f.other)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, n := range rt.registered {
		seen[n]++
	}
	for name, n := range seen {
		assert.Equal(t, 1, n, "type %s registered more than once", name)
	}
	assert.Equal(t, []string{"P2", "P1", "T", "Other"}, rt.registered)
}

func TestEnsureRootAndParentlessReturnBase(t *testing.T) {
	f := newFixture(t)
	rt := newStubRuntime()
	base := &stubClass{name: "base"}
	b := New[*stubClass](f.types, rt, f.root, base)

	c, err := b.Ensure(f.root)
	require.NoError(t, err)
	assert.Same(t, base, c)

	c, err = b.Ensure(f.orphan)
	require.NoError(t, err)
	assert.Same(t, base, c)

	assert.Empty(t, rt.registered)
	assert.Equal(t, 0, b.Len())
	assert.Same(t, base, b.Base())
}

func TestEnsureFailureKeepsAncestors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := logging.Replace(zap.New(core))
	defer restore()

	f := newFixture(t)
	rt := newStubRuntime()
	rt.reject["T"] = true
	b := New[*stubClass](f.types, rt, f.root, &stubClass{name: "base"})

	_, err := b.Ensure(f.tt)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegistration)

	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "T", regErr.Type)
	assert.Equal(t, 1, logs.FilterLoggerName("bridge").FilterMessageSnippet("mirroring T").Len())

	_, ok := b.Lookup(f.p1)
	assert.True(t, ok, "P1 should stay memoized")
	_, ok = b.Lookup(f.tt)
	assert.False(t, ok)

	// Once the runtime accepts it, only T is registered.
	rt.reject["T"] = false
	_, err = b.Ensure(f.tt)
	require.NoError(t, err)
	assert.Equal(t, []string{"P2", "P1", "T"}, rt.registered)
}

func TestEnsureOverDefaultCatalog(t *testing.T) {
	ws, err := host.NewDefaultWorkspace()
	require.NoError(t, err)
	rt := newStubRuntime()
	b := New[*stubClass](ws.Types(), rt, ws.AdaptorRoot(), &stubClass{name: "GladeWidgetAdaptor"})

	check, ok := ws.Types().Lookup("GtkCheckButton")
	require.True(t, ok)
	_, err = b.Ensure(check)
	require.NoError(t, err)

	want := []string{"GtkWidget", "GtkContainer", "GtkBin", "GtkButton", "GtkToggleButton", "GtkCheckButton"}
	if diff := cmp.Diff(want, rt.registered); diff != "" {
		t.Errorf("registration order (-want +got):\n%s", diff)
	}
}
