package yaegirt

import (
	"fmt"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// DefaultAllowedPackages is the stdlib whitelist used when settings name
// none. Packages reaching the filesystem, processes or the network are
// left out.
var DefaultAllowedPackages = []string{
	"bytes", "encoding/base64", "encoding/json", "errors", "fmt", "math",
	"path", "path/filepath", "regexp", "sort", "strconv", "strings", "time",
	"unicode",
}

// importGate decides which imports a script may use.
type importGate struct {
	mu           sync.RWMutex
	allowed      map[string]bool
	unrestricted bool
}

func newImportGate(packages []string, unrestricted bool) *importGate {
	g := &importGate{allowed: make(map[string]bool), unrestricted: unrestricted}
	for _, p := range packages {
		if p = strings.TrimSpace(p); p != "" {
			g.allowed[p] = true
		}
	}
	g.allowed[hostPackage] = true
	return g
}

func (g *importGate) allow(pkg string) {
	g.mu.Lock()
	g.allowed[pkg] = true
	g.mu.Unlock()
}

func (g *importGate) admits(pkg string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.allowed[pkg]
}

// symbols returns the stdlib exports the gate admits.
func (g *importGate) symbols() interp.Exports {
	if g.unrestricted {
		return stdlib.Symbols
	}
	out := make(interp.Exports)
	for key, syms := range stdlib.Symbols {
		i := strings.LastIndexByte(key, '/')
		if i < 0 {
			continue
		}
		if g.admits(key[:i]) {
			out[key] = syms
		}
	}
	return out
}

// check parses only the import block of src and rejects imports outside the
// gate.
func (g *importGate) check(filename string, src []byte) error {
	f, err := parser.ParseFile(token.NewFileSet(), filename, src, parser.ImportsOnly)
	if err != nil {
		return err
	}
	if g.unrestricted {
		return nil
	}

	var forbidden []string
	for _, imp := range f.Imports {
		pkg, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return err
		}
		if !g.admits(pkg) {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v (allowed: %v)", forbidden, g.list())
	}
	return nil
}

func (g *importGate) list() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pkgs := make([]string, 0, len(g.allowed))
	for p := range g.allowed {
		pkgs = append(pkgs, p)
	}
	sort.Strings(pkgs)
	return pkgs
}
