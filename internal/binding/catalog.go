package binding

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"gladebind/internal/logging"
)

// Script is one script file. Owner is empty for global scripts.
type Script struct {
	Binding *Binding
	Name    string
	Path    string
	Owner   string
}

// Label is the menu label: the display name with underscores as spaces.
func (s *Script) Label() string {
	return strings.ReplaceAll(s.Name, "_", " ")
}

// DisplayName strips everything from the last '.' of a file name.
func DisplayName(file string) string {
	if i := strings.LastIndexByte(file, '.'); i >= 0 {
		return file[:i]
	}
	return file
}

// Catalog indexes a binding's scripts. It is read-only once built.
type Catalog struct {
	global  []*Script
	byOwner map[string][]*Script
	owners  []string
}

// ListGlobal returns the scripts with no owner, in discovery order.
func (c *Catalog) ListGlobal() []*Script {
	if c == nil {
		return nil
	}
	return append([]*Script(nil), c.global...)
}

// ListForOwner returns the scripts scoped to owner: factory root entries
// first, then user root entries. It is empty when the owner has none.
func (c *Catalog) ListForOwner(owner string) []*Script {
	if c == nil {
		return nil
	}
	return append([]*Script(nil), c.byOwner[owner]...)
}

// Owners returns owner names in first-seen order.
func (c *Catalog) Owners() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.owners...)
}

// Len returns the total number of scripts.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	n := len(c.global)
	for _, s := range c.byOwner {
		n += len(s)
	}
	return n
}

// rootLayer is what one root contributes, collected independently of the
// other roots.
type rootLayer struct {
	global  []string
	owners  []string
	byOwner map[string][]string
}

// scanCatalog collects every root and merges them in root order. A missing
// or unreadable root contributes nothing.
func scanCatalog(b *Binding, roots []string) *Catalog {
	layers := make([]rootLayer, len(roots))

	var g errgroup.Group
	for i, root := range roots {
		g.Go(func() error {
			layer, err := collectRoot(root)
			layers[i] = layer
			return err
		})
	}
	if err := g.Wait(); err != nil {
		logging.ScriptsWarn("%v", err)
	}

	c := &Catalog{byOwner: make(map[string][]*Script)}
	seen := make(map[string]bool)
	for _, layer := range layers {
		for _, path := range layer.global {
			c.global = append(c.global, newScript(b, path, ""))
		}
		for _, owner := range layer.owners {
			if !seen[owner] {
				seen[owner] = true
				c.owners = append(c.owners, owner)
			}
			for _, path := range layer.byOwner[owner] {
				c.byOwner[owner] = append(c.byOwner[owner], newScript(b, path, owner))
			}
		}
	}
	return c
}

func newScript(b *Binding, path, owner string) *Script {
	return &Script{
		Binding: b,
		Name:    DisplayName(filepath.Base(path)),
		Path:    path,
		Owner:   owner,
	}
}

// collectRoot lists a root: regular files are global scripts, and each
// subdirectory is an owner whose regular files are scoped to it. Deeper
// levels and other entry kinds are ignored. A missing root is not an error;
// any other read failure is returned with the empty layer.
func collectRoot(root string) (rootLayer, error) {
	layer := rootLayer{byOwner: make(map[string][]string)}

	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.ScriptsDebug("script root %s does not exist", root)
			return layer, nil
		}
		return layer, fmt.Errorf("script root %s unavailable: %w", root, err)
	}

	for _, e := range entries {
		path := filepath.Join(root, e.Name())
		switch kindOf(path, e) {
		case fs.FileMode(0):
			layer.global = append(layer.global, path)
		case fs.ModeDir:
			files := ownerFiles(path)
			layer.owners = append(layer.owners, e.Name())
			layer.byOwner[e.Name()] = files
		}
	}
	logging.ScriptsDebug("script root %s: %d global, %d owners", root, len(layer.global), len(layer.owners))
	return layer, nil
}

func ownerFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.ScriptsWarn("owner dir %s unavailable: %v", dir, err)
		return nil
	}
	var files []string
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if kindOf(path, e) == 0 {
			files = append(files, path)
		}
	}
	return files
}

// kindOf returns 0 for a regular file, fs.ModeDir for a directory and
// fs.ModeIrregular for anything else. Symlinks are followed.
func kindOf(path string, e fs.DirEntry) fs.FileMode {
	mode := e.Type()
	if mode&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil {
			return fs.ModeIrregular
		}
		mode = info.Mode().Type()
	}
	switch {
	case mode.IsRegular():
		return 0
	case mode.IsDir():
		return fs.ModeDir
	default:
		return fs.ModeIrregular
	}
}
