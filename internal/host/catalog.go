package host

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Catalog is the YAML description of the adaptor type tree.
type Catalog struct {
	AdaptorRoot string      `yaml:"adaptor_root"`
	Types       []ClassSpec `yaml:"types"`
}

// ClassSpec is one catalog entry. Parents must appear before children.
type ClassSpec struct {
	Name       string   `yaml:"name"`
	Parent     string   `yaml:"parent,omitempty"`
	Abstract   bool     `yaml:"abstract,omitempty"`
	Container  bool     `yaml:"container,omitempty"`
	Properties []string `yaml:"properties,omitempty"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if c.AdaptorRoot == "" {
		return nil, fmt.Errorf("catalog has no adaptor_root")
	}
	return &c, nil
}

// Build registers every catalog entry into a fresh TypeSystem and returns it
// with the adaptor root id.
func (c *Catalog) Build() (*TypeSystem, TypeID, error) {
	ts := NewTypeSystem()
	for _, spec := range c.Types {
		parent := InvalidType
		if spec.Parent != "" {
			p, ok := ts.Lookup(spec.Parent)
			if !ok {
				return nil, InvalidType, fmt.Errorf("%w: %s (parent of %s)", ErrUnknownType, spec.Parent, spec.Name)
			}
			parent = p
		}
		if _, err := ts.Register(TypeSpec{
			Name:       spec.Name,
			Parent:     parent,
			Abstract:   spec.Abstract,
			Container:  spec.Container,
			Properties: spec.Properties,
		}); err != nil {
			return nil, InvalidType, err
		}
	}

	root, ok := ts.Lookup(c.AdaptorRoot)
	if !ok {
		return nil, InvalidType, fmt.Errorf("%w: adaptor root %s", ErrUnknownType, c.AdaptorRoot)
	}
	return ts, root, nil
}
