//go:build !((linux || darwin || freebsd) && cgo)

package binding

import "fmt"

type unsupportedOpener struct{}

// NewPluginOpener returns the platform module opener. On this platform every
// Open fails, so only builtins can be loaded.
func NewPluginOpener() ModuleOpener {
	return unsupportedOpener{}
}

func (unsupportedOpener) Open(path string) (Handle, error) {
	return nil, fmt.Errorf("%w: %s", ErrPluginsUnsupported, path)
}
