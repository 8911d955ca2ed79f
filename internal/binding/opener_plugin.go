//go:build (linux || darwin || freebsd) && cgo

package binding

import (
	"plugin"
	"sync"
)

// PluginOpener opens modules built with -buildmode=plugin.
type PluginOpener struct{}

// NewPluginOpener returns the platform module opener.
func NewPluginOpener() ModuleOpener {
	return PluginOpener{}
}

func (PluginOpener) Open(path string) (Handle, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return &pluginHandle{p: p}, nil
}

// pluginHandle wraps a Go plugin. Go cannot unmap a plugin, so Close only
// forbids further lookups.
type pluginHandle struct {
	mu     sync.Mutex
	p      *plugin.Plugin
	closed bool
}

func (h *pluginHandle) Lookup(symbol string) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrBindingUnloaded
	}
	return h.p.Lookup(symbol)
}

func (h *pluginHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
