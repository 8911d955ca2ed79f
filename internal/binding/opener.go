package binding

// ModuleSuffix is the file suffix of binding modules in the plugins dir.
const ModuleSuffix = ".so"

// Handle is an open module. Lookup resolves an exported symbol; Close
// releases the module. Symbols must not be used after Close.
type Handle interface {
	Lookup(symbol string) (any, error)
	Close() error
}

// ModuleOpener opens module files.
type ModuleOpener interface {
	Open(path string) (Handle, error)
}

// builtinHandle is the handle of an in-process entry point.
type builtinHandle struct {
	entry EntryFunc
}

func (h builtinHandle) Lookup(symbol string) (any, error) {
	if symbol != EntrySymbol {
		return nil, errSymbolNotFound(symbol)
	}
	return h.entry, nil
}

func (builtinHandle) Close() error { return nil }

type errSymbolNotFound string

func (e errSymbolNotFound) Error() string {
	return "symbol " + string(e) + " not found"
}

// asEntry accepts both the plain function type and EntryFunc.
func asEntry(sym any) (EntryFunc, bool) {
	switch fn := sym.(type) {
	case EntryFunc:
		return fn, fn != nil
	case func(*Ctrl) bool:
		return fn, fn != nil
	case *EntryFunc:
		if fn == nil || *fn == nil {
			return nil, false
		}
		return *fn, true
	}
	return nil, false
}
