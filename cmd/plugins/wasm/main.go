// Command wasm builds the wasm binding as a loadable module:
//
//	go build -buildmode=plugin -o wasm.so ./cmd/plugins/wasm
package main

import (
	"gladebind/internal/binding"
	"gladebind/internal/runtimes/wasmrt"
)

// BindingInit is the module entry point.
func BindingInit(ctrl *binding.Ctrl) bool {
	return wasmrt.Init(ctrl)
}

func main() {}
