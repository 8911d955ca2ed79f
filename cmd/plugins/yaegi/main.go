// Command yaegi builds the go binding as a loadable module:
//
//	go build -buildmode=plugin -o go.so ./cmd/plugins/yaegi
package main

import (
	"gladebind/internal/binding"
	"gladebind/internal/runtimes/yaegirt"
)

// BindingInit is the module entry point.
func BindingInit(ctrl *binding.Ctrl) bool {
	return yaegirt.Init(ctrl)
}

func main() {}
