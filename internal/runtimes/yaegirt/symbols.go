package yaegirt

import (
	"reflect"

	"github.com/traefik/yaegi/interp"
)

// hostPackage is the import path scripts use to reach the host.
const hostPackage = "glade"

// runState is what one interpreter sees of its current invocation.
type runState struct {
	args     []string
	exitCode int
}

// hostSymbols builds the "glade" package for one interpreter.
func (rt *Runtime) hostSymbols(state *runState) interp.Exports {
	h := rt.host
	return interp.Exports{
		hostPackage + "/" + hostPackage: {
			"Class": reflect.ValueOf((*Class)(nil)),

			"Args": reflect.ValueOf(func() []string {
				return append([]string(nil), state.args...)
			}),
			"SetExitCode": reflect.ValueOf(func(code int) {
				state.exitCode = code
			}),

			"ProjectNew":   reflect.ValueOf(h.NewProject),
			"ProjectList":  reflect.ValueOf(h.Projects),
			"ProjectGet":   reflect.ValueOf(h.CurrentProject),
			"ProjectSet":   reflect.ValueOf(h.SetProject),
			"ProjectClose": reflect.ValueOf(h.CloseProject),

			"WidgetNew":    reflect.ValueOf(h.CreateWidget),
			"WidgetDelete": reflect.ValueOf(h.DeleteWidget),
			"WidgetSet":    reflect.ValueOf(h.SetProperty),
			"WidgetGet":    reflect.ValueOf(h.GetProperty),
			"WidgetList":   reflect.ValueOf(h.Widgets),
			"WidgetClass":  reflect.ValueOf(h.WidgetClass),

			"AdaptorFor": reflect.ValueOf(rt.Adaptor),
		},
	}
}
