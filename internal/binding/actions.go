package binding

import (
	"context"
	"fmt"
)

// Action is a context-menu entry for one owner-scoped script.
type Action struct {
	ID     string
	Label  string
	Script *Script
}

// Activate runs the script with the widget name as its only argument.
func (a Action) Activate(ctx context.Context, widget string) (int, error) {
	return a.Script.Binding.RunScript(ctx, a.Script.Path, []string{widget})
}

// ScriptActions returns the actions for owner across all bindings, in
// registration order and then catalog order. IDs are "<binding>/<name>",
// suffixed "#N" when a name repeats.
func (r *Registry) ScriptActions(owner string) []Action {
	var actions []Action
	for _, b := range r.GetAll() {
		used := make(map[string]int)
		for _, s := range b.Catalog().ListForOwner(owner) {
			id := b.Name() + "/" + s.Name
			used[id]++
			if n := used[id]; n > 1 {
				id = fmt.Sprintf("%s#%d", id, n)
			}
			actions = append(actions, Action{ID: id, Label: s.Label(), Script: s})
		}
	}
	return actions
}

// FindAction returns the action with the given id for owner.
func (r *Registry) FindAction(owner, id string) (Action, error) {
	for _, a := range r.ScriptActions(owner) {
		if a.ID == id {
			return a, nil
		}
	}
	return Action{}, fmt.Errorf("%w: %s for %s", ErrActionNotFound, id, owner)
}
