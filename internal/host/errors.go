package host

import "errors"

// Host errors.
var (
	ErrEmptyTypeName = errors.New("type name cannot be empty")
	ErrTypeExists    = errors.New("type already registered")
	ErrUnknownType   = errors.New("unknown type")

	// ErrUnknownClass is returned when a widget class has no adaptor.
	ErrUnknownClass = errors.New("unknown widget class")

	// ErrAbstractClass is returned when instantiating an abstract class.
	ErrAbstractClass = errors.New("widget class is abstract")

	ErrNoProject        = errors.New("no current project")
	ErrNoSuchProject    = errors.New("project not found")
	ErrNoSuchWidget     = errors.New("widget not found")
	ErrNoSuchProperty   = errors.New("property not found")
	ErrReadOnlyProperty = errors.New("property is read-only")
	ErrNotContainer     = errors.New("parent widget is not a container")
)
