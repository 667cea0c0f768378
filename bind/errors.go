package bind

import "errors"

var (
	// ErrCircularReference reports a plain value graph that references
	// itself and therefore cannot become a container tree.
	ErrCircularReference = errors.New("circular reference")

	// ErrUnsupportedOperation reports a patch whose op has no mapping
	// for the targeted container kind.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrInvalidConfiguration reports patches options that are neither
	// a bool nor a draft.Options value.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
