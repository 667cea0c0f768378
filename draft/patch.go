package draft

import "fmt"

// Op is a patch operation kind.
type Op string

const (
	OpAdd     Op = "add"
	OpReplace Op = "replace"
	OpRemove  Op = "remove"
)

// Patch is one step of the difference between two snapshots. Path
// segments are string keys for mappings and int indices for
// sequences; the special terminal segment "length" represents an
// explicit sequence resize.
type Patch struct {
	Op    Op
	Path  []any
	Value any
}

func (p Patch) String() string {
	return fmt.Sprintf("{%s %v %v}", p.Op, p.Path, p.Value)
}
