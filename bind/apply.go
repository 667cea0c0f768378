package bind

import (
	"fmt"
	"math"

	"github.com/rdelange/go-crdt-bind/crdt"
	"github.com/rdelange/go-crdt-bind/draft"
)

// PatchFunc applies one patch to the tree rooted at source.
type PatchFunc func(source crdt.Container, patch draft.Patch) error

// ApplyPatch is the default patch application: it mutates the
// container tree so that its plain projection matches the patch's post
// state, touching nothing outside the patch path. Concurrent edits to
// untouched parts of the tree survive.
func ApplyPatch(source crdt.Container, patch draft.Patch) error {
	if len(patch.Path) == 0 {
		return applyRoot(source, patch)
	}
	parent, err := resolveParent(source, patch.Path)
	if err != nil {
		return err
	}
	last := patch.Path[len(patch.Path)-1]
	switch c := parent.(type) {
	case *crdt.Map:
		return applyToMap(c, patch, last)
	case *crdt.List:
		return applyToList(c, patch, last)
	}
	return unsupported(patch, "container kind %T", parent)
}

// Only replace is defined at the root: the container is cleared and
// repopulated from the replacement value.
func applyRoot(source crdt.Container, patch draft.Patch) error {
	if patch.Op != draft.OpReplace {
		return unsupported(patch, "%s at the root", patch.Op)
	}
	switch root := source.(type) {
	case *crdt.Map:
		obj, ok := patch.Value.(map[string]any)
		if !ok {
			return unsupported(patch, "replacing a map root with %T", patch.Value)
		}
		converted, err := convertEntries(obj)
		if err != nil {
			return err
		}
		return batch(root, func() error {
			root.Clear()
			for key, cv := range converted {
				root.Set(key, cv)
			}
			return nil
		})
	case *crdt.List:
		arr, ok := patch.Value.([]any)
		if !ok {
			return unsupported(patch, "replacing a list root with %T", patch.Value)
		}
		converted, err := convertElements(arr)
		if err != nil {
			return err
		}
		return batch(root, func() error {
			root.Clear()
			root.Append(converted...)
			return nil
		})
	}
	return unsupported(patch, "root kind %T", source)
}

// resolveParent walks all path segments but the last and returns the
// immediate parent container of the patch target.
func resolveParent(source crdt.Container, path []any) (any, error) {
	var node any = source
	for _, seg := range path[:len(path)-1] {
		switch c := node.(type) {
		case *crdt.Map:
			key, ok := seg.(string)
			if !ok {
				return nil, fmt.Errorf("key %v is not a string: %w", seg, ErrUnsupportedOperation)
			}
			child, ok := c.Get(key)
			if !ok {
				return nil, fmt.Errorf("no entry %q on the patch path: %w", key, ErrUnsupportedOperation)
			}
			node = child
		case *crdt.List:
			i, ok := index(seg)
			if !ok || i < 0 || i >= c.Len() {
				return nil, fmt.Errorf("index %v out of range on the patch path: %w", seg, ErrUnsupportedOperation)
			}
			node = c.Get(i)
		default:
			return nil, fmt.Errorf("cannot descend into %T: %w", node, ErrUnsupportedOperation)
		}
	}
	return node, nil
}

func applyToMap(m *crdt.Map, patch draft.Patch, last any) error {
	key, ok := last.(string)
	if !ok {
		return unsupported(patch, "map key %v", last)
	}
	switch patch.Op {
	case draft.OpAdd, draft.OpReplace:
		cv, err := convertValue(patch.Value)
		if err != nil {
			return err
		}
		m.Set(key, cv)
		return nil
	case draft.OpRemove:
		m.Delete(key)
		return nil
	}
	return unsupported(patch, "%s on a map", patch.Op)
}

func applyToList(l *crdt.List, patch draft.Patch, last any) error {
	if s, ok := last.(string); ok {
		if s == "length" && patch.Op == draft.OpReplace {
			return resizeList(l, patch)
		}
		return unsupported(patch, "%s with string key %q on a list", patch.Op, s)
	}
	i, ok := index(last)
	if !ok {
		return unsupported(patch, "terminal key %v on a list", last)
	}
	switch patch.Op {
	case draft.OpAdd:
		if i < 0 || i > l.Len() {
			return unsupported(patch, "insert at %d, length %d", i, l.Len())
		}
		cv, err := convertValue(patch.Value)
		if err != nil {
			return err
		}
		l.Insert(i, cv)
		return nil
	case draft.OpRemove:
		if i < 0 || i >= l.Len() {
			return unsupported(patch, "remove at %d, length %d", i, l.Len())
		}
		l.Delete(i, 1)
		return nil
	case draft.OpReplace:
		if i < 0 || i >= l.Len() {
			return unsupported(patch, "replace at %d, length %d", i, l.Len())
		}
		// When both the existing element and the replacement are
		// keyed, repopulate the existing container in place. Keeping
		// its identity keeps concurrent edits to sibling keys alive.
		if existing, ok := l.Get(i).(*crdt.Map); ok {
			if obj, ok := patch.Value.(map[string]any); ok {
				converted, err := convertEntries(obj)
				if err != nil {
					return err
				}
				return batch(existing, func() error {
					existing.Clear()
					for key, cv := range converted {
						existing.Set(key, cv)
					}
					return nil
				})
			}
		}
		cv, err := convertValue(patch.Value)
		if err != nil {
			return err
		}
		l.Delete(i, 1)
		l.Insert(i, cv)
		return nil
	}
	return unsupported(patch, "%s on a list", patch.Op)
}

// resizeList truncates or pads the list so its length matches the
// patch value. Padding elements are nil.
func resizeList(l *crdt.List, patch draft.Patch) error {
	n, ok := index(patch.Value)
	if !ok || n < 0 {
		return unsupported(patch, "length value %v", patch.Value)
	}
	switch {
	case n < l.Len():
		l.Delete(n, l.Len()-n)
	case n > l.Len():
		pad := make([]any, n-l.Len())
		l.Append(pad...)
	}
	return nil
}

func unsupported(patch draft.Patch, format string, args ...any) error {
	return fmt.Errorf("cannot apply patch %s: %s: %w",
		patch, fmt.Sprintf(format, args...), ErrUnsupportedOperation)
}

func index(seg any) (int, bool) {
	switch i := seg.(type) {
	case int:
		return i, true
	case int64:
		return int(i), true
	case float64:
		if i != math.Trunc(i) || math.IsInf(i, 0) {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}
