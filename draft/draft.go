package draft

import (
	"fmt"
	"math"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Options controls how patches are generated during Produce.
type Options struct {
	// ArrayLengthAssignment reports tail resizes as a single "length"
	// patch instead of element-wise remove or add patches.
	ArrayLengthAssignment bool
}

func DefaultOptions() *Options {
	return &Options{ArrayLengthAssignment: true}
}

// Draft is a mutable view over an immutable snapshot. Every mutation
// copies the nodes along the touched path, leaves everything else
// shared with the base, and records a patch.
type Draft struct {
	root    any
	opts    Options
	patches []Patch
}

// Produce runs fn over a draft of base and returns the next snapshot
// together with the patches describing the difference. base is never
// mutated and untouched substructure is shared between base and next.
// A nil opts selects DefaultOptions.
func Produce(base any, fn func(d *Draft) error, opts *Options) (any, []Patch, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	d := &Draft{root: base, opts: *opts}
	if err := fn(d); err != nil {
		return nil, nil, err
	}
	return d.root, d.patches, nil
}

// Root returns the current draft state.
func (d *Draft) Root() any { return d.root }

// SetRoot replaces the whole snapshot.
func (d *Draft) SetRoot(v any) {
	d.root = v
	d.record(OpReplace, nil, v)
}

// Get resolves path against the current draft state without copying
// anything. Unresolvable paths yield nil.
func (d *Draft) Get(path ...any) any {
	node := d.root
	for _, seg := range path {
		switch n := node.(type) {
		case map[string]any:
			key, ok := seg.(string)
			if !ok {
				return nil
			}
			node = n[key]
		case []any:
			i, ok := index(seg)
			if !ok || i < 0 || i >= len(n) {
				return nil
			}
			node = n[i]
		default:
			return nil
		}
	}
	return node
}

// Set writes v at path. The terminal segment must be a mapping key or
// an existing sequence index.
func (d *Draft) Set(path []any, v any) error {
	if len(path) == 0 {
		d.SetRoot(v)
		return nil
	}
	parent, err := d.containerAt(path[:len(path)-1])
	if err != nil {
		return err
	}
	seg := path[len(path)-1]
	switch n := parent.(type) {
	case map[string]any:
		key, ok := seg.(string)
		if !ok {
			return fmt.Errorf("draft: key %v is not a string", seg)
		}
		_, existed := n[key]
		n[key] = v
		if existed {
			d.record(OpReplace, path, v)
		} else {
			d.record(OpAdd, path, v)
		}
	case []any:
		i, ok := index(seg)
		if !ok || i < 0 || i >= len(n) {
			return fmt.Errorf("draft: index %v out of range for length %d", seg, len(n))
		}
		n[i] = v
		d.record(OpReplace, path, v)
	default:
		return fmt.Errorf("draft: cannot set %v on %T", seg, parent)
	}
	return nil
}

// Delete removes the entry or element at path. Missing mapping keys
// are a no-op.
func (d *Draft) Delete(path []any) error {
	if len(path) == 0 {
		return fmt.Errorf("draft: cannot delete the root")
	}
	parent, err := d.containerAt(path[:len(path)-1])
	if err != nil {
		return err
	}
	seg := path[len(path)-1]
	switch n := parent.(type) {
	case map[string]any:
		key, ok := seg.(string)
		if !ok {
			return fmt.Errorf("draft: key %v is not a string", seg)
		}
		if _, ok := n[key]; !ok {
			return nil
		}
		delete(n, key)
		d.record(OpRemove, path, nil)
	case []any:
		i, ok := index(seg)
		if !ok {
			return fmt.Errorf("draft: index %v on a sequence", seg)
		}
		return d.Splice(path[:len(path)-1], i, 1)
	default:
		return fmt.Errorf("draft: cannot delete %v from %T", seg, parent)
	}
	return nil
}

// Insert places v at the sequence index named by the last path
// segment, shifting later elements right.
func (d *Draft) Insert(path []any, v any) error {
	if len(path) == 0 {
		return fmt.Errorf("draft: insert needs an index")
	}
	i, ok := index(path[len(path)-1])
	if !ok {
		return fmt.Errorf("draft: index %v is not an int", path[len(path)-1])
	}
	list, store, err := d.listAt(path[:len(path)-1])
	if err != nil {
		return err
	}
	if i < 0 || i > len(list) {
		return fmt.Errorf("draft: insert at %d, length %d", i, len(list))
	}
	store(slices.Insert(list, i, v))
	d.record(OpAdd, path, v)
	return nil
}

// Splice removes deleteCount elements of the sequence at path starting
// at start and inserts items in their place.
func (d *Draft) Splice(path []any, start, deleteCount int, items ...any) error {
	list, store, err := d.listAt(path)
	if err != nil {
		return err
	}
	if start < 0 || deleteCount < 0 || start+deleteCount > len(list) {
		return fmt.Errorf("draft: splice [%d, %d) out of range for length %d", start, start+deleteCount, len(list))
	}

	common := min(deleteCount, len(items))
	for i := 0; i < common; i++ {
		d.record(OpReplace, append(slices.Clone(path), start+i), items[i])
	}
	oldLen := len(list)
	newLen := oldLen - deleteCount + len(items)
	switch {
	case deleteCount > common:
		if d.opts.ArrayLengthAssignment && start+deleteCount == oldLen {
			d.record(OpReplace, append(slices.Clone(path), "length"), newLen)
		} else {
			for i := common; i < deleteCount; i++ {
				d.record(OpRemove, append(slices.Clone(path), start+common), nil)
			}
		}
	case len(items) > common:
		for i := common; i < len(items); i++ {
			d.record(OpAdd, append(slices.Clone(path), start+i), items[i])
		}
	}

	next := slices.Insert(slices.Delete(list, start, start+deleteCount), start, items...)
	store(next)
	return nil
}

// SetLength resizes the sequence at path, padding with nil values when
// growing.
func (d *Draft) SetLength(path []any, n int) error {
	if n < 0 {
		return fmt.Errorf("draft: negative length %d", n)
	}
	list, store, err := d.listAt(path)
	if err != nil {
		return err
	}
	lengthPath := append(slices.Clone(path), "length")
	switch {
	case n < len(list):
		if d.opts.ArrayLengthAssignment {
			d.record(OpReplace, lengthPath, n)
		} else {
			for i := n; i < len(list); i++ {
				d.record(OpRemove, append(slices.Clone(path), n), nil)
			}
		}
		store(list[:n])
	case n > len(list):
		if d.opts.ArrayLengthAssignment {
			d.record(OpReplace, lengthPath, n)
		} else {
			for i := len(list); i < n; i++ {
				d.record(OpAdd, append(slices.Clone(path), i), nil)
			}
		}
		grown := list
		for len(grown) < n {
			grown = append(grown, nil)
		}
		store(grown)
	default:
		store(list)
	}
	return nil
}

func (d *Draft) record(op Op, path []any, value any) {
	d.patches = append(d.patches, Patch{Op: op, Path: slices.Clone(path), Value: value})
}

// containerAt clones the nodes from the root down to path, stitches
// the clones into the draft state and returns the container at path.
func (d *Draft) containerAt(path []any) (any, error) {
	root, tail, err := cowPath(d.root, path)
	if err != nil {
		return nil, err
	}
	d.root = root
	return tail, nil
}

// listAt returns a private copy of the sequence at path plus a store
// function that writes the mutated copy back into the draft state.
func (d *Draft) listAt(path []any) ([]any, func([]any), error) {
	if len(path) == 0 {
		list, ok := d.root.([]any)
		if !ok {
			return nil, nil, fmt.Errorf("draft: root is a %T, not a sequence", d.root)
		}
		return slices.Clone(list), func(v []any) { d.root = v }, nil
	}
	parent, err := d.containerAt(path[:len(path)-1])
	if err != nil {
		return nil, nil, err
	}
	seg := path[len(path)-1]
	switch n := parent.(type) {
	case map[string]any:
		key, ok := seg.(string)
		if !ok {
			return nil, nil, fmt.Errorf("draft: key %v is not a string", seg)
		}
		list, ok := n[key].([]any)
		if !ok {
			return nil, nil, fmt.Errorf("draft: %q is a %T, not a sequence", key, n[key])
		}
		return slices.Clone(list), func(v []any) { n[key] = v }, nil
	case []any:
		i, ok := index(seg)
		if !ok || i < 0 || i >= len(n) {
			return nil, nil, fmt.Errorf("draft: index %v out of range for length %d", seg, len(n))
		}
		list, ok := n[i].([]any)
		if !ok {
			return nil, nil, fmt.Errorf("draft: element %d is a %T, not a sequence", i, n[i])
		}
		return slices.Clone(list), func(v []any) { n[i] = v }, nil
	}
	return nil, nil, fmt.Errorf("draft: cannot descend into %T", parent)
}

// cowPath returns a shallow clone of node with the child at path also
// cloned, recursively, clones stitched together. Children off the
// path stay shared with the original.
func cowPath(node any, path []any) (any, any, error) {
	clone := shallowClone(node)
	if len(path) == 0 {
		return clone, clone, nil
	}
	seg := path[0]
	switch n := clone.(type) {
	case map[string]any:
		key, ok := seg.(string)
		if !ok {
			return nil, nil, fmt.Errorf("draft: key %v is not a string", seg)
		}
		child, ok := n[key]
		if !ok {
			return nil, nil, fmt.Errorf("draft: no entry %q", key)
		}
		cc, tail, err := cowPath(child, path[1:])
		if err != nil {
			return nil, nil, err
		}
		n[key] = cc
		return n, tail, nil
	case []any:
		i, ok := index(seg)
		if !ok || i < 0 || i >= len(n) {
			return nil, nil, fmt.Errorf("draft: index %v out of range for length %d", seg, len(n))
		}
		cc, tail, err := cowPath(n[i], path[1:])
		if err != nil {
			return nil, nil, err
		}
		n[i] = cc
		return n, tail, nil
	}
	return nil, nil, fmt.Errorf("draft: %T is not a container", node)
}

func shallowClone(v any) any {
	switch n := v.(type) {
	case map[string]any:
		return maps.Clone(n)
	case []any:
		return slices.Clone(n)
	}
	return v
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
