package bind

import (
	"fmt"
	"reflect"

	"github.com/rdelange/go-crdt-bind/crdt"
)

// toContainerValue converts a plain JSON value into a value storable
// in a container: mappings and sequences become fresh detached
// containers, everything else passes through. seen holds the
// identities of the mappings and sequences already converted in this
// call; revisiting one means the value graph has a cycle, or aliases a
// node, neither of which the tree can represent.
func toContainerValue(v any, seen map[uintptr]bool) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		p := reflect.ValueOf(val).Pointer()
		if seen[p] {
			return nil, fmt.Errorf("mapping visited twice in one conversion: %w", ErrCircularReference)
		}
		seen[p] = true
		m := crdt.NewMap()
		for key, child := range val {
			cv, err := toContainerValue(child, seen)
			if err != nil {
				return nil, err
			}
			m.Set(key, cv)
		}
		return m, nil
	case []any:
		if len(val) > 0 {
			p := reflect.ValueOf(val).Pointer()
			if seen[p] {
				return nil, fmt.Errorf("sequence visited twice in one conversion: %w", ErrCircularReference)
			}
			seen[p] = true
		}
		l := crdt.NewList()
		for _, child := range val {
			cv, err := toContainerValue(child, seen)
			if err != nil {
				return nil, err
			}
			l.Append(cv)
		}
		return l, nil
	}
	return v, nil
}

// toPlainValue projects container values to their deep plain form;
// everything else passes through.
func toPlainValue(v any) any {
	switch c := v.(type) {
	case *crdt.Map:
		return c.ToJSON()
	case *crdt.List:
		return c.ToJSON()
	case *crdt.Text:
		return c.String()
	}
	return v
}

func convertValue(v any) (any, error) {
	return toContainerValue(v, make(map[uintptr]bool))
}

// convertEntries converts every entry of src, failing before any
// container is handed out.
func convertEntries(src map[string]any) (map[string]any, error) {
	seen := map[uintptr]bool{reflect.ValueOf(src).Pointer(): true}
	converted := make(map[string]any, len(src))
	for key, v := range src {
		cv, err := toContainerValue(v, seen)
		if err != nil {
			return nil, err
		}
		converted[key] = cv
	}
	return converted, nil
}

func convertElements(src []any) ([]any, error) {
	seen := make(map[uintptr]bool)
	if len(src) > 0 {
		seen[reflect.ValueOf(src).Pointer()] = true
	}
	converted := make([]any, len(src))
	for i, v := range src {
		cv, err := toContainerValue(v, seen)
		if err != nil {
			return nil, err
		}
		converted[i] = cv
	}
	return converted, nil
}

// batch runs fn inside a transaction on c's document, or directly when
// c is detached.
func batch(c crdt.Container, fn func() error) error {
	if doc := c.Doc(); doc != nil {
		return doc.Transact(nil, fn)
	}
	return fn()
}

// ApplyJSONObject sets every entry of src on dest, converting nested
// mappings and sequences into containers. Entries of dest under other
// keys are kept. On error dest is untouched.
func ApplyJSONObject(dest *crdt.Map, src map[string]any) error {
	converted, err := convertEntries(src)
	if err != nil {
		return err
	}
	return batch(dest, func() error {
		for key, cv := range converted {
			dest.Set(key, cv)
		}
		return nil
	})
}

// ApplyJSONArray appends the converted elements of src to dest. On
// error dest is untouched.
func ApplyJSONArray(dest *crdt.List, src []any) error {
	converted, err := convertElements(src)
	if err != nil {
		return err
	}
	return batch(dest, func() error {
		dest.Append(converted...)
		return nil
	})
}
