package crdt

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Map is a keyed container. Values are primitives or nested containers.
type Map struct {
	containerBase
	entries map[string]any
}

func NewMap() *Map {
	return &Map{entries: make(map[string]any)}
}

func (m *Map) Get(key string) (any, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *Map) Has(key string) bool {
	_, ok := m.entries[key]
	return ok
}

func (m *Map) Len() int { return len(m.entries) }

func (m *Map) Keys() []string {
	keys := maps.Keys(m.entries)
	slices.Sort(keys)
	return keys
}

// Set stores v under key, overwriting any existing entry. A container
// value must not already live elsewhere in a tree.
func (m *Map) Set(key string, v any) {
	m.mutate(func(txn *Txn) {
		if txn != nil {
			txn.mapRecord(m).touch(key)
		}
		if old, ok := m.entries[key]; ok {
			detachValue(old)
		}
		m.entries[key] = v
		attachValue(m.doc, m, key, v)
	})
}

// Delete removes key. Missing keys are a no-op.
func (m *Map) Delete(key string) {
	m.mutate(func(txn *Txn) {
		old, ok := m.entries[key]
		if !ok {
			return
		}
		if txn != nil {
			txn.mapRecord(m).touch(key)
		}
		detachValue(old)
		delete(m.entries, key)
	})
}

// Clear removes every entry.
func (m *Map) Clear() {
	m.mutate(func(txn *Txn) {
		for key, old := range m.entries {
			if txn != nil {
				txn.mapRecord(m).touch(key)
			}
			detachValue(old)
			delete(m.entries, key)
		}
	})
}

// ToJSON returns the deep plain-value projection of the map.
func (m *Map) ToJSON() map[string]any {
	out := make(map[string]any, len(m.entries))
	for key, v := range m.entries {
		out[key] = plainValue(v)
	}
	return out
}

func (m *Map) plain() any { return m.ToJSON() }

func (m *Map) integrate(doc *Doc, parent Container, mapKey string) {
	m.attach(m, doc, parent, mapKey)
}

func (m *Map) setDoc(doc *Doc) {
	m.doc = doc
	for _, v := range m.entries {
		if c, ok := v.(Container); ok {
			c.setDoc(doc)
		}
	}
}
