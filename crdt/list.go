package crdt

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// List is an ordered sequence container.
type List struct {
	containerBase
	items []any
}

func NewList() *List {
	return &List{}
}

func (l *List) Len() int { return len(l.items) }

func (l *List) Get(i int) any { return l.items[i] }

// Insert places vals at index i, shifting later elements right.
// Container values must not already live elsewhere in a tree.
func (l *List) Insert(i int, vals ...any) {
	if i < 0 || i > len(l.items) {
		panic(fmt.Sprintf("crdt: insert at %d, length %d", i, len(l.items)))
	}
	if len(vals) == 0 {
		return
	}
	l.mutate(func(txn *Txn) {
		if txn != nil {
			rec := txn.listRecord(l)
			rec.run = composeRuns(rec.run, spliceRun(i, 0, vals))
		}
		l.items = slices.Insert(l.items, i, vals...)
		for _, v := range vals {
			attachValue(l.doc, l, "", v)
		}
	})
}

// Append places vals at the end of the list.
func (l *List) Append(vals ...any) {
	l.Insert(len(l.items), vals...)
}

// Delete removes n elements starting at index i.
func (l *List) Delete(i, n int) {
	if i < 0 || n < 0 || i+n > len(l.items) {
		panic(fmt.Sprintf("crdt: delete [%d, %d), length %d", i, i+n, len(l.items)))
	}
	if n == 0 {
		return
	}
	l.mutate(func(txn *Txn) {
		if txn != nil {
			rec := txn.listRecord(l)
			rec.run = composeRuns(rec.run, spliceRun(i, n, nil))
		}
		for _, v := range l.items[i : i+n] {
			detachValue(v)
		}
		l.items = slices.Delete(l.items, i, i+n)
	})
}

// Clear removes every element.
func (l *List) Clear() {
	l.Delete(0, len(l.items))
}

// ToJSON returns the deep plain-value projection of the list.
func (l *List) ToJSON() []any {
	out := make([]any, len(l.items))
	for i, v := range l.items {
		out[i] = plainValue(v)
	}
	return out
}

func (l *List) plain() any { return l.ToJSON() }

func (l *List) indexOf(c Container) int {
	for i, v := range l.items {
		if v == Container(c) {
			return i
		}
	}
	return -1
}

func (l *List) integrate(doc *Doc, parent Container, mapKey string) {
	l.attach(l, doc, parent, mapKey)
}

func (l *List) setDoc(doc *Doc) {
	l.doc = doc
	for _, v := range l.items {
		if c, ok := v.(Container); ok {
			c.setDoc(doc)
		}
	}
}
