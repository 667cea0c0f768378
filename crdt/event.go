package crdt

import (
	"github.com/fmpwizard/go-quilljs-delta/delta"
)

// Event describes the net change of one container within a committed
// transaction. Paths are relative to the observed container.
type Event interface {
	Target() Container
	Path() []any
}

type EntryAction string

const (
	EntryAdd    EntryAction = "add"
	EntryUpdate EntryAction = "update"
	EntryDelete EntryAction = "delete"
)

// MapEntryChange is the net change of one key. OldValue is only set
// for updates and deletes; it may be a container that is no longer
// part of the tree.
type MapEntryChange struct {
	Action   EntryAction
	OldValue any
}

type MapEvent struct {
	target *Map
	path   []any
	Keys   map[string]MapEntryChange
}

func (e *MapEvent) Target() Container { return e.target }
func (e *MapEvent) Path() []any       { return e.path }
func (e *MapEvent) Map() *Map         { return e.target }

type ListEvent struct {
	target *List
	path   []any
	// Delta is the transaction's whole effect on the list as an
	// ordered retain/delete/insert run. Inserted values are the live
	// elements, not copies.
	Delta []ListDelta
}

func (e *ListEvent) Target() Container { return e.target }
func (e *ListEvent) Path() []any       { return e.path }
func (e *ListEvent) List() *List       { return e.target }

type TextEvent struct {
	target *Text
	path   []any
	Delta  delta.Delta
}

func (e *TextEvent) Target() Container { return e.target }
func (e *TextEvent) Path() []any       { return e.path }
func (e *TextEvent) Text() *Text       { return e.target }
