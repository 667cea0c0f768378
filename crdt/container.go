package crdt

import (
	"github.com/golang/glog"
	"golang.org/x/exp/slices"
)

// DeepObserver receives the events of one committed transaction whose
// targets are the observed container or one of its descendants. Event
// paths are relative to the observed container. Observers run
// synchronously while the commit is in progress, so they must not open
// a new transaction on the same document.
type DeepObserver func(events []Event, txn *Txn)

// Container is a node in a document tree: a keyed map, an ordered list
// or a rich text sequence. Containers are created detached and become
// live once inserted into a document-owned tree. A container may have
// at most one parent.
type Container interface {
	Doc() *Doc
	Parent() Container
	ObserveDeep(fn DeepObserver) uint64
	UnobserveDeep(id uint64)

	base() *containerBase
	integrate(doc *Doc, parent Container, mapKey string)
	setDoc(doc *Doc)
	plain() any
}

type containerBase struct {
	doc    *Doc
	parent Container
	// Key in the parent map. List positions are resolved by scanning,
	// they shift as siblings come and go.
	mapKey string

	observers  map[uint64]DeepObserver
	observerId uint64
}

func (b *containerBase) Doc() *Doc            { return b.doc }
func (b *containerBase) Parent() Container    { return b.parent }
func (b *containerBase) base() *containerBase { return b }

// ObserveDeep registers fn and returns an id for UnobserveDeep.
func (b *containerBase) ObserveDeep(fn DeepObserver) uint64 {
	if b.observers == nil {
		b.observers = make(map[uint64]DeepObserver)
	}
	b.observerId += 1
	b.observers[b.observerId] = fn
	return b.observerId
}

// UnobserveDeep removes a previously registered observer. Unknown ids
// are ignored.
func (b *containerBase) UnobserveDeep(id uint64) {
	delete(b.observers, id)
}

func (b *containerBase) attach(self Container, doc *Doc, parent Container, mapKey string) {
	if b.parent != nil && b.parent != parent {
		panic("crdt: container is already attached to a parent")
	}
	b.parent = parent
	b.mapKey = mapKey
	self.setDoc(doc)
}

// mutate runs fn inside the document's current transaction, opening an
// implicit one when none is active. Detached containers mutate without
// a transaction and fn sees a nil txn.
func (b *containerBase) mutate(fn func(txn *Txn)) {
	doc := b.doc
	if doc == nil {
		fn(nil)
		return
	}
	if doc.txn != nil {
		fn(doc.txn)
		return
	}
	if err := doc.Transact(nil, func() error {
		fn(doc.txn)
		return nil
	}); err != nil {
		glog.Errorf("mutation dropped: %v\n", err)
	}
}

func attachValue(doc *Doc, parent Container, mapKey string, v any) {
	if c, ok := v.(Container); ok {
		c.integrate(doc, parent, mapKey)
	}
}

func detachValue(v any) {
	if c, ok := v.(Container); ok {
		c.base().parent = nil
		c.setDoc(nil)
	}
}

func plainValue(v any) any {
	if c, ok := v.(Container); ok {
		return c.plain()
	}
	return v
}

// relativePath walks from target up to ancestor and reports the path of
// keys and indices between them, or false when target is not in
// ancestor's subtree.
func relativePath(target, ancestor Container) ([]any, bool) {
	var segs []any
	for cur := target; cur != nil; {
		if cur == ancestor {
			slices.Reverse(segs)
			return segs, true
		}
		parent := cur.Parent()
		if parent == nil {
			return nil, false
		}
		switch p := parent.(type) {
		case *Map:
			segs = append(segs, cur.base().mapKey)
		case *List:
			i := p.indexOf(cur)
			if i < 0 {
				return nil, false
			}
			segs = append(segs, i)
		default:
			return nil, false
		}
		cur = parent
	}
	return nil, false
}
