package crdt

import (
	"errors"
	"fmt"

	"github.com/fmpwizard/go-quilljs-delta/delta"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrReentrantTransaction is returned when a transaction is opened
// while observer callbacks of a previous transaction are still running
// on the same document.
var ErrReentrantTransaction = errors.New("reentrant transaction")

// Doc owns a tree of containers and dispatches change events to deep
// observers, one batch per transaction. A Doc and its containers expect
// a single cooperative goroutine; every operation completes within the
// call that triggered it.
type Doc struct {
	id    uuid.UUID
	roots map[string]Container

	txn        *Txn
	committing bool
}

func NewDoc() *Doc {
	return &Doc{
		id:    uuid.New(),
		roots: make(map[string]Container),
	}
}

func (d *Doc) Id() uuid.UUID { return d.id }

// GetMap returns the named root map, creating it if needed.
func (d *Doc) GetMap(name string) *Map {
	if c, ok := d.roots[name]; ok {
		if m, ok := c.(*Map); ok {
			return m
		}
		panic(fmt.Sprintf("crdt: root %q is a %T, not a map", name, c))
	}
	m := NewMap()
	m.attach(m, d, nil, "")
	d.roots[name] = m
	return m
}

// GetList returns the named root list, creating it if needed.
func (d *Doc) GetList(name string) *List {
	if c, ok := d.roots[name]; ok {
		if l, ok := c.(*List); ok {
			return l
		}
		panic(fmt.Sprintf("crdt: root %q is a %T, not a list", name, c))
	}
	l := NewList()
	l.attach(l, d, nil, "")
	d.roots[name] = l
	return l
}

// GetText returns the named root text, creating it if needed.
func (d *Doc) GetText(name string) *Text {
	if c, ok := d.roots[name]; ok {
		if t, ok := c.(*Text); ok {
			return t
		}
		panic(fmt.Sprintf("crdt: root %q is a %T, not a text", name, c))
	}
	t := NewText()
	t.attach(t, d, nil, "")
	d.roots[name] = t
	return t
}

// Txn collects every mutation made between its opening and its commit.
// Origin carries the opaque tag supplied to Transact and lets
// observers tell their own transactions from foreign ones.
type Txn struct {
	doc    *Doc
	Origin any

	order   []Container
	changes map[Container]changeRecord
}

// Transact runs fn inside a transaction tagged with origin. Mutations
// made by fn commit as one batch: deep observers see a single event
// list per transaction. Nested calls join the enclosing transaction
// and the enclosing origin wins. An error from fn rolls nothing back,
// mutations made before the failure are committed and observed.
func (d *Doc) Transact(origin any, fn func() error) error {
	if d.committing {
		return fmt.Errorf("document is dispatching events: %w", ErrReentrantTransaction)
	}
	if d.txn != nil {
		return fn()
	}
	d.txn = &Txn{
		doc:     d,
		Origin:  origin,
		changes: make(map[Container]changeRecord),
	}
	err := fn()
	d.commit()
	return err
}

func (d *Doc) commit() {
	txn := d.txn
	d.txn = nil
	if len(txn.order) == 0 {
		return
	}
	d.committing = true
	defer func() { d.committing = false }()

	glog.V(2).Infof("[doc %s]commit: %d changed containers\n", shortId(d.id), len(txn.order))

	type delivery struct {
		observed Container
		events   []Event
	}
	var deliveries []*delivery
	index := make(map[Container]*delivery)

	// Paths address the committed tree. List runs describe their
	// list's pre-transaction state, so consumers replay list events
	// before path-addressed ones.
	for _, changed := range txn.order {
		rec := txn.changes[changed]
		for anc := changed; anc != nil; anc = anc.Parent() {
			if len(anc.base().observers) == 0 {
				continue
			}
			path, ok := relativePath(changed, anc)
			if !ok {
				continue
			}
			ev := rec.buildEvent(path)
			if ev == nil {
				// The container's changes cancelled out
				break
			}
			dl := index[anc]
			if dl == nil {
				dl = &delivery{observed: anc}
				index[anc] = dl
				deliveries = append(deliveries, dl)
			}
			dl.events = append(dl.events, ev)
		}
	}

	for _, dl := range deliveries {
		observers := dl.observed.base().observers
		ids := maps.Keys(observers)
		slices.Sort(ids)
		for _, id := range ids {
			if fn, ok := observers[id]; ok {
				fn(dl.events, txn)
			}
		}
	}
}

type changeRecord interface {
	buildEvent(path []any) Event
}

type mapRecord struct {
	m    *Map
	keys map[string]*keyState
}

type keyState struct {
	existed bool
	old     any
}

func (r *mapRecord) buildEvent(path []any) Event {
	keys := make(map[string]MapEntryChange)
	for key, st := range r.keys {
		_, present := r.m.entries[key]
		switch {
		case st.existed && present:
			keys[key] = MapEntryChange{Action: EntryUpdate, OldValue: st.old}
		case st.existed && !present:
			keys[key] = MapEntryChange{Action: EntryDelete, OldValue: st.old}
		case !st.existed && present:
			keys[key] = MapEntryChange{Action: EntryAdd}
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return &MapEvent{target: r.m, path: path, Keys: keys}
}

func (r *mapRecord) touch(key string) {
	if _, ok := r.keys[key]; ok {
		return
	}
	old, existed := r.m.entries[key]
	r.keys[key] = &keyState{existed: existed, old: old}
}

type listRecord struct {
	l   *List
	run []ListDelta
}

func (r *listRecord) buildEvent(path []any) Event {
	if len(r.run) == 0 {
		return nil
	}
	return &ListEvent{target: r.l, path: path, Delta: r.run}
}

type textRecord struct {
	t *Text
	d delta.Delta
}

func (r *textRecord) buildEvent(path []any) Event {
	if len(r.d.Ops) == 0 {
		return nil
	}
	return &TextEvent{target: r.t, path: path, Delta: *cloneDelta(&r.d)}
}

func (t *Txn) mapRecord(m *Map) *mapRecord {
	if rec, ok := t.changes[m]; ok {
		return rec.(*mapRecord)
	}
	rec := &mapRecord{m: m, keys: make(map[string]*keyState)}
	t.changes[m] = rec
	t.order = append(t.order, m)
	return rec
}

func (t *Txn) listRecord(l *List) *listRecord {
	if rec, ok := t.changes[l]; ok {
		return rec.(*listRecord)
	}
	rec := &listRecord{l: l}
	t.changes[l] = rec
	t.order = append(t.order, l)
	return rec
}

func (t *Txn) textRecord(tx *Text) *textRecord {
	if rec, ok := t.changes[tx]; ok {
		return rec.(*textRecord)
	}
	rec := &textRecord{t: tx, d: *delta.New(nil)}
	t.changes[tx] = rec
	t.order = append(t.order, tx)
	return rec
}

func shortId(id uuid.UUID) string {
	return id.String()[:8]
}
