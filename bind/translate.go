package bind

import (
	"github.com/golang/glog"
	"golang.org/x/exp/slices"

	"github.com/rdelange/go-crdt-bind/crdt"
	"github.com/rdelange/go-crdt-bind/draft"
)

// translateEvents folds one transaction's events into the snapshot and
// returns the next snapshot, produced in a single draft pass.
func translateEvents(snapshot any, events []crdt.Event) (any, error) {
	next, _, err := draft.Produce(snapshot, func(d *draft.Draft) error {
		for _, ev := range orderEvents(events) {
			applyEvent(d, ev)
		}
		return nil
	}, nil)
	return next, err
}

// orderEvents puts list events first, outermost first. Event paths
// address the committed tree while each list run starts from the
// list's pre-transaction state: replaying the runs first moves the
// draft's indices to the committed positions that every other path
// resolves against.
func orderEvents(events []crdt.Event) []crdt.Event {
	lists := make([]crdt.Event, 0, len(events))
	rest := make([]crdt.Event, 0, len(events))
	for _, ev := range events {
		if _, ok := ev.(*crdt.ListEvent); ok {
			lists = append(lists, ev)
		} else {
			rest = append(rest, ev)
		}
	}
	slices.SortStableFunc(lists, func(a, b crdt.Event) int {
		return len(a.Path()) - len(b.Path())
	})
	return append(lists, rest...)
}

// applyEvent folds one event into the draft. Events for container
// kinds outside the snapshot model, and events whose base no longer
// matches the expected shape, are skipped.
func applyEvent(d *draft.Draft, ev crdt.Event) {
	path := ev.Path()
	switch e := ev.(type) {
	case *crdt.MapEvent:
		if _, ok := d.Get(path...).(map[string]any); !ok {
			return
		}
		target := e.Map()
		for key, change := range e.Keys {
			entry := append(slices.Clone(path), key)
			switch change.Action {
			case crdt.EntryAdd, crdt.EntryUpdate:
				// Read the live child, not the event's stale copy
				v, ok := target.Get(key)
				if !ok {
					continue
				}
				if err := d.Set(entry, toPlainValue(v)); err != nil {
					glog.V(1).Infof("[bind]skipping map delta at %v: %v\n", entry, err)
				}
			case crdt.EntryDelete:
				if err := d.Delete(entry); err != nil {
					glog.V(1).Infof("[bind]skipping map delta at %v: %v\n", entry, err)
				}
			}
		}
	case *crdt.ListEvent:
		if _, ok := d.Get(path...).([]any); !ok {
			return
		}
		cursor := 0
		for _, op := range e.Delta {
			switch {
			case op.Retain > 0:
				cursor += op.Retain
			case op.Delete > 0:
				if err := d.Splice(path, cursor, op.Delete); err != nil {
					glog.V(1).Infof("[bind]skipping list delta at %v: %v\n", path, err)
					return
				}
			case len(op.Insert) > 0:
				items := make([]any, len(op.Insert))
				for i, v := range op.Insert {
					items[i] = toPlainValue(v)
				}
				if err := d.Splice(path, cursor, 0, items...); err != nil {
					glog.V(1).Infof("[bind]skipping list delta at %v: %v\n", path, err)
					return
				}
				cursor += len(items)
			}
		}
	default:
		// Rich text and other container kinds have no snapshot
		// representation
	}
}
