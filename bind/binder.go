// Package bind keeps a plain, immutable JSON snapshot synchronized in
// both directions with a container tree that supports concurrent
// conflict-free mutation. Local writes go through Binder.Update, which
// replays the recorded draft patches onto the tree; foreign changes
// arrive through the document's observer dispatch and are folded back
// into a new snapshot that shares untouched substructure with the
// previous one.
package bind

import (
	"fmt"
	"reflect"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/rdelange/go-crdt-bind/crdt"
	"github.com/rdelange/go-crdt-bind/draft"
)

// Subscriber receives the current snapshot after every accepted
// change.
type Subscriber func(snapshot any)

// Options configures a Binder.
type Options struct {
	// ApplyPatch wraps the default per-patch application. The wrapper
	// may inspect, skip or rewrite the patch before delegating to
	// apply.
	ApplyPatch func(source crdt.Container, patch draft.Patch, apply PatchFunc) error

	// PatchesOptions is forwarded to the draft engine. It must be a
	// bool or a draft.Options; Update fails with
	// ErrInvalidConfiguration on anything else, before any mutation.
	PatchesOptions any
}

// SubscribeOptions configures a single subscription.
type SubscribeOptions struct {
	// Immediate invokes the subscriber once with the current snapshot
	// before Subscribe returns.
	Immediate bool
}

// Binder owns the snapshot of one bound container and the subscriber
// set. Like the document it binds, it expects a single cooperative
// goroutine: all work happens synchronously inside Update or inside
// the document's observer dispatch.
type Binder struct {
	source   crdt.Container
	snapshot any

	origin         uuid.UUID
	patchesOptions any
	interceptor    func(source crdt.Container, patch draft.Patch, apply PatchFunc) error

	subscribers  map[uint64]Subscriber
	subscriberId uint64

	observerId uint64
	bound      bool
}

// Bind captures source's current plain projection as the initial
// snapshot and starts observing source for changes. No I/O happens
// here.
func Bind(source crdt.Container, options *Options) *Binder {
	b := &Binder{
		source:      source,
		origin:      uuid.New(),
		subscribers: make(map[uint64]Subscriber),
	}
	if options != nil {
		b.interceptor = options.ApplyPatch
		b.patchesOptions = options.PatchesOptions
	}
	b.snapshot = toPlainValue(source)
	b.observerId = source.ObserveDeep(b.observe)
	b.bound = true
	glog.V(1).Infof("[bind %s]bound to %T\n", shortOrigin(b.origin), source)
	return b
}

// Get returns the current snapshot. The reference is stable between
// accepted changes.
func (b *Binder) Get() any { return b.snapshot }

// Update produces the next snapshot from fn and replays the recorded
// patches onto the container tree, inside one transaction tagged with
// this Binder's origin when the source belongs to a document.
// Subscribers are notified exactly once. A patch failure part way
// through leaves the tree in the partial state the applied patches
// produced; the snapshot is not swapped.
func (b *Binder) Update(fn func(d *draft.Draft) error) error {
	opts, err := resolvePatchesOptions(b.patchesOptions)
	if err != nil {
		return err
	}
	next, patches, err := draft.Produce(b.snapshot, fn, opts)
	if err != nil {
		return err
	}
	apply := func() error {
		for _, patch := range patches {
			if err := b.applyPatch(patch); err != nil {
				return err
			}
		}
		return nil
	}
	if doc := b.source.Doc(); doc != nil {
		err = doc.Transact(b.origin, apply)
	} else {
		err = apply()
	}
	if err != nil {
		return err
	}
	glog.V(2).Infof("[bind %s]update: %d patches\n", shortOrigin(b.origin), len(patches))
	b.snapshot = next
	b.notify()
	return nil
}

func (b *Binder) applyPatch(patch draft.Patch) error {
	if b.interceptor != nil {
		return b.interceptor(b.source, patch, ApplyPatch)
	}
	return ApplyPatch(b.source, patch)
}

// observe is the deep observer registered on the source. Transactions
// carrying this Binder's own origin were already reflected by Update
// and are skipped, which breaks the feedback loop.
func (b *Binder) observe(events []crdt.Event, txn *crdt.Txn) {
	if origin, ok := txn.Origin.(uuid.UUID); ok && origin == b.origin {
		return
	}
	next, err := translateEvents(b.snapshot, events)
	if err != nil {
		glog.Errorf("[bind %s]failed to translate %d events: %v\n", shortOrigin(b.origin), len(events), err)
		return
	}
	if sameRef(next, b.snapshot) {
		// Nothing in the batch touched the snapshot model
		return
	}
	b.snapshot = next
	b.notify()
}

// Subscribe registers fn and returns an unsubscribe function. The
// unsubscribe function is safe to call more than once and safe to call
// from within a notification; removal takes effect for subsequent
// notifications, not the one in progress.
func (b *Binder) Subscribe(fn Subscriber, options *SubscribeOptions) func() {
	b.subscriberId += 1
	id := b.subscriberId
	b.subscribers[id] = fn
	if options != nil && options.Immediate {
		fn(b.snapshot)
	}
	return func() {
		delete(b.subscribers, id)
	}
}

// Unbind stops observing the source. After Unbind the source can be
// bound again by a fresh Binder without duplicate notifications from
// this one. Safe to call more than once.
func (b *Binder) Unbind() {
	if !b.bound {
		return
	}
	b.source.UnobserveDeep(b.observerId)
	b.bound = false
}

func (b *Binder) notify() {
	if len(b.subscribers) == 0 {
		return
	}
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		subs = append(subs, fn)
	}
	for _, fn := range subs {
		fn(b.snapshot)
	}
}

func resolvePatchesOptions(v any) (*draft.Options, error) {
	switch o := v.(type) {
	case nil:
		return draft.DefaultOptions(), nil
	case bool:
		return &draft.Options{ArrayLengthAssignment: o}, nil
	case draft.Options:
		return &o, nil
	case *draft.Options:
		if o == nil {
			return draft.DefaultOptions(), nil
		}
		return o, nil
	}
	return nil, fmt.Errorf("patches options must be a bool or draft.Options, got %T: %w", v, ErrInvalidConfiguration)
}

// sameRef reports whether a and b are the same mapping, sequence or
// primitive value. Mappings and sequences compare by identity.
func sameRef(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Kind() != bv.Kind() {
		return false
	}
	switch av.Kind() {
	case reflect.Map, reflect.Slice:
		return av.Pointer() == bv.Pointer() && av.Len() == bv.Len()
	}
	return a == b
}

func shortOrigin(id uuid.UUID) string {
	return id.String()[:8]
}
