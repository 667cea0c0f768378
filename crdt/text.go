package crdt

import (
	"github.com/fmpwizard/go-quilljs-delta/delta"
)

// Text is a rich text container backed by a quill delta document. It
// takes part in the tree and in transactions, but its plain projection
// is just the flat string content.
type Text struct {
	containerBase
	content delta.Delta
}

func NewText() *Text {
	return &Text{content: *delta.New(nil)}
}

// Insert places s at the given rune index.
func (t *Text) Insert(index int, s string) {
	d := delta.New(nil)
	if index > 0 {
		d = d.Retain(index, nil)
	}
	t.ApplyDelta(*d.Insert(s, nil))
}

// Delete removes length runes starting at index.
func (t *Text) Delete(index, length int) {
	d := delta.New(nil)
	if index > 0 {
		d = d.Retain(index, nil)
	}
	t.ApplyDelta(*d.Delete(length))
}

// ApplyDelta composes d onto the current content.
func (t *Text) ApplyDelta(d delta.Delta) {
	t.mutate(func(txn *Txn) {
		if txn != nil {
			rec := txn.textRecord(t)
			rec.d = *rec.d.Compose(d)
		}
		t.content = *t.content.Compose(d)
	})
}

// Contents returns a copy of the content delta.
func (t *Text) Contents() delta.Delta {
	return *cloneDelta(&t.content)
}

func (t *Text) String() string {
	result := make([]rune, 0)
	for _, op := range t.content.Ops {
		if op.Insert != nil {
			result = append(result, op.Insert...)
		}
	}
	return string(result)
}

// Len reports the content length in runes.
func (t *Text) Len() int {
	n := 0
	for _, op := range t.content.Ops {
		n += len(op.Insert)
	}
	return n
}

func cloneDelta(d *delta.Delta) *delta.Delta {
	ops := make([]delta.Op, len(d.Ops))
	for i, op := range d.Ops {
		ops[i] = op
	}
	return delta.New(ops)
}

func (t *Text) plain() any { return t.String() }

func (t *Text) integrate(doc *Doc, parent Container, mapKey string) {
	t.attach(t, doc, parent, mapKey)
}

func (t *Text) setDoc(doc *Doc) {
	t.doc = doc
}
