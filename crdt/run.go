package crdt

import (
	"math"

	"golang.org/x/exp/slices"
)

// ListDelta is one step of a list change run: exactly one of Retain,
// Delete or Insert is set. A run describes the whole effect of a
// transaction on a list as a single left-to-right scan, the same shape
// a quill delta has.
type ListDelta struct {
	Retain int
	Delete int
	Insert []any
}

func spliceRun(index, deleteCount int, insert []any) []ListDelta {
	var run []ListDelta
	if index > 0 {
		run = append(run, ListDelta{Retain: index})
	}
	if deleteCount > 0 {
		run = append(run, ListDelta{Delete: deleteCount})
	}
	if len(insert) > 0 {
		run = append(run, ListDelta{Insert: slices.Clone(insert)})
	}
	return run
}

// composeRuns merges two consecutive runs into one equivalent run, the
// way two quill deltas compose: b's inserts pass through, a's deletes
// pass through, b's retains keep a's output and b's deletes consume it.
func composeRuns(a, b []ListDelta) []ListDelta {
	ai := &runIter{run: a}
	bi := &runIter{run: b}
	var w runWriter
	for ai.hasNext() || bi.hasNext() {
		if bi.peekIsInsert() {
			w.push(bi.next(-1))
			continue
		}
		if ai.peekIsDelete() {
			w.push(ai.next(-1))
			continue
		}
		n := min(ai.peekLen(), bi.peekLen())
		aop := ai.next(n)
		bop := bi.next(n)
		switch {
		case bop.Retain > 0:
			w.push(aop)
		case bop.Delete > 0:
			if aop.Retain > 0 {
				w.push(bop)
			}
			// b deleting a's insert cancels both out
		}
	}
	return w.chop()
}

type runIter struct {
	run    []ListDelta
	index  int
	offset int
}

func (it *runIter) hasNext() bool {
	return it.index < len(it.run)
}

func (it *runIter) peekLen() int {
	if !it.hasNext() {
		return math.MaxInt
	}
	op := it.run[it.index]
	switch {
	case op.Retain > 0:
		return op.Retain - it.offset
	case op.Delete > 0:
		return op.Delete - it.offset
	default:
		return len(op.Insert) - it.offset
	}
}

func (it *runIter) peekIsInsert() bool {
	return it.hasNext() && len(it.run[it.index].Insert) > 0
}

func (it *runIter) peekIsDelete() bool {
	return it.hasNext() && it.run[it.index].Delete > 0
}

// next consumes up to n elements of the current op, splitting the op
// when needed. n < 0 consumes the rest of the op. Consuming past the
// end of the run yields plain retains.
func (it *runIter) next(n int) ListDelta {
	if !it.hasNext() {
		if n < 0 {
			n = math.MaxInt
		}
		return ListDelta{Retain: n}
	}
	op := it.run[it.index]
	off := it.offset
	var remaining int
	switch {
	case op.Retain > 0:
		remaining = op.Retain - off
	case op.Delete > 0:
		remaining = op.Delete - off
	default:
		remaining = len(op.Insert) - off
	}
	if n < 0 || n >= remaining {
		it.index += 1
		it.offset = 0
		n = remaining
	} else {
		it.offset += n
	}
	switch {
	case op.Retain > 0:
		return ListDelta{Retain: n}
	case op.Delete > 0:
		return ListDelta{Delete: n}
	default:
		return ListDelta{Insert: slices.Clone(op.Insert[off : off+n])}
	}
}

type runWriter struct {
	run []ListDelta
}

// push appends op, merging it into the previous op when both have the
// same kind.
func (w *runWriter) push(op ListDelta) {
	if op.Retain == 0 && op.Delete == 0 && len(op.Insert) == 0 {
		return
	}
	if n := len(w.run); n > 0 {
		last := &w.run[n-1]
		switch {
		case op.Retain > 0 && last.Retain > 0:
			last.Retain += op.Retain
			return
		case op.Delete > 0 && last.Delete > 0:
			last.Delete += op.Delete
			return
		case len(op.Insert) > 0 && len(last.Insert) > 0:
			last.Insert = append(last.Insert, op.Insert...)
			return
		}
	}
	w.run = append(w.run, op)
}

// chop drops a trailing retain, which carries no information.
func (w *runWriter) chop() []ListDelta {
	if n := len(w.run); n > 0 && w.run[n-1].Retain > 0 {
		w.run = w.run[:n-1]
	}
	return w.run
}
