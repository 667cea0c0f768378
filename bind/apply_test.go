package bind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdelange/go-crdt-bind/crdt"
	"github.com/rdelange/go-crdt-bind/draft"
)

func TestApplyJSONObjectRoundTrip(t *testing.T) {
	doc := crdt.NewDoc()
	root := doc.GetMap("data")

	src := map[string]any{
		"title": "hello",
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"count": 3, "flags": []any{true, false}},
	}
	require.NoError(t, ApplyJSONObject(root, src))
	assert.Equal(t, src, root.ToJSON())

	// Nested mappings became containers
	meta, _ := root.Get("meta")
	assert.IsType(t, (*crdt.Map)(nil), meta)
}

func TestApplyJSONObjectKeepsOtherKeys(t *testing.T) {
	doc := crdt.NewDoc()
	root := doc.GetMap("data")
	root.Set("keep", 1)

	require.NoError(t, ApplyJSONObject(root, map[string]any{"new": 2}))
	assert.Equal(t, map[string]any{"keep": 1, "new": 2}, root.ToJSON())
}

func TestApplyJSONObjectRejectsCycles(t *testing.T) {
	doc := crdt.NewDoc()
	root := doc.GetMap("data")

	cyclic := map[string]any{}
	cyclic["self"] = cyclic
	err := ApplyJSONObject(root, cyclic)
	require.ErrorIs(t, err, ErrCircularReference)
	assert.Equal(t, 0, root.Len())
}

func TestApplyJSONObjectRejectsAliases(t *testing.T) {
	doc := crdt.NewDoc()
	root := doc.GetMap("data")

	shared := map[string]any{"k": 1}
	err := ApplyJSONObject(root, map[string]any{"a": shared, "b": shared})
	require.ErrorIs(t, err, ErrCircularReference)
	assert.Equal(t, 0, root.Len())
}

func TestApplyJSONArray(t *testing.T) {
	doc := crdt.NewDoc()
	l := doc.GetList("data")
	l.Append(0)

	require.NoError(t, ApplyJSONArray(l, []any{1, map[string]any{"k": 2}}))
	assert.Equal(t, []any{0, 1, map[string]any{"k": 2}}, l.ToJSON())

	cyclic := []any{nil}
	cyclic[0] = cyclic
	err := ApplyJSONArray(l, cyclic)
	require.ErrorIs(t, err, ErrCircularReference)
	assert.Equal(t, 3, l.Len())
}

func TestApplyPatchMapOps(t *testing.T) {
	doc := crdt.NewDoc()
	root := doc.GetMap("data")
	require.NoError(t, ApplyJSONObject(root, map[string]any{
		"meta": map[string]any{"count": 1},
	}))

	require.NoError(t, ApplyPatch(root, draft.Patch{
		Op: draft.OpAdd, Path: []any{"meta", "name"}, Value: "x",
	}))
	require.NoError(t, ApplyPatch(root, draft.Patch{
		Op: draft.OpReplace, Path: []any{"meta", "count"}, Value: 2,
	}))
	require.NoError(t, ApplyPatch(root, draft.Patch{
		Op: draft.OpRemove, Path: []any{"meta", "name"},
	}))

	assert.Equal(t, map[string]any{"meta": map[string]any{"count": 2}}, root.ToJSON())
}

func TestApplyPatchListOps(t *testing.T) {
	doc := crdt.NewDoc()
	root := doc.GetMap("data")
	require.NoError(t, ApplyJSONObject(root, map[string]any{"l": []any{1, 3}}))

	require.NoError(t, ApplyPatch(root, draft.Patch{
		Op: draft.OpAdd, Path: []any{"l", 1}, Value: 2,
	}))
	require.NoError(t, ApplyPatch(root, draft.Patch{
		Op: draft.OpReplace, Path: []any{"l", 2}, Value: 9,
	}))
	require.NoError(t, ApplyPatch(root, draft.Patch{
		Op: draft.OpRemove, Path: []any{"l", 0},
	}))

	assert.Equal(t, map[string]any{"l": []any{2, 9}}, root.ToJSON())
}

func TestApplyPatchLengthResize(t *testing.T) {
	doc := crdt.NewDoc()
	l := doc.GetList("data")
	l.Append(1, 2, 3, 4)

	require.NoError(t, ApplyPatch(l, draft.Patch{
		Op: draft.OpReplace, Path: []any{"length"}, Value: 2,
	}))
	assert.Equal(t, []any{1, 2}, l.ToJSON())

	require.NoError(t, ApplyPatch(l, draft.Patch{
		Op: draft.OpReplace, Path: []any{"length"}, Value: 4,
	}))
	assert.Equal(t, []any{1, 2, nil, nil}, l.ToJSON())
}

func TestApplyPatchRootReplace(t *testing.T) {
	doc := crdt.NewDoc()
	root := doc.GetMap("data")
	root.Set("old", 1)

	require.NoError(t, ApplyPatch(root, draft.Patch{
		Op: draft.OpReplace, Value: map[string]any{"fresh": 2},
	}))
	assert.Equal(t, map[string]any{"fresh": 2}, root.ToJSON())

	l := doc.GetList("seq")
	l.Append(9)
	require.NoError(t, ApplyPatch(l, draft.Patch{
		Op: draft.OpReplace, Value: []any{1, 2},
	}))
	assert.Equal(t, []any{1, 2}, l.ToJSON())
}

func TestApplyPatchRootReplaceRejectsCycles(t *testing.T) {
	doc := crdt.NewDoc()
	root := doc.GetMap("data")
	root.Set("keep", 1)

	cyclic := map[string]any{}
	cyclic["self"] = cyclic
	err := ApplyPatch(root, draft.Patch{Op: draft.OpReplace, Value: cyclic})
	require.ErrorIs(t, err, ErrCircularReference)
	assert.Equal(t, map[string]any{"keep": 1}, root.ToJSON())

	l := doc.GetList("seq")
	l.Append(9)
	shared := map[string]any{"k": 1}
	err = ApplyPatch(l, draft.Patch{Op: draft.OpReplace, Value: []any{shared, shared}})
	require.ErrorIs(t, err, ErrCircularReference)
	assert.Equal(t, []any{9}, l.ToJSON())
}

func TestApplyPatchInPlaceReplaceRejectsCycles(t *testing.T) {
	doc := crdt.NewDoc()
	l := doc.GetList("data")
	require.NoError(t, ApplyJSONArray(l, []any{map[string]any{"id": 1}}))

	cyclic := map[string]any{}
	cyclic["self"] = cyclic
	err := ApplyPatch(l, draft.Patch{Op: draft.OpReplace, Path: []any{0}, Value: cyclic})
	require.ErrorIs(t, err, ErrCircularReference)
	assert.Equal(t, []any{map[string]any{"id": 1}}, l.ToJSON())
}

func TestApplyPatchUnsupported(t *testing.T) {
	doc := crdt.NewDoc()
	root := doc.GetMap("data")
	require.NoError(t, ApplyJSONObject(root, map[string]any{
		"l": []any{1},
		"t": "text",
	}))
	txt := crdt.NewText()
	root.Set("rich", txt)

	for _, patch := range []draft.Patch{
		// add and remove have no meaning at the root
		{Op: draft.OpAdd, Value: map[string]any{}},
		{Op: draft.OpRemove},
		// a map root cannot be replaced by a sequence
		{Op: draft.OpReplace, Value: []any{1}},
		// integer key on a map, string key on a list
		{Op: draft.OpReplace, Path: []any{5}, Value: 1},
		{Op: draft.OpReplace, Path: []any{"l", "k"}, Value: 1},
		// descending through a primitive or rich text
		{Op: draft.OpReplace, Path: []any{"t", "x"}, Value: 1},
		{Op: draft.OpReplace, Path: []any{"rich", 0}, Value: 1},
		// missing entries and out of range indices on the path
		{Op: draft.OpReplace, Path: []any{"missing", "k"}, Value: 1},
		{Op: draft.OpAdd, Path: []any{"l", 5}, Value: 1},
		{Op: draft.OpRemove, Path: []any{"l", 5}},
		// negative resize
		{Op: draft.OpReplace, Path: []any{"l", "length"}, Value: -1},
		// fractional indices must not truncate onto a neighbor
		{Op: draft.OpReplace, Path: []any{"l", 0.5}, Value: 1},
		{Op: draft.OpRemove, Path: []any{"l", 0.5}},
		{Op: draft.OpReplace, Path: []any{"l", 0.5, "k"}, Value: 1},
	} {
		err := ApplyPatch(root, patch)
		assert.ErrorIs(t, err, ErrUnsupportedOperation, "patch %s", patch)
	}
}

func TestApplyPatchReplaceSwapsNonMapElements(t *testing.T) {
	doc := crdt.NewDoc()
	l := doc.GetList("data")
	l.Append(1)

	require.NoError(t, ApplyPatch(l, draft.Patch{
		Op: draft.OpReplace, Path: []any{0}, Value: map[string]any{"k": 1},
	}))
	elem, ok := l.Get(0).(*crdt.Map)
	require.True(t, ok)

	// Replacing a keyed element with a primitive swaps the element out
	require.NoError(t, ApplyPatch(l, draft.Patch{
		Op: draft.OpReplace, Path: []any{0}, Value: 7,
	}))
	assert.Equal(t, []any{7}, l.ToJSON())
	assert.Nil(t, elem.Doc())
}

func TestConvertValuePrimitivesPassThrough(t *testing.T) {
	for _, v := range []any{nil, true, 1, int64(2), 3.5, "s"} {
		got, err := convertValue(v)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
