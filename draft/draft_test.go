package draft

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sameRef(a, b any) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func TestProduceSetAddAndReplace(t *testing.T) {
	base := map[string]any{"a": 1}

	next, patches, err := Produce(base, func(d *Draft) error {
		if err := d.Set([]any{"a"}, 2); err != nil {
			return err
		}
		return d.Set([]any{"b"}, 3)
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"a": 2, "b": 3}, next)
	assert.Equal(t, map[string]any{"a": 1}, base)
	assert.Equal(t, []Patch{
		{Op: OpReplace, Path: []any{"a"}, Value: 2},
		{Op: OpAdd, Path: []any{"b"}, Value: 3},
	}, patches)
}

func TestProduceSharesUntouchedSubtrees(t *testing.T) {
	base := map[string]any{
		"x": map[string]any{"k": 1},
		"y": map[string]any{"k": 2},
	}

	next, _, err := Produce(base, func(d *Draft) error {
		return d.Set([]any{"x", "k"}, 9)
	}, nil)
	require.NoError(t, err)

	nm := next.(map[string]any)
	assert.False(t, sameRef(base, next))
	assert.False(t, sameRef(base["x"], nm["x"]))
	assert.True(t, sameRef(base["y"], nm["y"]))
	assert.Equal(t, map[string]any{"k": 1}, base["x"])
}

func TestSpliceReplacesCommonElements(t *testing.T) {
	base := map[string]any{"l": []any{1, 2, 3, 4}}

	next, patches, err := Produce(base, func(d *Draft) error {
		return d.Splice([]any{"l"}, 1, 2, 5, 6)
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"l": []any{1, 5, 6, 4}}, next)
	assert.Equal(t, []Patch{
		{Op: OpReplace, Path: []any{"l", 1}, Value: 5},
		{Op: OpReplace, Path: []any{"l", 2}, Value: 6},
	}, patches)
	assert.Equal(t, []any{1, 2, 3, 4}, base["l"])
}

func TestSpliceTailShrinkRecordsLength(t *testing.T) {
	base := []any{1, 2, 3}

	next, patches, err := Produce(base, func(d *Draft) error {
		return d.Splice(nil, 1, 2)
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []any{1}, next)
	assert.Equal(t, []Patch{
		{Op: OpReplace, Path: []any{"length"}, Value: 1},
	}, patches)
}

func TestSpliceTailShrinkElementWise(t *testing.T) {
	base := []any{1, 2, 3}

	next, patches, err := Produce(base, func(d *Draft) error {
		return d.Splice(nil, 1, 2)
	}, &Options{ArrayLengthAssignment: false})
	require.NoError(t, err)

	assert.Equal(t, []any{1}, next)
	assert.Equal(t, []Patch{
		{Op: OpRemove, Path: []any{1}},
		{Op: OpRemove, Path: []any{1}},
	}, patches)
}

func TestSpliceMiddleShrink(t *testing.T) {
	base := []any{1, 2, 3}

	next, patches, err := Produce(base, func(d *Draft) error {
		return d.Splice(nil, 0, 2, 9)
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []any{9, 3}, next)
	assert.Equal(t, []Patch{
		{Op: OpReplace, Path: []any{0}, Value: 9},
		{Op: OpRemove, Path: []any{1}},
	}, patches)
}

func TestSpliceGrow(t *testing.T) {
	base := []any{1, 4}

	next, patches, err := Produce(base, func(d *Draft) error {
		return d.Splice(nil, 1, 0, 2, 3)
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []any{1, 2, 3, 4}, next)
	assert.Equal(t, []Patch{
		{Op: OpAdd, Path: []any{1}, Value: 2},
		{Op: OpAdd, Path: []any{2}, Value: 3},
	}, patches)
}

func TestSetLength(t *testing.T) {
	next, patches, err := Produce([]any{1}, func(d *Draft) error {
		return d.SetLength(nil, 3)
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{1, nil, nil}, next)
	assert.Equal(t, []Patch{
		{Op: OpReplace, Path: []any{"length"}, Value: 3},
	}, patches)

	next, patches, err = Produce([]any{1, 2, 3}, func(d *Draft) error {
		return d.SetLength(nil, 1)
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{1}, next)
	assert.Equal(t, []Patch{
		{Op: OpReplace, Path: []any{"length"}, Value: 1},
	}, patches)
}

func TestInsert(t *testing.T) {
	base := map[string]any{"l": []any{1, 3}}

	next, patches, err := Produce(base, func(d *Draft) error {
		return d.Insert([]any{"l", 1}, 2)
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"l": []any{1, 2, 3}}, next)
	assert.Equal(t, []Patch{
		{Op: OpAdd, Path: []any{"l", 1}, Value: 2},
	}, patches)
}

func TestDeleteMapKey(t *testing.T) {
	base := map[string]any{"a": 1, "b": 2}

	next, patches, err := Produce(base, func(d *Draft) error {
		if err := d.Delete([]any{"a"}); err != nil {
			return err
		}
		// Missing keys are a no-op and record nothing
		return d.Delete([]any{"missing"})
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"b": 2}, next)
	assert.Equal(t, []Patch{
		{Op: OpRemove, Path: []any{"a"}},
	}, patches)
}

func TestDeleteListElement(t *testing.T) {
	base := []any{1, 2, 3}

	next, patches, err := Produce(base, func(d *Draft) error {
		return d.Delete([]any{0})
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []any{2, 3}, next)
	assert.Equal(t, []Patch{
		{Op: OpRemove, Path: []any{0}},
	}, patches)
}

func TestSetRoot(t *testing.T) {
	next, patches, err := Produce(map[string]any{"a": 1}, func(d *Draft) error {
		d.SetRoot(map[string]any{"b": 2})
		return nil
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"b": 2}, next)
	assert.Equal(t, []Patch{
		{Op: OpReplace, Value: map[string]any{"b": 2}},
	}, patches)
}

func TestGet(t *testing.T) {
	base := map[string]any{"l": []any{1, map[string]any{"k": "v"}}}

	_, _, err := Produce(base, func(d *Draft) error {
		assert.Equal(t, "v", d.Get("l", 1, "k"))
		assert.Equal(t, 1, d.Get("l", 0))
		assert.Nil(t, d.Get("l", 5))
		assert.Nil(t, d.Get("missing"))
		assert.Nil(t, d.Get("l", 0, "deep"))
		// Fractional indices never truncate onto a neighbor
		assert.Nil(t, d.Get("l", 0.5))
		return nil
	}, nil)
	require.NoError(t, err)
}

func TestProduceErrorDiscardsResult(t *testing.T) {
	boom := errors.New("boom")
	next, patches, err := Produce(map[string]any{"a": 1}, func(d *Draft) error {
		if err := d.Set([]any{"a"}, 2); err != nil {
			return err
		}
		return boom
	}, nil)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, next)
	assert.Nil(t, patches)
}

func TestSetErrors(t *testing.T) {
	_, _, err := Produce(map[string]any{"a": 1}, func(d *Draft) error {
		return d.Set([]any{"a", "b"}, 1)
	}, nil)
	assert.Error(t, err)

	_, _, err = Produce([]any{1}, func(d *Draft) error {
		return d.Set([]any{5}, 1)
	}, nil)
	assert.Error(t, err)

	// A fractional index is rejected, not truncated to index 0
	_, _, err = Produce([]any{1, 2}, func(d *Draft) error {
		return d.Set([]any{0.5}, 9)
	}, nil)
	assert.Error(t, err)
}
