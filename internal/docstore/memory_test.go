package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetMergeKeepsUnrelatedFields(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	ref := Doc("users", "u1")

	require.NoError(t, m.Set(ctx, ref, map[string]any{"email": "a@x.com", "phone": "555"}, false))
	require.NoError(t, m.Set(ctx, ref, map[string]any{"role": "admin"}, true))

	d, err := m.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"email": "a@x.com", "phone": "555", "role": "admin"}, d.Fields)

	require.NoError(t, m.Set(ctx, ref, map[string]any{"role": "user"}, false))
	d, err = m.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"role": "user"}, d.Fields)
}

func TestMemory_GetMissingAndDeleteIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Get(ctx, Doc("users", "nope"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, m.Delete(ctx, Doc("users", "nope")))
}

func TestMemory_QueryWhere(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, Doc("users", "b"), map[string]any{"uid": "u1"}, false))
	require.NoError(t, m.Set(ctx, Doc("users", "a"), map[string]any{"uid": "u1"}, false))
	require.NoError(t, m.Set(ctx, Doc("users", "c"), map[string]any{"uid": "u2"}, false))
	require.NoError(t, m.Set(ctx, Doc("other", "d"), map[string]any{"uid": "u1"}, false))

	docs, err := m.QueryWhere(ctx, "users", "uid", "u1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Ref.ID)
	assert.Equal(t, "b", docs[1].Ref.ID)

	_, err = m.QueryWhere(ctx, "users", "uid') OR 1=1 --", "x")
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestMemory_BatchAppliesOnCommitOnly(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, Doc("users", "old"), map[string]any{"x": 1}, false))

	b := m.Batch()
	b.Set(Doc("users", "new"), map[string]any{"y": 2}, true)
	b.Delete(Doc("users", "old"))
	assert.Equal(t, 2, b.Len())

	_, err := m.Get(ctx, Doc("users", "new"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Commit(ctx))
	_, err = m.Get(ctx, Doc("users", "old"))
	assert.ErrorIs(t, err, ErrNotFound)
	d, err := m.Get(ctx, Doc("users", "new"))
	require.NoError(t, err)
	assert.Equal(t, 2, d.Fields["y"])
}
