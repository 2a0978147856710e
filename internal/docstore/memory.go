package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store for local runs and tests. Values are kept
// as given; merge is shallow, matching how profile documents are written.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]map[string]any
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]map[string]any)}
}

func (m *Memory) Get(_ context.Context, ref Ref) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.docs[ref.Collection][ref.ID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{Ref: ref, Fields: clone(f)}, nil
}

func (m *Memory) Set(_ context.Context, ref Ref, fields map[string]any, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(ref, fields, merge)
	return nil
}

func (m *Memory) Delete(_ context.Context, ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[ref.Collection], ref.ID)
	return nil
}

func (m *Memory) QueryWhere(_ context.Context, collection, field string, value any) ([]Document, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	want := fmt.Sprint(value)

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for id, f := range m.docs[collection] {
		if v, ok := f[field]; ok && fmt.Sprint(v) == want {
			out = append(out, Document{Ref: Doc(collection, id), Fields: clone(f)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.ID < out[j].Ref.ID })
	return out, nil
}

func (m *Memory) Batch() Batch { return &memoryBatch{m: m} }

func (m *Memory) set(ref Ref, fields map[string]any, merge bool) {
	coll, ok := m.docs[ref.Collection]
	if !ok {
		coll = make(map[string]map[string]any)
		m.docs[ref.Collection] = coll
	}
	cur, exists := coll[ref.ID]
	if !merge || !exists {
		cur = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if v == nil && merge {
			delete(cur, k)
			continue
		}
		cur[k] = v
	}
	coll[ref.ID] = cur
}

type memoryBatch struct {
	m   *Memory
	ops []op
}

func (b *memoryBatch) Set(ref Ref, fields map[string]any, merge bool) {
	b.ops = append(b.ops, op{kind: opSet, ref: ref, fields: clone(fields), merge: merge})
}

func (b *memoryBatch) Delete(ref Ref) { b.ops = append(b.ops, op{kind: opDelete, ref: ref}) }

func (b *memoryBatch) Len() int { return len(b.ops) }

func (b *memoryBatch) Commit(_ context.Context) error {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	for _, o := range b.ops {
		switch o.kind {
		case opSet:
			b.m.set(o.ref, o.fields, o.merge)
		case opDelete:
			delete(b.m.docs[o.ref.Collection], o.ref.ID)
		}
	}
	return nil
}

func clone(f map[string]any) map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
