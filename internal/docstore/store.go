// Package docstore is a small document database: schemaless documents
// addressed by collection and id, merge-writes, equality queries on a
// top-level field, and atomic batches.
package docstore

import (
	"context"
	"errors"
	"regexp"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidField = errors.New("invalid field name")
)

// Ref addresses one document.
type Ref struct {
	Collection string
	ID         string
}

func (r Ref) Path() string { return r.Collection + "/" + r.ID }

// Doc is shorthand for Ref{collection, id}.
func Doc(collection, id string) Ref { return Ref{Collection: collection, ID: id} }

type Document struct {
	Ref    Ref
	Fields map[string]any
}

// Store is implemented by MySQLStore and Memory.
type Store interface {
	Get(ctx context.Context, ref Ref) (Document, error)
	// Set writes fields. With merge, existing top-level fields not named in
	// fields are kept; without it the document is replaced.
	Set(ctx context.Context, ref Ref, fields map[string]any, merge bool) error
	// Delete is a no-op for a missing document.
	Delete(ctx context.Context, ref Ref) error
	QueryWhere(ctx context.Context, collection, field string, value any) ([]Document, error)
	Batch() Batch
}

// Batch collects writes that Commit applies all-or-nothing.
type Batch interface {
	Set(ref Ref, fields map[string]any, merge bool)
	Delete(ref Ref)
	Len() int
	Commit(ctx context.Context) error
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkField(field string) error {
	if !fieldName.MatchString(field) {
		return ErrInvalidField
	}
	return nil
}

type opKind int

const (
	opSet opKind = iota
	opDelete
)

type op struct {
	kind   opKind
	ref    Ref
	fields map[string]any
	merge  bool
}
