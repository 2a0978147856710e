package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// MySQLStore keeps documents as JSON in the 'documents' table keyed by
// (collection, doc_id). Merge writes use JSON_MERGE_PATCH, so a field set
// to nil is removed rather than stored as null.
type MySQLStore struct{ DB *sql.DB }

func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{DB: db} }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	upsertMerge   = "INSERT INTO documents (collection, doc_id, data) VALUES (?,?,?) ON DUPLICATE KEY UPDATE data=JSON_MERGE_PATCH(data, VALUES(data)), updated_at=NOW()"
	upsertReplace = "INSERT INTO documents (collection, doc_id, data) VALUES (?,?,?) ON DUPLICATE KEY UPDATE data=VALUES(data), updated_at=NOW()"
	deleteDoc     = "DELETE FROM documents WHERE collection=? AND doc_id=?"
)

func (s *MySQLStore) Get(ctx context.Context, ref Ref) (Document, error) {
	var raw []byte
	err := s.DB.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection=? AND doc_id=? LIMIT 1",
		ref.Collection, ref.ID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return decode(ref, raw)
}

func (s *MySQLStore) Set(ctx context.Context, ref Ref, fields map[string]any, merge bool) error {
	return execSet(ctx, s.DB, ref, fields, merge)
}

func (s *MySQLStore) Delete(ctx context.Context, ref Ref) error {
	_, err := s.DB.ExecContext(ctx, deleteDoc, ref.Collection, ref.ID)
	return err
}

// QueryWhere returns documents of collection whose top-level field equals
// value, compared as unquoted JSON text.
func (s *MySQLStore) QueryWhere(ctx context.Context, collection, field string, value any) ([]Document, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx,
		"SELECT doc_id, data FROM documents WHERE collection=? AND JSON_UNQUOTE(JSON_EXTRACT(data, ?))=? ORDER BY doc_id",
		collection, "$."+field, fmt.Sprint(value))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		d, err := decode(Doc(collection, id), raw)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *MySQLStore) Batch() Batch { return &mysqlBatch{db: s.DB} }

type mysqlBatch struct {
	db  *sql.DB
	ops []op
}

func (b *mysqlBatch) Set(ref Ref, fields map[string]any, merge bool) {
	b.ops = append(b.ops, op{kind: opSet, ref: ref, fields: fields, merge: merge})
}

func (b *mysqlBatch) Delete(ref Ref) { b.ops = append(b.ops, op{kind: opDelete, ref: ref}) }

func (b *mysqlBatch) Len() int { return len(b.ops) }

// Commit runs every queued write in one transaction.
func (b *mysqlBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, o := range b.ops {
		switch o.kind {
		case opSet:
			err = execSet(ctx, tx, o.ref, o.fields, o.merge)
		case opDelete:
			_, err = tx.ExecContext(ctx, deleteDoc, o.ref.Collection, o.ref.ID)
		}
		if err != nil {
			return fmt.Errorf("batch %s: %w", o.ref.Path(), err)
		}
	}
	return tx.Commit()
}

func execSet(ctx context.Context, ex execer, ref Ref, fields map[string]any, merge bool) error {
	if fields == nil {
		fields = map[string]any{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	q := upsertReplace
	if merge {
		q = upsertMerge
	}
	_, err = ex.ExecContext(ctx, q, ref.Collection, ref.ID, raw)
	return err
}

func decode(ref Ref, raw []byte) (Document, error) {
	fields := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return Document{}, fmt.Errorf("decode %s: %w", ref.Path(), err)
		}
	}
	return Document{Ref: ref, Fields: fields}, nil
}
