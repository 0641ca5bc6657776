package search

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresIndex stores documents as jsonb in read_documents. The upsert
// only replaces rows whose stored version is not newer.
type PostgresIndex struct {
	db *sqlx.DB
}

func NewPostgresIndex(db *sqlx.DB) *PostgresIndex {
	return &PostgresIndex{db: db}
}

const upsertDocumentSQL = `
	INSERT INTO read_documents (collection, id, version, body, indexed_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (collection, id) DO UPDATE SET
		version = EXCLUDED.version,
		body = EXCLUDED.body,
		indexed_at = EXCLUDED.indexed_at
	WHERE read_documents.version <= EXCLUDED.version`

func (ix *PostgresIndex) IndexDocument(ctx context.Context, doc Document) (bool, error) {
	if err := doc.validate(); err != nil {
		return false, err
	}
	body, err := json.Marshal(doc.Body)
	if err != nil {
		return false, errors.Wrapf(err, "marshal %s/%s", doc.Collection, doc.ID)
	}

	res, err := ix.db.ExecContext(ctx, upsertDocumentSQL, doc.Collection, doc.ID, doc.Version, string(body))
	if err != nil {
		return false, errors.Wrapf(err, "upsert %s/%s", doc.Collection, doc.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func (ix *PostgresIndex) Get(ctx context.Context, collection, id string, dest any) (bool, int, error) {
	var row struct {
		Version int    `db:"version"`
		Body    string `db:"body"`
	}
	err := ix.db.GetContext(ctx, &row,
		`SELECT version, body FROM read_documents WHERE collection = $1 AND id = $2`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, errors.Wrapf(err, "select %s/%s", collection, id)
	}
	if err := json.Unmarshal([]byte(row.Body), dest); err != nil {
		return false, 0, errors.Wrapf(err, "unmarshal %s/%s", collection, id)
	}
	return true, row.Version, nil
}

func (ix *PostgresIndex) List(ctx context.Context, collection string, limit int) ([]json.RawMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var bodies []string
	err := ix.db.SelectContext(ctx, &bodies,
		`SELECT body FROM read_documents WHERE collection = $1 ORDER BY indexed_at DESC LIMIT $2`,
		collection, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", collection)
	}
	out := make([]json.RawMessage, len(bodies))
	for i, b := range bodies {
		out[i] = json.RawMessage(b)
	}
	return out, nil
}
