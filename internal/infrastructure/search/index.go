// Package search is the indexing collaborator of the projections.
//
// IndexDocument replaces a document whole. It returns false, nil when the
// index declines the write, which happens when a newer version of the
// document is already stored. Any error means the index itself failed.
package search

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrInvalidDocument = errors.New("document needs a collection and an id")

type Document struct {
	Collection string
	ID         string
	Version    int
	Body       any
}

type Index interface {
	IndexDocument(ctx context.Context, doc Document) (bool, error)
	// Get decodes the stored body into dest.
	Get(ctx context.Context, collection, id string, dest any) (found bool, version int, err error)
	// List returns up to limit raw bodies, most recently indexed first.
	List(ctx context.Context, collection string, limit int) ([]json.RawMessage, error)
}

func (d Document) validate() error {
	if d.Collection == "" || d.ID == "" {
		return ErrInvalidDocument
	}
	return nil
}
