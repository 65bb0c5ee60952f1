// Package remote implements the client side of the remote document
// collection: fetch/put of record documents over HTTP plus bearer-token
// handling.
package remote

import (
	"context"

	"github.com/dmitrijs2005/dreamsync/internal/models"
)

// Mirror is the remote document collection keyed by record ID. It is a
// reliable-but-occasionally-unavailable dependency: every operation is
// fallible and context-aware.
type Mirror interface {
	// FetchAll returns every document whose owner matches ownerID.
	FetchAll(ctx context.Context, ownerID string) ([]models.Document, error)

	// Put writes a document under its ID, replacing any previous version.
	Put(ctx context.Context, doc *models.Document) error
}
