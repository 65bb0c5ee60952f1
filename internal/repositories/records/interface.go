// Package records implements persistence for dream records. Implementations
// are typically backed by a local SQLite database.
package records

import (
	"context"

	"github.com/dmitrijs2005/dreamsync/internal/models"
)

// Repository describes CRUD and query operations for Record objects.
type Repository interface {
	// Upsert inserts a new record or updates an existing one by ID.
	Upsert(ctx context.Context, r *models.Record) error

	// GetByID returns a record by its identifier, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Record, error)

	// GetAllByOwner returns every record owned by ownerID.
	GetAllByOwner(ctx context.Context, ownerID string) ([]*models.Record, error)

	// GetPendingByOwner returns the owner's records whose upload has not
	// completed yet (sync state pending or failed).
	GetPendingByOwner(ctx context.Context, ownerID string) ([]*models.Record, error)

	// DeleteByID removes a record. The cached media file, if any, is left
	// for the next cleanup pass.
	DeleteByID(ctx context.Context, id string) error
}
