package models

import (
	"errors"
	"fmt"
	"time"
)

var ErrIncompleteDocument = errors.New("incomplete document")

// Document is the wire DTO of the remote collection. Timestamps travel as
// epoch milliseconds, enums as strings.
type Document struct {
	ID              string   `json:"id"`
	OwnerID         string   `json:"owner_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Transcript      string   `json:"transcript"`
	Tags            []string `json:"tags"`
	Style           string   `json:"style"`
	DreamDate       int64    `json:"dream_date"`
	MediaURL        string   `json:"media_url"`
	CreatedAt       int64    `json:"created_at"`
	UpdatedAt       int64    `json:"updated_at"`
	SyncState       string   `json:"sync_state"`
	ProcessingState string   `json:"processing_state"`
}

// Record converts the document into a local record. It fails when a
// required field is missing; the caller is expected to skip such documents
// and continue with the rest of the batch.
func (d *Document) Record() (*Record, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrIncompleteDocument)
	}
	if d.OwnerID == "" {
		return nil, fmt.Errorf("%w: missing owner_id (id=%s)", ErrIncompleteDocument, d.ID)
	}
	if d.MediaURL == "" {
		return nil, fmt.Errorf("%w: missing media_url (id=%s)", ErrIncompleteDocument, d.ID)
	}

	return &Record{
		ID:              d.ID,
		OwnerID:         d.OwnerID,
		Title:           d.Title,
		Description:     d.Description,
		Transcript:      d.Transcript,
		Tags:            d.Tags,
		Style:           d.Style,
		DreamDate:       fromEpochMillis(d.DreamDate),
		MediaURL:        d.MediaURL,
		CreatedAt:       fromEpochMillis(d.CreatedAt),
		UpdatedAt:       fromEpochMillis(d.UpdatedAt),
		SyncState:       ParseSyncState(d.SyncState),
		ProcessingState: ParseProcessingState(d.ProcessingState),
	}, nil
}

// NewDocument builds the wire representation of a local record.
func NewDocument(r *Record) *Document {
	return &Document{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		Title:           r.Title,
		Description:     r.Description,
		Transcript:      r.Transcript,
		Tags:            r.Tags,
		Style:           r.Style,
		DreamDate:       toEpochMillis(r.DreamDate),
		MediaURL:        r.MediaURL,
		CreatedAt:       toEpochMillis(r.CreatedAt),
		UpdatedAt:       toEpochMillis(r.UpdatedAt),
		SyncState:       string(r.SyncState),
		ProcessingState: string(r.ProcessingState),
	}
}

func fromEpochMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func toEpochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
