// Package models defines the dream record entity synced between the local
// store and the remote collection.
package models

import "time"

// SyncState tracks a record's position in the upload/sync lifecycle,
// independent of remote processing progress.
type SyncState string

const (
	SyncStatePending   SyncState = "pending"
	SyncStateUploading SyncState = "uploading"
	SyncStateUploaded  SyncState = "uploaded"
	SyncStateFailed    SyncState = "failed"
	SyncStateSynced    SyncState = "synced"
)

// ParseSyncState decodes a wire value. Unknown values fall back to the
// default (pending) rather than failing the whole document.
func ParseSyncState(s string) SyncState {
	switch SyncState(s) {
	case SyncStatePending, SyncStateUploading, SyncStateUploaded, SyncStateFailed, SyncStateSynced:
		return SyncState(s)
	default:
		return SyncStatePending
	}
}

// ProcessingState tracks a record's position in the external long-running
// media-generation pipeline. It is an independent axis from SyncState: a
// record can be synced while still processing remotely.
type ProcessingState string

const (
	ProcessingStatePending    ProcessingState = "pending"
	ProcessingStateProcessing ProcessingState = "processing"
	ProcessingStateCompleted  ProcessingState = "completed"
	ProcessingStateFailed     ProcessingState = "failed"
	ProcessingStateGenerating ProcessingState = "generating"
	ProcessingStateGenerated  ProcessingState = "generated"
)

// ParseProcessingState decodes a wire value, defaulting unknown values to
// pending.
func ParseProcessingState(s string) ProcessingState {
	switch ProcessingState(s) {
	case ProcessingStatePending, ProcessingStateProcessing, ProcessingStateCompleted,
		ProcessingStateFailed, ProcessingStateGenerating, ProcessingStateGenerated:
		return ProcessingState(s)
	default:
		return ProcessingStatePending
	}
}

// Record is a user-owned dream entry persisted locally and mirrored in the
// remote collection under the same ID.
type Record struct {
	// ID is a globally unique identifier, immutable after creation. The
	// remote collection uses the same value as its document key.
	ID string

	// OwnerID identifies the owning user; every query and sync operation
	// is scoped to it.
	OwnerID string

	// Content fields, overwritten by metadata sync.
	Title       string
	Description string
	Transcript  string
	Tags        []string
	Style       string

	// DreamDate is the logical date of the dream, distinct from CreatedAt.
	DreamDate time.Time

	// MediaURL is the remote locator of the primary video asset. Always
	// present once the record exists; may point to a placeholder before
	// processing completes.
	MediaURL string

	// LocalMediaPath is the cached file's name, never a full path (full
	// paths do not survive reinstalls). Empty means "not yet cached".
	// This field is local-only and must never be clobbered by a metadata
	// sync.
	LocalMediaPath string

	CreatedAt time.Time
	UpdatedAt time.Time

	// LastSyncedAt is set when a sync pass applies or inserts this record.
	LastSyncedAt time.Time

	SyncState       SyncState
	ProcessingState ProcessingState
}

// ApplyRemote overwrites the content fields, status enums and UpdatedAt
// from the remote version. LocalMediaPath and CreatedAt are left alone:
// caching is a local-only concern, and creation time is immutable.
func (r *Record) ApplyRemote(remote *Record, now time.Time) {
	r.Title = remote.Title
	r.Description = remote.Description
	r.Transcript = remote.Transcript
	r.Tags = remote.Tags
	r.Style = remote.Style
	r.DreamDate = remote.DreamDate
	r.MediaURL = remote.MediaURL
	r.UpdatedAt = remote.UpdatedAt
	r.SyncState = remote.SyncState
	r.ProcessingState = remote.ProcessingState
	r.LastSyncedAt = now
}
