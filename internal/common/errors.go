// Package common defines shared sentinel errors used across the dreamsync
// engine. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Transport errors. ErrNoNetwork means connectivity is unavailable
	// altogether (dial, DNS, timeout); callers typically defer silently
	// instead of alarming the user. ErrNetwork covers every other
	// transport-level failure.
	ErrNoNetwork = errors.New("no network")
	ErrNetwork   = errors.New("network error")

	// ErrRemoteData means the remote collection returned a payload that
	// could not be decoded or was rejected.
	ErrRemoteData = errors.New("malformed remote data")

	// ErrLocalStore means the local persistence layer failed.
	ErrLocalStore = errors.New("local store error")

	// Media cache errors.
	ErrDownloadFailed = errors.New("download failed")
	// ErrFileMissingAfterDownload means a download reported success but the
	// file is absent on disk. Always surfaced, never retried silently: it
	// indicates a filesystem or path-construction bug.
	ErrFileMissingAfterDownload = errors.New("file missing after download")

	// Auth / lookup errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)
