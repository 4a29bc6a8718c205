package core

import "errors"

var (
	// ErrCorruptSnapshot is returned when a snapshot blob cannot be decoded.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrRemoteWriteFailed wraps failures of the debounced cloud write.
	ErrRemoteWriteFailed = errors.New("remote write failed")

	// ErrProjectNotFound is returned when a project id does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrAssetNotFound is returned when an asset id does not exist.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrStaleSurface marks an asynchronous completion whose surface is no
	// longer attached. It is never shown to users.
	ErrStaleSurface = errors.New("stale surface")
)
