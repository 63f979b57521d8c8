package store

import "errors"

// Sentinel errors for storage operations. Part of the package's public
// API; check with errors.Is().
var (
	// ErrChatNotFound indicates the requested chat does not exist.
	ErrChatNotFound = errors.New("chat not found")

	// ErrDocumentNotFound indicates the requested document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
)
