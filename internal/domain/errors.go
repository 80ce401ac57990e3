package domain

import "errors"

var (
	// ErrBatchNotFound indicates the referenced batch row does not exist.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrDeadLetterNotFound indicates the referenced dead-letter row does not exist.
	ErrDeadLetterNotFound = errors.New("dead letter item not found")

	// ErrDuplicateBatch indicates an active batch with the same
	// (type, metadata hash) already exists.
	ErrDuplicateBatch = errors.New("active batch with same type and metadata already exists")

	// ErrArtistNotFound indicates the referenced artist row does not exist.
	// Catalog children are only ingested after their parent, so a miss means
	// out-of-order arrival, not a transient condition.
	ErrArtistNotFound = errors.New("artist not found")

	// ErrAlbumNotFound indicates the referenced album row does not exist.
	ErrAlbumNotFound = errors.New("album not found")

	// ErrInvalidID indicates a malformed identifier.
	ErrInvalidID = errors.New("invalid ID format")

	// ErrInvalidRequest indicates a malformed request body.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnauthorized indicates a missing or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
)
