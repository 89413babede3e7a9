package trending

import "errors"

var (
	// ErrNotAvailable reports that a document could not be retrieved.
	ErrNotAvailable = errors.New("document not available")
	// ErrMalformedDocument reports a body that cannot be read as markup at all.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrInvalidLimit reports a non-positive listing limit.
	ErrInvalidLimit = errors.New("limit must be positive")
	// ErrRunInProgress reports a crawl refused because another one is writing artifacts.
	ErrRunInProgress = errors.New("a run is already in progress")
)
