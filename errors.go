package examdump

import "errors"

var (
	// ErrUnreadableDocument is returned when the source document cannot
	// be read or parsed at all.
	ErrUnreadableDocument = errors.New("examdump: unreadable document")

	// ErrNoQuestionMarkers is returned when a document parses but
	// contains no recognized question markers.
	ErrNoQuestionMarkers = errors.New("examdump: no question markers found")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("examdump: unsupported document format")

	// ErrStoreRequired is returned when an operation needs persistence
	// but the engine was configured without a store.
	ErrStoreRequired = errors.New("examdump: store required for this operation")

	// ErrExtractionNotFound is returned when an extraction ID does not exist.
	ErrExtractionNotFound = errors.New("examdump: extraction not found")
)
