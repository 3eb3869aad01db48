package catalog

import "errors"

var (
	// ErrInvalidImage rejects a record whose image breaks the size contract.
	// Nothing is written when it is returned.
	ErrInvalidImage = errors.New("invalid image")
	// ErrInvalidRecord rejects a record missing its identifier.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrPersistence wraps storage failures. The index document on disk is
	// never left half written; retry the whole save.
	ErrPersistence = errors.New("catalog persistence failed")
)
