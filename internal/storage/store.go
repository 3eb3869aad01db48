// Package storage defines where catalog resources (index documents and
// images) live. Implementations exist for the local filesystem, Google Cloud
// Storage, and memory.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a named resource does not exist.
var ErrNotFound = errors.New("resource not found")

// Store persists named resources. Put must be all-or-nothing: a reader never
// observes a partially written resource.
type Store interface {
	// Put writes data under name, replacing any existing resource, and returns its URI.
	Put(ctx context.Context, name string, contentType string, data []byte) (string, error)
	// Get reads the resource stored under name.
	Get(ctx context.Context, name string) ([]byte, error)
	// Move relocates src to dst without deleting its content.
	Move(ctx context.Context, src, dst string) error
	// List returns the names of resources directly under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes the resource stored under name.
	Delete(ctx context.Context, name string) error
}
