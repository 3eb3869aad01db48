// Package uuid provides ID generation helpers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates random UUID strings used as ad identifiers.
type Generator struct {
	timeOrdered bool
}

// New returns a Generator producing UUIDv4 strings.
func New() *Generator {
	return &Generator{}
}

// NewTimeOrdered returns a Generator producing UUIDv7 strings, which sort by
// creation time.
func NewTimeOrdered() *Generator {
	return &Generator{timeOrdered: true}
}

// NewID returns a fresh UUID string.
func (g Generator) NewID() (string, error) {
	if g.timeOrdered {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generate uuid7: %w", err)
		}
		return id.String(), nil
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid4: %w", err)
	}
	return id.String(), nil
}
