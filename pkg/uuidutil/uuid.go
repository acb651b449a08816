// Package uuidutil generates the opaque identifiers used for tracked files,
// acquisitions, and store instances.
package uuidutil

import (
	"github.com/google/uuid"
)

// NewV4 generates a random UUID v4 string.
// Panics if the random source fails (system-level error, no recovery).
func NewV4() string {
	return uuid.Must(uuid.NewRandom()).String()
}

// Generator mints opaque ids for file entries and acquisitions.
type Generator struct {
	newRandom func() (uuid.UUID, error)
}

// NewGenerator returns a Generator backed by random v4 UUIDs.
func NewGenerator() *Generator {
	return &Generator{newRandom: uuid.NewRandom}
}

// NewID returns 16 globally unique bytes.
// Uniqueness is checked by the caller against the store at insert time.
func (g *Generator) NewID() []byte {
	u, err := g.newRandom()
	if err != nil {
		panic("managedfiles: random source failed: " + err.Error())
	}
	id := make([]byte, len(u))
	copy(id, u[:])
	return id
}
