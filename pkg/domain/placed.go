// Package domain defines the placed-object record, its transform value types,
// and the error taxonomy shared by the store, its persistence adapters, and
// the record API.
package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// RecordType is the logical collection name placed objects are stored under
// in a remote record store.
const RecordType = "PlacedObject"

// PlacedObject is one user-placed item in the scene.
type PlacedObject struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ModelKind    string    `json:"model_kind"`
	Transform    Transform `json:"transform"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
}

// NewPlacedObject builds a record with a fresh identifier. Both timestamps are
// set to now.
func NewPlacedObject(name, modelKind string, transform Transform, now time.Time) PlacedObject {
	now = now.UTC()
	return PlacedObject{
		ID:           NewID(),
		Name:         name,
		ModelKind:    modelKind,
		Transform:    transform,
		CreatedAt:    now,
		LastModified: now,
	}
}

// NewID returns an opaque unique identifier in string form.
func NewID() string {
	return uuid.NewString()
}

// Validate reports structural problems with the record. Scale range is a
// precondition of the manipulation helpers and is only checked for positivity.
func (o PlacedObject) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("placed object: empty id")
	}
	if err := o.Transform.Validate(); err != nil {
		return fmt.Errorf("placed object %s: %w", o.ID, err)
	}
	if !o.CreatedAt.IsZero() && o.LastModified.Before(o.CreatedAt) {
		return fmt.Errorf("placed object %s: last_modified %s precedes created_at %s",
			o.ID, o.LastModified.Format(time.RFC3339Nano), o.CreatedAt.Format(time.RFC3339Nano))
	}
	return nil
}

// NewerThan reports whether o should replace other under last-write-wins.
// Ties favour other.
func (o PlacedObject) NewerThan(other PlacedObject) bool {
	return o.LastModified.After(other.LastModified)
}

// Equal reports whether o and other hold the same field values. Timestamps
// compare by instant, so a record that went through JSON still matches.
func (o PlacedObject) Equal(other PlacedObject) bool {
	return o.ID == other.ID &&
		o.Name == other.Name &&
		o.ModelKind == other.ModelKind &&
		o.Transform == other.Transform &&
		o.CreatedAt.Equal(other.CreatedAt) &&
		o.LastModified.Equal(other.LastModified)
}

// Handle is a non-owning reference to a record held by a store. Callers
// resolve it against the store on use instead of keeping the record itself.
type Handle struct {
	ID string
}

// Handle returns a lookup handle for the record.
func (o PlacedObject) Handle() Handle {
	return Handle{ID: o.ID}
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
