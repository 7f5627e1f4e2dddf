// Package core defines the record-store contract remote backends implement.
package core

import (
	"context"
	"sort"

	"placekit/pkg/domain"
)

// Driver identifies a concrete remote record store implementation.
type Driver string

const (
	// DriverMemory keeps records in process memory (tests, demos).
	DriverMemory Driver = "memory"
	// DriverSQLite stores records in an embedded sqlite file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores records in a PostgreSQL server.
	DriverPostgres Driver = "postgres"
	// DriverBlob stores one object per record on a blob backend (fs, s3).
	DriverBlob Driver = "blob"
	// DriverHTTP talks to the placekit record API.
	DriverHTTP Driver = "http"
)

// Store is record-oriented CRUD keyed by id within a record type. Results of
// FetchAll carry no ordering guarantee and may be a partial snapshot.
type Store interface {
	FetchAll(ctx context.Context, recordType string) ([]domain.PlacedObject, error)
	// Upsert creates or replaces the record with obj.ID.
	Upsert(ctx context.Context, recordType string, obj domain.PlacedObject) error
	// Delete removes one record, returning false when it did not exist.
	Delete(ctx context.Context, recordType, id string) (bool, error)
	// DeleteAll removes every record of recordType, returning the count removed.
	DeleteAll(ctx context.Context, recordType string) (int, error)
	Driver() Driver
}

// SortByID orders records by id so drivers can return stable listings.
func SortByID(objs []domain.PlacedObject) {
	sort.Slice(objs, func(i, j int) bool { return objs[i].ID < objs[j].ID })
}

// Logger receives warnings about stored records a driver had to skip.
type Logger interface {
	Warn(msg string, kv ...any)
}

// NopLogger discards every warning.
type NopLogger struct{}

// Warn implements Logger.
func (NopLogger) Warn(string, ...any) {}

// LoggerOrNop returns l, or NopLogger when l is nil.
func LoggerOrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}
