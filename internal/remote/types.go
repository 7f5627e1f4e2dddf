// Package remote re-exports the record-store contract and constructs the
// configured backend.
package remote

import (
	"placekit/internal/remote/core"
)

type (
	// Driver identifies a remote record store backend.
	Driver = core.Driver
	// Store is the record-oriented CRUD contract all backends satisfy.
	Store = core.Store
)

const (
	// DriverMemory keeps records in process memory.
	DriverMemory = core.DriverMemory
	// DriverSQLite stores records in an embedded sqlite database.
	DriverSQLite = core.DriverSQLite
	// DriverPostgres stores records in PostgreSQL.
	DriverPostgres = core.DriverPostgres
	// DriverBlob stores one object per record on a blob backend.
	DriverBlob = core.DriverBlob
	// DriverHTTP talks to a placekit record API server.
	DriverHTTP = core.DriverHTTP
)
