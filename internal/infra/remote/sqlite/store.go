// Package sqlite implements the remote record store on an embedded SQLite
// file, useful for a self-hosted record API or offline sync testing.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"placekit/internal/remote/core"
	"placekit/pkg/domain"
)

const driverName = string(core.DriverSQLite)

// Store persists records as JSON payloads in a single table.
type Store struct {
	db     *sql.DB
	path   string
	logger core.Logger
}

// NewStore opens (creating if needed) the sqlite file at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "placekit-remote.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	// Other processes may hold the file; wait for their writes instead of failing.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		record_type TEXT NOT NULL,
		id TEXT NOT NULL,
		payload BLOB NOT NULL,
		last_modified TEXT NOT NULL,
		PRIMARY KEY (record_type, id)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}
	return &Store{db: db, path: path, logger: core.NopLogger{}}, nil
}

// Driver returns the remote driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverSQLite }

// SetLogger routes warnings about skipped rows to l.
func (s *Store) SetLogger(l core.Logger) { s.logger = core.LoggerOrNop(l) }

// FetchAll returns every record of recordType ordered by id. Rows whose
// payload does not decode are logged and skipped.
func (s *Store) FetchAll(ctx context.Context, recordType string) ([]domain.PlacedObject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM records WHERE record_type = ? ORDER BY id`, recordType)
	if err != nil {
		return nil, domain.Unavailable(driverName, "fetch", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.PlacedObject
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, domain.Unavailable(driverName, "fetch", fmt.Errorf("scan: %w", err))
		}
		var obj domain.PlacedObject
		if err := json.Unmarshal(payload, &obj); err != nil {
			s.logger.Warn("skipping undecodable remote record", "driver", driverName, "type", recordType, "id", id, "error", err)
			continue
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable(driverName, "fetch", err)
	}
	return out, nil
}

// Upsert creates or replaces a record.
func (s *Store) Upsert(ctx context.Context, recordType string, obj domain.PlacedObject) error {
	if obj.ID == "" {
		return fmt.Errorf("upsert %s: empty id", recordType)
	}
	payload, err := json.Marshal(obj)
	if err != nil {
		return &domain.SerializationError{Op: "encode record " + obj.ID, Err: err}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO records(record_type,id,payload,last_modified) VALUES(?,?,?,?)
		ON CONFLICT(record_type,id) DO UPDATE SET payload=excluded.payload, last_modified=excluded.last_modified`,
		recordType, obj.ID, payload, obj.LastModified.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return domain.Unavailable(driverName, "upsert", err)
	}
	return nil
}

// Delete removes one record.
func (s *Store) Delete(ctx context.Context, recordType, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE record_type = ? AND id = ?`, recordType, id)
	if err != nil {
		return false, domain.Unavailable(driverName, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.Unavailable(driverName, "delete", err)
	}
	return n > 0, nil
}

// DeleteAll removes every record of recordType.
func (s *Store) DeleteAll(ctx context.Context, recordType string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE record_type = ?`, recordType)
	if err != nil {
		return 0, domain.Unavailable(driverName, "delete_all", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.Unavailable(driverName, "delete_all", err)
	}
	return int(n), nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
