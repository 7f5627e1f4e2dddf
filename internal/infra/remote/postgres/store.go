// Package postgres implements the remote record store on PostgreSQL through
// the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"placekit/internal/remote/core"
	"placekit/pkg/domain"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/placekit?sslmode=disable"
	driverName    = string(core.DriverPostgres)
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists records as JSONB payloads keyed by (record_type, id).
type Store struct {
	db     *sql.DB
	logger core.Logger
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN), pings it, and ensures the records table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureRecordsTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db, logger: core.NopLogger{}}, nil
}

func ensureRecordsTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS records (
		record_type TEXT NOT NULL,
		id TEXT NOT NULL,
		payload JSONB NOT NULL,
		last_modified TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (record_type, id)
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure records table: %w", err)
	}
	return nil
}

// Driver returns the remote driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverPostgres }

// SetLogger routes warnings about skipped rows to l.
func (s *Store) SetLogger(l core.Logger) { s.logger = core.LoggerOrNop(l) }

// FetchAll returns every record of recordType. Rows whose payload does not
// decode are logged and skipped.
func (s *Store) FetchAll(ctx context.Context, recordType string) ([]domain.PlacedObject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM records WHERE record_type = $1 ORDER BY id`, recordType)
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
		return nil, domain.Unavailable(driverName, "fetch", fmt.Errorf("iterate records: %w", err))
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
	_, err = s.db.ExecContext(ctx, `INSERT INTO records(record_type,id,payload,last_modified) VALUES($1,$2,$3,$4) ON CONFLICT (record_type,id) DO UPDATE SET payload=EXCLUDED.payload, last_modified=EXCLUDED.last_modified`,
		recordType, obj.ID, payload, obj.LastModified.UTC())
	if err != nil {
		return domain.Unavailable(driverName, "upsert", err)
	}
	return nil
}

// Delete removes one record.
func (s *Store) Delete(ctx context.Context, recordType, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE record_type = $1 AND id = $2`, recordType, id)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE record_type = $1`, recordType)
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

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
