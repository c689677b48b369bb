// Package library implements the embedded catalogue database: an in-memory
// SQLite instance whose whole serialized image is written to a blob store
// after every committed mutation, plus the domain operations layered on it.
package library

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ncruces/go-sqlite3"
	"github.com/ncruces/go-sqlite3/ext/serdes"

	"shelfkeeper/storage"
)

// Row is one result row, column name to value. Integer columns come back as
// int64, floats as float64, text as string, blobs as []byte, NULL as nil.
type Row map[string]any

// Result reports the effect of a mutating statement.
type Result struct {
	RowsAffected int64
	InsertedID   int64
}

// Config carries the collaborators an Engine needs.
type Config struct {
	// Store persists the serialized database. Required.
	Store storage.BlobStore
	// Seed supplies the bundled seed database. Defaults to BuildSeed.
	Seed SeedSource
	// Logger for lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Engine owns one live in-memory database instance. It is not safe for
// concurrent use; the execution model is a single logical thread of control.
type Engine struct {
	store storage.BlobStore
	seed  SeedSource
	log   *slog.Logger
	conn  *sqlite3.Conn
	dirty bool
}

// Open loads the persisted database from the store, or seeds a fresh one.
//
// A persisted blob is adopted only if it parses and contains every required
// table; otherwise it is discarded and the seed takes its place (self-healing
// reseed, not a migration). The first-run and reseed paths persist the
// adopted seed immediately.
func Open(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("initialize: nil blob store")
	}
	e := &Engine{
		store: cfg.Store,
		seed:  cfg.Seed,
		log:   cfg.Logger,
	}
	if e.seed == nil {
		e.seed = BuildSeed
	}
	if e.log == nil {
		e.log = slog.Default()
	}

	blob, err := e.store.Get(storage.DatabaseKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		e.log.Info("no persisted database, seeding")
		if err := e.adoptSeed(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("initialize: load persisted database: %w", err)
	default:
		conn, err := connFromBlob(blob)
		if err != nil {
			e.log.Warn("persisted database unreadable, reseeding", "error", err)
			if err := e.adoptSeed(); err != nil {
				return nil, err
			}
			break
		}
		missing, err := missingTables(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("initialize: schema check: %w", err)
		}
		if len(missing) > 0 {
			conn.Close()
			e.log.Warn("persisted database missing tables, reseeding", "missing", missing)
			if err := e.adoptSeed(); err != nil {
				return nil, err
			}
			break
		}
		e.conn = conn
	}
	return e, nil
}

// adoptSeed fetches the seed blob, makes it the live instance, and persists
// it so the store reflects the adopted state.
func (e *Engine) adoptSeed() error {
	blob, err := e.seed()
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	conn, err := connFromBlob(blob)
	if err != nil {
		return fmt.Errorf("initialize: parse seed: %w", err)
	}
	if old := e.conn; old != nil {
		old.Close()
	}
	e.conn = conn
	e.dirty = true
	return e.Persist()
}

// connFromBlob opens a fresh in-memory connection holding the given
// serialized database. Deserialization alone does not validate the bytes,
// so the schema is probed before the connection is handed out; a malformed
// blob fails here, not on first use.
func connFromBlob(blob []byte) (*sqlite3.Conn, error) {
	conn, err := sqlite3.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := serdes.Deserialize(conn, "main", blob); err != nil {
		conn.Close()
		return nil, fmt.Errorf("deserialize database: %w", err)
	}
	if _, err := listTables(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("parse database: %w", err)
	}
	return conn, nil
}

// listTables reads the table names from the schema. It doubles as the
// validity probe: it fails with SQLITE_NOTADB on bytes that are not a
// database image.
func listTables(conn *sqlite3.Conn) (map[string]bool, error) {
	present := map[string]bool{}
	stmt, _, err := conn.Prepare(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	for stmt.Step() {
		present[stmt.ColumnText(0)] = true
	}
	if err := stmt.Err(); err != nil {
		return nil, err
	}
	return present, nil
}

// missingTables returns the required table names absent from the schema.
func missingTables(conn *sqlite3.Conn) ([]string, error) {
	present, err := listTables(conn)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, name := range requiredTables {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// Query runs a read-only statement and returns all matching rows. The
// result is empty, never nil, when nothing matches.
func (e *Engine) Query(query string, args ...any) ([]Row, error) {
	if e.conn == nil {
		return nil, ErrNotInitialized
	}
	stmt, _, err := e.conn.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	if err := bindArgs(stmt, args); err != nil {
		return nil, err
	}

	rows := []Row{}
	cols := stmt.ColumnCount()
	for stmt.Step() {
		row := make(Row, cols)
		for i := 0; i < cols; i++ {
			row[stmt.ColumnName(i)] = columnValue(stmt, i)
		}
		rows = append(rows, row)
	}
	if err := stmt.Err(); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return rows, nil
}

// Execute runs one mutating statement, then serializes and persists the
// database before returning.
func (e *Engine) Execute(query string, args ...any) (Result, error) {
	if e.conn == nil {
		return Result{}, ErrNotInitialized
	}
	res, err := e.exec(query, args)
	if err != nil {
		return Result{}, err
	}
	e.dirty = true
	if err := e.Persist(); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (e *Engine) exec(query string, args []any) (Result, error) {
	stmt, _, err := e.conn.Prepare(query)
	if err != nil {
		return Result{}, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	if err := bindArgs(stmt, args); err != nil {
		return Result{}, err
	}
	for stmt.Step() {
	}
	if err := stmt.Err(); err != nil {
		return Result{}, fmt.Errorf("execute: %w", err)
	}
	return Result{
		RowsAffected: e.conn.Changes(),
		InsertedID:   e.conn.LastInsertRowID(),
	}, nil
}

// Tx is the statement surface handed to a Transaction body. Statements run
// inside the enclosing savepoint and are persisted once, after commit.
type Tx struct {
	e *Engine
}

// Execute runs one mutating statement inside the transaction.
func (t *Tx) Execute(query string, args ...any) (Result, error) {
	return t.e.exec(query, args)
}

// Query runs a read inside the transaction, seeing its uncommitted writes.
func (t *Tx) Query(query string, args ...any) ([]Row, error) {
	return t.e.Query(query, args...)
}

// Transaction runs body inside a savepoint. On normal completion the
// savepoint is released and the database is persisted once; any error rolls
// every statement back, so neither the live instance nor the persisted blob
// ever reflects a partial transaction.
func (e *Engine) Transaction(body func(tx *Tx) error) error {
	if e.conn == nil {
		return ErrNotInitialized
	}
	err := func() (err error) {
		defer e.conn.Savepoint().Release(&err)
		return body(&Tx{e: e})
	}()
	if err != nil {
		return err
	}
	e.dirty = true
	return e.Persist()
}

// Persist serializes the live instance and writes it to the blob store
// under the fixed key. No-op when nothing changed since the last persist.
func (e *Engine) Persist() error {
	if e.conn == nil {
		return ErrNotInitialized
	}
	if !e.dirty {
		return nil
	}
	blob, err := serdes.Serialize(e.conn, "main")
	if err != nil {
		return fmt.Errorf("serialize database: %w", err)
	}
	if err := e.store.Put(storage.DatabaseKey, blob); err != nil {
		e.log.Error("persist failed", "error", err)
		return fmt.Errorf("persist database: %w", err)
	}
	e.dirty = false
	return nil
}

// ExportSnapshot serializes the live instance without touching the store.
// The caller delivers the blob, e.g. as a downloadable backup file.
func (e *Engine) ExportSnapshot() ([]byte, error) {
	if e.conn == nil {
		return nil, ErrNotInitialized
	}
	blob, err := serdes.Serialize(e.conn, "main")
	if err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}
	return blob, nil
}

// RestoreSnapshot replaces the live instance wholesale with one parsed from
// blob, then persists it. The blob is parsed into a scratch connection
// first: a malformed snapshot fails without disturbing the live instance.
// No schema validation is performed; a stale snapshot is caught and reseeded
// by the next Open.
func (e *Engine) RestoreSnapshot(blob []byte) error {
	if e.conn == nil {
		return ErrNotInitialized
	}
	conn, err := connFromBlob(blob)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotParse, err)
	}
	e.conn.Close()
	e.conn = conn
	e.dirty = true
	e.log.Info("database restored from snapshot", "bytes", len(blob))
	return e.Persist()
}

// Close releases the live instance. Further use of the engine fails with
// ErrNotInitialized.
func (e *Engine) Close() error {
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}

// bindArgs binds positional parameters 1..n.
func bindArgs(stmt *sqlite3.Stmt, args []any) error {
	for i, arg := range args {
		var err error
		switch v := arg.(type) {
		case nil:
			err = stmt.BindNull(i + 1)
		case bool:
			err = stmt.BindBool(i+1, v)
		case int:
			err = stmt.BindInt64(i+1, int64(v))
		case int64:
			err = stmt.BindInt64(i+1, v)
		case float64:
			err = stmt.BindFloat(i+1, v)
		case string:
			err = stmt.BindText(i+1, v)
		case []byte:
			err = stmt.BindBlob(i+1, v)
		case time.Time:
			err = stmt.BindText(i+1, v.Format(DateFormat))
		default:
			return fmt.Errorf("bind arg %d: unsupported type %T", i+1, arg)
		}
		if err != nil {
			return fmt.Errorf("bind arg %d: %w", i+1, err)
		}
	}
	return nil
}

// columnValue extracts a Go value for column i of the current row.
func columnValue(stmt *sqlite3.Stmt, i int) any {
	switch stmt.ColumnType(i) {
	case sqlite3.INTEGER:
		return stmt.ColumnInt64(i)
	case sqlite3.FLOAT:
		return stmt.ColumnFloat(i)
	case sqlite3.TEXT:
		return stmt.ColumnText(i)
	case sqlite3.BLOB:
		return stmt.ColumnBlob(i, nil)
	default:
		return nil
	}
}
