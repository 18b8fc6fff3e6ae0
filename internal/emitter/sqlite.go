package emitter

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/juliosaraiva/logshape/internal/parser"
)

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS records (
	run_id TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	line INTEGER NOT NULL,
	type TEXT NOT NULL,
	record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS records_run_line ON records (run_id, line);
`

const insertRecord = `INSERT INTO records (run_id, source, line, type, record) VALUES (?, ?, ?, ?, ?)`

// SQLiteEmitter stores records in a SQLite database. Each run gets its own
// run_id so repeated conversions into one file stay separable.
type SQLiteEmitter struct {
	db      *sql.DB
	runID   string
	options Options
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path string, opts Options) (*SQLiteEmitter, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite output requires a file path")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	if _, err := db.Exec(createRecordsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create records table: %w", err)
	}

	return &SQLiteEmitter{
		db:      db,
		runID:   uuid.NewString(),
		options: opts,
	}, nil
}

// RunID returns the identifier stamped on this run's rows.
func (e *SQLiteEmitter) RunID() string {
	return e.runID
}

// Emit inserts every record in one transaction.
func (e *SQLiteEmitter) Emit(records []parser.Record) error {
	tx, err := e.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertRecord)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		data, err := json.Marshal(Shape(r, e.options.Flat))
		if err != nil {
			return fmt.Errorf("line %d: %w", r.Line, err)
		}
		if _, err := stmt.Exec(e.runID, r.Source, r.Line, r.Type, string(data)); err != nil {
			return fmt.Errorf("line %d: %w", r.Line, err)
		}
	}

	return tx.Commit()
}

// Close closes the database.
func (e *SQLiteEmitter) Close() error {
	return e.db.Close()
}
