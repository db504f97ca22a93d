package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/remotefish2024/streamexec/pipeline"
	"github.com/remotefish2024/streamexec/storage"
)

var (
	_ storage.Consumer   = (*Writer)(nil)
	_ storage.StartHook  = (*Writer)(nil)
	_ storage.FinishHook = (*Writer)(nil)
)

// Writer persists chunks into a table reachable over the postgres wire
// protocol. The whole stream is written inside one transaction: OnStart
// begins it, Consume inserts each chunk's rows through a prepared statement
// and OnFinish commits. A stream that never commits leaves nothing behind.
type Writer struct {
	db      *sql.DB
	table   string
	columns []string

	tx   *sql.Tx
	stmt *sql.Stmt
}

// NewWriter connects to the database instance specified by dsn. The chunks
// fed to Consume must carry the listed columns, in order.
func NewWriter(dsn, table string, columns []string) (*Writer, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	return &Writer{
		db:      db,
		table:   table,
		columns: columns,
	}, nil
}

func (w *Writer) OnStart() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin write to %q: %w", w.table, err)
	}

	stmt, err := tx.Prepare(insertQuery(w.table, w.columns))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert into %q: %w", w.table, err)
	}

	w.tx = tx
	w.stmt = stmt
	return nil
}

func (w *Writer) Consume(chunk *pipeline.Chunk) error {
	if len(chunk.Columns) != len(w.columns) {
		return fmt.Errorf("insert into %q: got %d columns, want %d", w.table, len(chunk.Columns), len(w.columns))
	}

	args := make([]interface{}, len(w.columns))
	for row := 0; row < chunk.NumRows; row++ {
		for i, col := range chunk.Columns {
			args[i] = col.Values[row]
		}

		if _, err := w.stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert into %q: %w", w.table, err)
		}
	}

	return nil
}

func (w *Writer) OnFinish() error {
	if w.tx == nil {
		return nil
	}

	tx := w.tx
	w.tx = nil
	w.stmt = nil

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write to %q: %w", w.table, err)
	}
	return nil
}

// Close rolls back an uncommitted transaction and releases the connection
// pool.
func (w *Writer) Close() error {
	if w.tx != nil {
		_ = w.tx.Rollback()
		w.tx = nil
		w.stmt = nil
	}
	return w.db.Close()
}

func insertQuery(table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)
}
