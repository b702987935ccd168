package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

const (
	defaultBusyTimeout = 5 * time.Second

	logMsgStatementFailed   = "statement failed"
	logMsgStatementExecuted = "statement executed"
	logMsgDuplicateKey      = "statement rejected by unique index"
	logMsgRollbackFailed    = "transaction rollback failed"
	logAttrStatement        = "statement"
	logAttrError            = "error"
	logAttrDurationMS       = "duration_ms"
	logAttrColumn           = "column"
)

// Database is the SQLite implementation of Port.
type Database struct {
	db *sqlx.DB
	querier

	busyTimeout time.Duration
}

// DatabaseOption configures a Database.
type DatabaseOption func(*Database)

// WithBusyTimeout sets how long a connection waits for a competing writer.
func WithBusyTimeout(timeout time.Duration) DatabaseOption {
	return func(d *Database) {
		if timeout > 0 {
			d.busyTimeout = timeout
		}
	}
}

// WithDatabaseLogger sets the logger receiving statement failures and, at
// debug level, statement timings.
func WithDatabaseLogger(logger Logger) DatabaseOption {
	return func(d *Database) {
		if logger != nil {
			d.logger = logger
		}
	}
}

var _ Port = (*Database)(nil)

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string, opts ...DatabaseOption) (*Database, error) {
	database := &Database{
		querier:     querier{logger: nopLogger{}},
		busyTimeout: defaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(database)
	}

	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Transactions take the write lock up front so that concurrent lends
	// serialize instead of failing on lock upgrade.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=1&_txlock=immediate",
		dbPath, database.busyTimeout.Milliseconds())
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database.db = db
	database.ext = db
	return database, nil
}

// Close closes the DB.
func (d *Database) Close() error {
	return d.db.Close()
}

// InTx implements Port.
func (d *Database) InTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		d.logger.Error(logMsgStatementFailed, logAttrStatement, "begin", logAttrError, err.Error())
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			d.logger.Warn(logMsgRollbackFailed, logAttrError, rbErr.Error())
		}
	}()

	if err := fn(&querier{ext: tx, logger: d.logger}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		d.logger.Error(logMsgStatementFailed, logAttrStatement, "commit", logAttrError, err.Error())
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            email TEXT,
            password_hash TEXT NOT NULL,
            deleted_at DATETIME
        );`,
		// Uniqueness only binds active rows so keys can be reused after a soft delete.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
            ON users(username) WHERE deleted_at IS NULL;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
            ON users(email) WHERE deleted_at IS NULL AND email IS NOT NULL;`,
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            isbn TEXT NOT NULL,
            author TEXT NOT NULL,
            category TEXT NOT NULL,
            available BOOLEAN NOT NULL DEFAULT 1,
            deleted_at DATETIME
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_books_isbn_active
            ON books(isbn) WHERE deleted_at IS NULL;`,
		`CREATE TABLE IF NOT EXISTS loans (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            book_id INTEGER NOT NULL REFERENCES books(id),
            user_id INTEGER NOT NULL REFERENCES users(id),
            loan_date DATETIME NOT NULL,
            return_date DATETIME
        );`,
		// At most one open loan per book.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_loans_open_book
            ON loans(book_id) WHERE return_date IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_loans_user ON loans(user_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Statement execution
// ---------------------------------------------------------------------------

// querier runs statements on either the pool or an open transaction.
type querier struct {
	ext    sqlx.ExtContext
	logger Logger
}

func (q *querier) Insert(ctx context.Context, stmt Statement) (int64, error) {
	if err := stmt.Err(); err != nil {
		return 0, q.fail(stmt, err)
	}
	start := time.Now()
	res, err := q.ext.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, q.fail(stmt, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, q.fail(stmt, err)
	}
	q.executed(stmt, start)
	return id, nil
}

func (q *querier) Exec(ctx context.Context, stmt Statement) (int64, error) {
	if err := stmt.Err(); err != nil {
		return 0, q.fail(stmt, err)
	}
	start := time.Now()
	res, err := q.ext.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, q.fail(stmt, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, q.fail(stmt, err)
	}
	q.executed(stmt, start)
	return n, nil
}

func (q *querier) SelectOne(ctx context.Context, dest any, stmt Statement) (bool, error) {
	if err := stmt.Err(); err != nil {
		return false, q.fail(stmt, err)
	}
	start := time.Now()
	err := sqlx.GetContext(ctx, q.ext, dest, stmt.SQL, stmt.Args...)
	if errors.Is(err, sql.ErrNoRows) {
		q.executed(stmt, start)
		return false, nil
	}
	if err != nil {
		return false, q.fail(stmt, err)
	}
	q.executed(stmt, start)
	return true, nil
}

func (q *querier) SelectAll(ctx context.Context, dest any, stmt Statement) error {
	if err := stmt.Err(); err != nil {
		return q.fail(stmt, err)
	}
	start := time.Now()
	if err := sqlx.SelectContext(ctx, q.ext, dest, stmt.SQL, stmt.Args...); err != nil {
		return q.fail(stmt, err)
	}
	q.executed(stmt, start)
	return nil
}

func (q *querier) executed(stmt Statement, start time.Time) {
	q.logger.Debug(logMsgStatementExecuted,
		logAttrStatement, stmt.Name,
		logAttrDurationMS, time.Since(start).Milliseconds())
}

// fail wraps err with the statement name. Unique-index violations become a
// DuplicateKeyError and are not logged as failures.
func (q *querier) fail(stmt Statement, err error) error {
	if column, dup := uniqueViolation(err); dup {
		q.logger.Debug(logMsgDuplicateKey, logAttrStatement, stmt.Name, logAttrColumn, column)
		return fmt.Errorf("%s: %w", stmt.Name, &DuplicateKeyError{Column: column, Err: err})
	}
	q.logger.Error(logMsgStatementFailed, logAttrStatement, stmt.Name, logAttrError, err.Error())
	return fmt.Errorf("%s: %w", stmt.Name, err)
}

// uniqueViolation reports whether err is a SQLite unique constraint failure
// and extracts the column from "UNIQUE constraint failed: books.isbn".
func uniqueViolation(err error) (string, bool) {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return "", false
	}
	msg := sqliteErr.Error()
	if i := strings.Index(msg, "failed: "); i >= 0 {
		target := msg[i+len("failed: "):]
		if comma := strings.IndexByte(target, ','); comma >= 0 {
			target = target[:comma]
		}
		if dot := strings.LastIndexByte(target, '.'); dot >= 0 {
			target = target[dot+1:]
		}
		return strings.TrimSpace(target), true
	}
	return "", true
}
