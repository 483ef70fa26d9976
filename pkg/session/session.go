// Package session manages the single shared connection to the destination.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/multierr"
)

// DriverName is the database/sql driver used for Databend's MySQL handler.
const DriverName = "mysql"

// Row is one result row with every column rendered as text. NULL columns
// are empty strings.
type Row []string

// Executor runs one statement against the destination and returns its rows.
type Executor interface {
	Execute(ctx context.Context, statement string) ([]Row, error)
}

// Session owns one *sql.Conn, opened lazily on the first Execute. Calls are
// serialized: at most one statement is in flight at a time.
type Session struct {
	driver  string
	dsn     string
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	db     *sql.DB
	conn   *sql.Conn
	closed bool
}

// New creates a Session. No connection is made until the first Execute.
// A zero timeout leaves statements bounded only by the caller's context.
func New(driver, dsn string, timeout time.Duration) *Session {
	return &Session{
		driver:  driver,
		dsn:     dsn,
		timeout: timeout,
		logger:  slog.Default().With("component", "session"),
	}
}

// Execute runs statement and returns every row.
func (s *Session) Execute(ctx context.Context, statement string) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("session: closed")
	}
	if err := s.open(ctx); err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Info("executing statement", "statement", statement)
	rows, err := s.conn.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("session: execute %q: %w", statement, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("session: read results of %q: %w", statement, err)
	}
	return out, nil
}

// Reset drops the current connection; the next Execute reconnects.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.release()
}

// Close releases the connection. The session cannot be used afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.release()
}

func (s *Session) open(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}

	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return fmt.Errorf("session: open %s: %w", s.driver, err)
	}

	// Grab a persistent connection so every statement shares one session.
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return fmt.Errorf("session: get connection: %w", err)
	}

	s.db = db
	s.conn = conn
	return nil
}

func (s *Session) release() error {
	var err error
	if s.conn != nil {
		err = multierr.Append(err, s.conn.Close())
		s.conn = nil
	}
	if s.db != nil {
		err = multierr.Append(err, s.db.Close())
		s.db = nil
	}
	if err != nil {
		return fmt.Errorf("session: release: %w", err)
	}
	return nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, v := range vals {
			row[i] = v.String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
