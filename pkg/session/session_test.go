package session

import (
	"context"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newSQLiteSession(t *testing.T) *Session {
	t.Helper()
	s := New("sqlite", "file::memory:", 5*time.Second)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExecuteReturnsRowsAsText(t *testing.T) {
	s := newSQLiteSession(t)
	ctx := context.Background()

	if _, err := s.Execute(ctx, "CREATE TABLE t (id TEXT, n INTEGER, note TEXT)"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(ctx, "INSERT INTO t VALUES ('a', 1, NULL), ('b', 2, 'x')"); err != nil {
		t.Fatal(err)
	}

	rows, err := s.Execute(ctx, "SELECT id, n, note FROM t ORDER BY id")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "a" || rows[0][1] != "1" || rows[0][2] != "" {
		t.Errorf("unexpected first row: %q", rows[0])
	}
	if rows[1][2] != "x" {
		t.Errorf("unexpected second row: %q", rows[1])
	}
}

func TestStatementsShareOneConnection(t *testing.T) {
	s := newSQLiteSession(t)
	ctx := context.Background()

	// A private in-memory database only survives on the connection that created it.
	if _, err := s.Execute(ctx, "CREATE TABLE only_here (x INTEGER)"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(ctx, "SELECT x FROM only_here"); err != nil {
		t.Fatalf("expected table on the shared connection: %v", err)
	}

	// Reset drops the connection and with it the in-memory database.
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(ctx, "SELECT x FROM only_here"); err == nil {
		t.Error("expected a fresh connection after Reset")
	}
}

func TestExecuteErrorIncludesStatement(t *testing.T) {
	s := newSQLiteSession(t)
	_, err := s.Execute(context.Background(), "SELEC nonsense")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "SELEC nonsense") {
		t.Errorf("expected statement in error, got %v", err)
	}
}

func TestExecuteAfterClose(t *testing.T) {
	s := New("sqlite", "file::memory:", 0)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(context.Background(), "SELECT 1"); err == nil {
		t.Error("expected error after Close")
	}
}
