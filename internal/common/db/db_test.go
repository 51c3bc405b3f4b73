package db

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("load: %w", sql.ErrNoRows)) {
		t.Fatalf("expected wrapped ErrNoRows to match")
	}
	if IsNoRows(fmt.Errorf("other")) {
		t.Fatalf("expected unrelated error not to match")
	}
}

func TestUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		key  string
		ok   bool
	}{
		{
			name: "mysql duplicate",
			err:  &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'problem_submissions.PRIMARY'"},
			key:  "problem_submissions.PRIMARY",
			ok:   true,
		},
		{
			name: "postgres duplicate",
			err:  fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "submissions_pkey"}),
			key:  "submissions_pkey",
			ok:   true,
		},
		{name: "mysql other", err: &mysql.MySQLError{Number: 1146}, ok: false},
		{name: "plain", err: fmt.Errorf("boom"), ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := UniqueViolation(tt.err)
			if ok != tt.ok || key != tt.key {
				t.Fatalf("expected (%q,%v), got (%q,%v)", tt.key, tt.ok, key, ok)
			}
		})
	}
}

func TestOpenValidatesConfig(t *testing.T) {
	if _, err := Open(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := Open(&Config{Driver: DriverPostgres}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
	if _, err := Open(&Config{Driver: "sqlite", DSN: "file::memory:"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestRebindFollowsDriver(t *testing.T) {
	pg := NewWithDB(sqlx.NewDb(&sql.DB{}, DriverPostgres))
	if got := pg.Rebind("SELECT 1 WHERE a = ? AND b = ?"); got != "SELECT 1 WHERE a = $1 AND b = $2" {
		t.Fatalf("unexpected postgres rebind: %q", got)
	}
	if pg.Driver() != DriverPostgres {
		t.Fatalf("expected postgres driver, got %q", pg.Driver())
	}
	my := NewWithDB(sqlx.NewDb(&sql.DB{}, DriverMySQL))
	if got := my.Rebind("SELECT ?"); got != "SELECT ?" {
		t.Fatalf("unexpected mysql rebind: %q", got)
	}
}
