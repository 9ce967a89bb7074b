package database

import (
	"strings"
	"testing"
)

func TestSchemaStatements(t *testing.T) {
	stmts := Statements(Schema())
	want := []string{"guides", "tour_groups", "booking_requests", "refresh_tokens"}
	if len(stmts) != len(want) {
		t.Fatalf("statements = %d, want %d", len(stmts), len(want))
	}
	for i, table := range want {
		if !strings.HasPrefix(stmts[i], "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("statement %d does not create %s: %.60s", i+1, table, stmts[i])
		}
	}
}

func TestStatementsSkipsBlanks(t *testing.T) {
	got := Statements(" SELECT 1;\n\n;SELECT 2 ;  ")
	if len(got) != 2 || got[0] != "SELECT 1" || got[1] != "SELECT 2" {
		t.Fatalf("got %q", got)
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN("tours", "s3cret", "db", "3306", "tours")
	for _, part := range []string{"tours:s3cret@tcp(db:3306)/tours", "parseTime=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, part) {
			t.Fatalf("dsn %q missing %q", dsn, part)
		}
	}
}
