package database

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	src := `-- header
CREATE TABLE a (
  id INT
);

-- comment
CREATE TABLE b (id INT);
INSERT INTO b VALUES (1)`
	got := splitStatements(src)
	if len(got) != 3 {
		t.Fatalf("statements = %d: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "CREATE TABLE a") || strings.HasSuffix(got[0], ";") {
		t.Fatalf("first statement = %q", got[0])
	}
	if got[2] != "INSERT INTO b VALUES (1)" {
		t.Fatalf("trailing statement = %q", got[2])
	}
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	t.Parallel()

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil || len(entries) == 0 {
		t.Fatalf("embedded migrations: %v (%d files)", err, len(entries))
	}
	for _, e := range entries {
		raw, err := migrationFiles.ReadFile("migrations/" + e.Name())
		if err != nil {
			t.Fatal(err)
		}
		if len(splitStatements(string(raw))) == 0 {
			t.Fatalf("%s has no statements", e.Name())
		}
	}
}
