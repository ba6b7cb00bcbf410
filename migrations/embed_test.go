package migrations

import (
	"strings"
	"testing"
)

// Every up migration needs a matching down migration or golang-migrate
// refuses the whole set at runtime.
func TestMigrationsPaired(t *testing.T) {
	entries, err := FS.ReadDir(".")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}

	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected embedded file %q", name)
		}
	}

	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for base := range ups {
		if !downs[base] {
			t.Errorf("migration %q has no down file", base)
		}
	}
	for base := range downs {
		if !ups[base] {
			t.Errorf("migration %q has no up file", base)
		}
	}
}
