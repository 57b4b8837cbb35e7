package hierarchy

import (
	"context"
	"testing"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"report_2024", `report\_2024`},
		{`back\slash`, `back\\slash`},
		{`%_\`, `\%\_\\`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testDB)
	caller := createTestUser(t, 500)

	underscore := mustCreateFile(t, s, caller, "report_2024.txt", 1, nil)
	mustCreateFile(t, s, caller, "reportX2024.txt", 1, nil)
	percent := mustCreateFile(t, s, caller, "100%.txt", 1, nil)

	// "_" must match only the literal underscore, not any character.
	files, err := s.SearchFiles(ctx, caller.ID, "report_")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].ID != underscore.ID {
		t.Fatalf("search report_ = %v, want only the underscore file", files)
	}

	// "%" must match only names containing a percent sign.
	files, err = s.SearchFiles(ctx, caller.ID, "%")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].ID != percent.ID {
		t.Fatalf("search %% = %v, want only the percent file", files)
	}
}
