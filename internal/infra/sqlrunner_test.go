package infra

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestExtractMarker(t *testing.T) {
	query := `--sql 7c1f2b9e-3d44-4a1b-9d27-5e8b6f0a21c3
select 1;
`
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		t.Fatalf("extractMarker: %v", err)
	}
	if marker != "7c1f2b9e-3d44-4a1b-9d27-5e8b6f0a21c3" {
		t.Fatalf("marker = %q", marker)
	}
	if strings.Contains(trimmed, "--sql") {
		t.Fatalf("marker line leaked into statement: %q", trimmed)
	}
	if !strings.Contains(trimmed, "select 1;") {
		t.Fatalf("statement body lost: %q", trimmed)
	}
}

func TestExtractMarkerRejectsUnmarkedSQL(t *testing.T) {
	for _, query := range []string{
		"select 1;",
		"--sql not-a-uuid\nselect 1;",
		"--sql 7C1F2B9E-3D44-4A1B-9D27-5E8B6F0A21C3\nselect 1;", // uppercase not allowed
		"",
	} {
		if _, _, err := extractMarker(query); err == nil {
			t.Fatalf("extractMarker(%q): expected error", query)
		}
	}
}

func TestQueryRowWithInvalidMarkerFailsOnScan(t *testing.T) {
	// The runner must refuse unmarked SQL before it ever reaches the pool.
	runner := NewSQLRunner(nil, zerolog.Nop())

	row := runner.QueryRow(context.Background(), "select 1;")
	var n int
	if err := row.Scan(&n); err == nil {
		t.Fatal("expected a marker error from Scan")
	}
}
