package buildinfo

import (
	"strings"
	"testing"
)

func TestShortPrefersVersion(t *testing.T) {
	fill()
	oldV, oldC := Version, Commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })

	Version, Commit = "v1.2.0", "abc123"
	if got := Short(); got != "v1.2.0" {
		t.Fatalf("Short() = %q, want v1.2.0", got)
	}
	Version = "dev"
	if got := Short(); got != "abc123" {
		t.Fatalf("Short() = %q, want abc123", got)
	}
	Commit = "unknown"
	if got := Short(); got != "dev" {
		t.Fatalf("Short() = %q, want dev", got)
	}
	if !strings.Contains(String(), "commit unknown") {
		t.Fatalf("String() = %q", String())
	}
}
