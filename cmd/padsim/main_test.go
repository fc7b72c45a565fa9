package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("padsim %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestTargetsListsBoards(t *testing.T) {
	out := execute(t, "targets")
	for _, name := range []string{"stm32f407", "stm32h743", "stm32h745"} {
		if !strings.Contains(out, name) {
			t.Fatalf("targets output missing %s:\n%s", name, out)
		}
	}
}

func TestVersion(t *testing.T) {
	if out := execute(t, "version"); !strings.HasPrefix(out, "padsim ") {
		t.Fatalf("version output = %q", out)
	}
}

func TestRunUnknownTarget(t *testing.T) {
	rootCmd.SetArgs([]string{"run", "--headless", "--target", "z80"})
	rootCmd.SetOut(&bytes.Buffer{})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("run with an unknown target succeeded")
	}
}

func TestTraceWritesSummaryAndTimeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.png")
	out := execute(t, "trace", "--ticks", "200", "--width", "400", "-o", path)
	if !strings.Contains(out, "wake latency") || !strings.Contains(out, "producer") {
		t.Fatalf("trace output:\n%s", out)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode timeline: %v", err)
	}
	if got := img.Bounds().Dx(); got != 400 {
		t.Fatalf("timeline width = %d, want 400", got)
	}
}
