package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafeWriteFileReplaces(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	path := filepath.Join(dir, "processed_data.csv")
	for _, body := range []string{"a\n1\n", "a\n2\n"} {
		if err := SafeWriteFile(path, []byte(body)); err != nil {
			t.Fatalf("SafeWriteFile: %v", err)
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "a\n2\n" {
		t.Fatalf("content = %q", b)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("mode = %v", info.Mode().Perm())
	}
}

func TestSafeWriteFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch", "metrics", "boxplot.png")
	if err := SafeWriteFile(path, []byte("x")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	if b, _ := os.ReadFile(path); string(b) != "x" {
		t.Fatalf("content = %q", b)
	}
}

func TestSafeWriteFileParentIsFile(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "taken")
	if err := os.WriteFile(parent, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	err := SafeWriteFile(filepath.Join(parent, "x.png"), []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "create output dir") {
		t.Fatalf("err = %v", err)
	}
}

func TestPrettyJSON(t *testing.T) {
	b, err := PrettyJSON(map[string]int{"rows": 5})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{\n  \"rows\": 5\n}" {
		t.Fatalf("json = %q", b)
	}
}
