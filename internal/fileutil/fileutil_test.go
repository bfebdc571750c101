package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"clef/internal/fileutil"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.musicxml")
	dst := filepath.Join(dir, "dst.musicxml")
	content := []byte("<score-partwise/>")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fileutil.CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile returned error: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("dst content = %q", got)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pdf")
	dst := filepath.Join(dir, "dst.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.7 payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		t.Fatalf("CopyFileVerified returned error: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("dst missing: %v", err)
	}

	if err := fileutil.CopyFileVerified(filepath.Join(dir, "missing"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp.wav")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fileutil.RemoveIfExists(path); err != nil {
		t.Fatalf("RemoveIfExists returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file still present")
	}
	// A second removal of the same path is not an error.
	if err := fileutil.RemoveIfExists(path); err != nil {
		t.Fatalf("second RemoveIfExists returned error: %v", err)
	}
	if err := fileutil.RemoveIfExists(""); err != nil {
		t.Fatalf("empty path should be a no-op, got %v", err)
	}
}
