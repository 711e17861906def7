package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindOpusFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.opus", "a.OPUS", "skip.mp3", ".hidden.opus", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.opus"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := findOpusFiles(dir)
	if err != nil {
		t.Fatalf("findOpusFiles() error: %v", err)
	}

	want := []string{filepath.Join(dir, "a.OPUS"), filepath.Join(dir, "b.opus")}
	if len(files) != len(want) {
		t.Fatalf("findOpusFiles() = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}
