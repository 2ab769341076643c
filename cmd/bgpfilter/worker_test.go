package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSourceNextDrainsAndReturnsEOF(t *testing.T) {
	fs := newFileSource([]string{"a.mrt", "b.mrt"})

	got := []string{}
	for {
		p, err := fs.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, p)
	}
	if len(got) != 2 || got[0] != "a.mrt" || got[1] != "b.mrt" {
		t.Fatalf("got %v, want [a.mrt b.mrt]", got)
	}
}

func TestMultiWriteFileNilBaseDiscards(t *testing.T) {
	mwf := NewMultiWriteFile(nil)
	n, err := mwf.WriteString("hello")
	if err != nil || n != 0 {
		t.Fatalf("WriteString on nil base = (%d, %v), want (0, nil)", n, err)
	}
	if err := mwf.Close(); err != nil {
		t.Fatalf("Close on nil base: %v", err)
	}
}

func TestMultiWriteFileWritesToRealFile(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "out.txt")
	fd, err := os.Create(fname)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	mwf := NewMultiWriteFile(fd)
	if _, err := mwf.WriteString("hello\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	mwf.Close()

	data, err := os.ReadFile(fname)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("file contents = %q, want %q", data, "hello\n")
	}
}
