package port

import (
	"path/filepath"
	"testing"
)

func TestFSBlobStoreSaveLoad(t *testing.T) {
	store := NewFSBlobStore(filepath.Join(t.TempDir(), "saves"))

	if err := store.Save("game.sav", []byte("hello")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load("game.sav")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestFSBlobStoreAppendAccumulates(t *testing.T) {
	store := NewFSBlobStore(filepath.Join(t.TempDir(), "transcripts"))

	if err := store.Append("transcript.txt", []byte("a")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append("transcript.txt", []byte("b")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := store.Load("transcript.txt")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "ab" {
		t.Fatalf("got %q, want %q", got, "ab")
	}
}

func TestFSBlobStoreLoadMissingFails(t *testing.T) {
	store := NewFSBlobStore(t.TempDir())
	if _, err := store.Load("nonexistent.sav"); err == nil {
		t.Fatal("expected error loading a file that was never saved")
	}
}
