package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveOpenRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, "uploads/abc/notes.txt", strings.NewReader("hello")); err != nil {
		t.Fatalf("save: %v", err)
	}
	rc, err := s.Open(ctx, "uploads/abc/notes.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, "tmp.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Remove(ctx, "tmp.txt"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(ctx, "tmp.txt"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if _, err := s.Open(ctx, "tmp.txt"); err == nil {
		t.Fatalf("expected open to fail after remove")
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, "../outside.txt", strings.NewReader("x")); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
	if err := s.Save(ctx, "", strings.NewReader("x")); err == nil {
		t.Fatalf("expected empty key to be rejected")
	}
}

func TestPathStaysUnderBase(t *testing.T) {
	base := t.TempDir()
	s, err := New(base)
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	if got := s.Path("a/b.txt"); !strings.HasPrefix(got, base) {
		t.Fatalf("path %q escapes base %q", got, base)
	}
}
