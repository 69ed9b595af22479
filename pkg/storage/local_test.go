package storage

import (
	"context"
	"errors"
	"testing"
)

func TestLocalReadWrite(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	if err := s.Write(ctx, "plans/abc.yaml", []byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := s.Read(ctx, "plans/abc.yaml")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Read returned %q, want %q", data, "hello")
	}
}

func TestLocalReadMissing(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	if _, err := s.Read(ctx, "plans/missing.yaml"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read of missing key returned %v, want ErrNotFound", err)
	}
}

func TestLocalListSorted(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	for _, k := range []string{"plans/b.yaml", "plans/a.yaml", "plans/c.yaml"} {
		if err := s.Write(ctx, k, []byte("x")); err != nil {
			t.Fatalf("Write %s failed: %v", k, err)
		}
	}

	keys, err := s.List(ctx, "plans")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"plans/a.yaml", "plans/b.yaml", "plans/c.yaml"}
	if len(keys) != len(want) {
		t.Fatalf("List returned %d keys, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestLocalDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	if err := s.Write(ctx, "doc.yaml", []byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Delete(ctx, "doc.yaml"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err := s.Exists(ctx, "doc.yaml")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("key still exists after Delete")
	}
	if err := s.Delete(ctx, "doc.yaml"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete returned %v, want ErrNotFound", err)
	}
}
