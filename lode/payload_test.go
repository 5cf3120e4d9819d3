package lode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/justapithecus/lode/lode"
)

func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

// failingStore is a lode.Store that returns configurable errors.
type failingStore struct {
	putErr    error
	existsErr error
}

func (s *failingStore) Put(_ context.Context, _ string, _ io.Reader) error { return s.putErr }
func (s *failingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}
func (s *failingStore) Exists(_ context.Context, _ string) (bool, error) { return true, s.existsErr }
func (s *failingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, errors.New("not implemented")
}
func (s *failingStore) Delete(_ context.Context, _ string) error { return nil }
func (s *failingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}
func (s *failingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*failingStore)(nil)

func TestPayloadStore_PutGet(t *testing.T) {
	ps := NewPayloadStore(sharedFactory(lode.NewMemory()))
	ctx := t.Context()

	data := bytes.Repeat([]byte{0xAB}, 4096)
	if err := ps.Put(ctx, "source.bin", data); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := ps.Get(ctx, "source.bin")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Get returned different bytes")
	}

	if err := ps.Put(ctx, "empty.bin", nil); err != nil {
		t.Fatalf("Put empty failed: %v", err)
	}
	got, err = ps.Get(ctx, "empty.bin")
	if err != nil {
		t.Fatalf("Get empty failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestPayloadStore_GetMissing(t *testing.T) {
	ps := NewPayloadStore(sharedFactory(lode.NewMemory()))

	_, err := ps.Get(t.Context(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing: error = %v, want ErrNotFound", err)
	}
}

func TestPayloadStore_List(t *testing.T) {
	ps := NewPayloadStore(sharedFactory(lode.NewMemory()))
	ctx := t.Context()

	for _, name := range []string{"b.bin", "a.bin"} {
		if err := ps.Put(ctx, name, []byte(name)); err != nil {
			t.Fatalf("Put %s failed: %v", name, err)
		}
	}
	names, err := ps.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "a.bin,b.bin" {
		t.Errorf("List = %v, want [a.bin b.bin]", names)
	}
}

func TestPayloadStore_InvalidName(t *testing.T) {
	ps := NewPayloadStore(sharedFactory(lode.NewMemory()))
	for _, name := range []string{"", "a/b", "..", `a\b`} {
		if err := ps.Put(t.Context(), name, []byte("x")); err == nil {
			t.Errorf("Put(%q) should fail", name)
		}
	}
}

func TestPayloadStore_WriteErrorClassified(t *testing.T) {
	store := &failingStore{putErr: errors.New("write /data: no space left on device")}
	ps := NewPayloadStore(sharedFactory(store))

	err := ps.Put(t.Context(), "x", []byte("x"))
	if !errors.Is(err, ErrDiskFull) {
		t.Errorf("error = %v, want ErrDiskFull", err)
	}
	var storageErr *StorageError
	if !errors.As(err, &storageErr) || storageErr.Path != "payloads/x" {
		t.Errorf("error = %#v, want StorageError on payloads/x", err)
	}
}

func TestPayloadStore_FactoryError(t *testing.T) {
	ps := NewPayloadStore(func() (lode.Store, error) {
		return nil, errors.New("mkdir /root/x: permission denied")
	})

	err := ps.Put(t.Context(), "x", nil)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("error = %v, want ErrPermissionDenied", err)
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) && storageErr.Op != "init" {
		t.Errorf("Op = %s, want init", storageErr.Op)
	}
}

func TestStorageConfig_Validate(t *testing.T) {
	tests := []struct {
		cfg     StorageConfig
		wantErr bool
	}{
		{StorageConfig{Backend: BackendMemory}, false},
		{StorageConfig{Backend: BackendFS, Path: "/tmp/haul"}, false},
		{StorageConfig{Backend: BackendFS}, true},
		{StorageConfig{Backend: BackendS3, Path: "bucket/prefix"}, false},
		{StorageConfig{Backend: BackendS3}, true},
		{StorageConfig{Backend: "ftp", Path: "x"}, true},
	}
	for _, tt := range tests {
		err := tt.cfg.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) = %v, wantErr %v", tt.cfg, err, tt.wantErr)
		}
	}
}

func TestParseS3Path(t *testing.T) {
	bucket, prefix := ParseS3Path("my-bucket/haul/data")
	if bucket != "my-bucket" || prefix != "haul/data" {
		t.Errorf("ParseS3Path = %q, %q", bucket, prefix)
	}
	bucket, prefix = ParseS3Path("only")
	if bucket != "only" || prefix != "" {
		t.Errorf("ParseS3Path = %q, %q", bucket, prefix)
	}
}

func TestNewStoreFactory_MemoryIsShared(t *testing.T) {
	factory, err := NewStoreFactory(t.Context(), StorageConfig{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("NewStoreFactory failed: %v", err)
	}
	if err := NewPayloadStore(factory).Put(t.Context(), "p", []byte("hi")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := NewPayloadStore(factory).Get(t.Context(), "p")
	if err != nil {
		t.Fatalf("Get through second store failed: %v", err)
	}
	if string(got) != "hi" {
		t.Errorf("Get = %q, want hi", got)
	}
}

func TestNewStoreFactory_FS(t *testing.T) {
	factory, err := NewStoreFactory(t.Context(), StorageConfig{Backend: BackendFS, Path: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStoreFactory failed: %v", err)
	}
	ps := NewPayloadStore(factory)
	if err := ps.Put(t.Context(), "on-disk.bin", []byte{1, 2, 3}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := ps.Get(t.Context(), "on-disk.bin")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Get = %v", got)
	}
}
