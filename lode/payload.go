package lode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"
)

// payloadPrefix is where whole payloads live, outside any dataset.
const payloadPrefix = "payloads/"

// PayloadStore reads and writes whole payloads as plain objects.
// The store is created lazily from the factory on first use.
type PayloadStore struct {
	factory lode.StoreFactory

	once     sync.Once
	store    lode.Store
	storeErr error
}

// NewPayloadStore creates a payload store backed by factory.
func NewPayloadStore(factory lode.StoreFactory) *PayloadStore {
	return &PayloadStore{factory: factory}
}

func (p *PayloadStore) getStore() (lode.Store, error) {
	p.once.Do(func() {
		p.store, p.storeErr = p.factory()
		p.storeErr = WrapInitError(p.storeErr, "payloads")
	})
	return p.store, p.storeErr
}

// PayloadPath returns the storage path for a payload name.
func PayloadPath(name string) string {
	return payloadPrefix + name
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid payload name %q", name)
	}
	return nil
}

// Put stores data under name, replacing any previous payload.
func (p *PayloadStore) Put(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	store, err := p.getStore()
	if err != nil {
		return err
	}
	path := PayloadPath(name)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

// Get loads the payload stored under name.
// Returns an error matching ErrNotFound if nothing is stored there.
func (p *PayloadStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	store, err := p.getStore()
	if err != nil {
		return nil, err
	}
	path := PayloadPath(name)

	exists, err := store.Exists(ctx, path)
	if err != nil {
		return nil, WrapReadError(err, path)
	}
	if !exists {
		return nil, NewStorageError(ErrNotFound, "read", path, fmt.Errorf("payload %q does not exist", name))
	}

	rc, err := store.Get(ctx, path)
	if err != nil {
		return nil, WrapReadError(err, path)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, WrapReadError(err, path)
	}
	return data, nil
}

// List returns the names of stored payloads.
func (p *PayloadStore) List(ctx context.Context) ([]string, error) {
	store, err := p.getStore()
	if err != nil {
		return nil, err
	}
	paths, err := store.List(ctx, payloadPrefix)
	if err != nil {
		return nil, WrapReadError(err, payloadPrefix)
	}
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		if idx := strings.LastIndex(path, payloadPrefix); idx >= 0 {
			path = path[idx+len(payloadPrefix):]
		}
		if path != "" {
			names = append(names, path)
		}
	}
	return names, nil
}
