package store

import "context"

// NullStore stores nothing: every Get misses.
type NullStore struct{}

// NewNullStore creates a null store.
func NewNullStore() *NullStore { return &NullStore{} }

// Get always reports NOT_FOUND.
func (NullStore) Get(_ context.Context, key string) (*Document, error) { return nil, notFound(key) }

// Put validates doc and drops it.
func (NullStore) Put(_ context.Context, doc *Document) error { return checkDocument(doc) }

// Delete does nothing.
func (NullStore) Delete(context.Context, string) error { return nil }

// List returns no keys.
func (NullStore) List(context.Context) ([]string, error) { return nil, nil }

// Close does nothing.
func (NullStore) Close() error { return nil }

var _ Store = NullStore{}
