// Package records defines the document store contract the metrics engine
// reads from and the data-entry services write to. Every backend assigns
// int64 ids that increase strictly with insertion order per collection.
package records

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Update when no document carries the id.
var ErrNotFound = errors.New("record not found")

// ErrInsufficient is returned by DecrementIfAtLeast when the stored value is
// below the requested amount. Nothing is written in that case.
var ErrInsufficient = errors.New("insufficient quantity")

// Document is a record that carries its own store-assigned id.
type Document interface {
	GetID() int64
	SetID(id int64)
}

// Reader holds the read half of the store.
type Reader interface {
	// Get decodes the document with the given id into out.
	Get(ctx context.Context, collection string, id int64, out any) error
	// GetAll decodes every document of the collection into out, a pointer
	// to a slice. Order is not guaranteed.
	GetAll(ctx context.Context, collection string, out any) error
	// GetAllByIndex decodes the documents whose field equals value into out.
	GetAllByIndex(ctx context.Context, collection, field string, value any, out any) error
}

// Store is the full record store.
type Store interface {
	Reader
	// Add assigns the next id to doc, persists it and returns the id.
	Add(ctx context.Context, collection string, doc Document) (int64, error)
	// Update overwrites the stored document with doc (matched by id).
	Update(ctx context.Context, collection string, doc Document) error
}

// SnapshotReader is implemented by stores able to serve several reads from
// one logical instant.
type SnapshotReader interface {
	ReadSnapshot(ctx context.Context, fn func(ctx context.Context, r Reader) error) error
}

// Decrementer is implemented by stores able to check and decrement a
// numeric field as one atomic step. A negative amount always succeeds and
// increments the field.
type Decrementer interface {
	DecrementIfAtLeast(ctx context.Context, collection string, id int64, field string, amount float64) error
}

// View runs fn against a snapshot when the store supports it, otherwise
// against the live store. Without a snapshot a write landing mid-read can at
// worst make one record appear missing or doubled.
func View(ctx context.Context, r Reader, fn func(ctx context.Context, r Reader) error) error {
	if s, ok := r.(SnapshotReader); ok {
		return s.ReadSnapshot(ctx, fn)
	}
	return fn(ctx, r)
}
