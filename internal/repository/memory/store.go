// Package memory is an in-process records store. Documents are kept as JSON
// so that callers can never alias stored state.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/mamadbah2/broiler/internal/repository/records"
)

type collection struct {
	nextID int64
	docs   map[int64][]byte
}

// Store implements records.Store, records.SnapshotReader and records.Decrementer.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	frozen      bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[int64][]byte)}
		s.collections[name] = c
	}
	return c
}

// Add assigns the next id of the collection to doc and stores it.
func (s *Store) Add(ctx context.Context, collectionName string, doc records.Document) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.frozen {
		return 0, fmt.Errorf("add to %s: snapshot is read-only", collectionName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collectionName)
	id := c.nextID + 1
	doc.SetID(id)
	body, err := records.EncodeJSON(doc)
	if err != nil {
		doc.SetID(0)
		return 0, err
	}
	c.nextID = id
	c.docs[id] = body
	return id, nil
}

// Update overwrites the document carrying doc's id.
func (s *Store) Update(ctx context.Context, collectionName string, doc records.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.frozen {
		return fmt.Errorf("update %s: snapshot is read-only", collectionName)
	}

	body, err := records.EncodeJSON(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collectionName)
	if _, ok := c.docs[doc.GetID()]; !ok {
		return fmt.Errorf("update %s/%d: %w", collectionName, doc.GetID(), records.ErrNotFound)
	}
	c.docs[doc.GetID()] = body
	return nil
}

// Get decodes one document into out.
func (s *Store) Get(ctx context.Context, collectionName string, id int64, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	var body []byte
	ok := false
	if c := s.collections[collectionName]; c != nil {
		body, ok = c.docs[id]
	}
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("get %s/%d: %w", collectionName, id, records.ErrNotFound)
	}
	return records.DecodeJSON(collectionName, body, id, out)
}

// GetAll decodes the whole collection into out, ordered by id.
func (s *Store) GetAll(ctx context.Context, collectionName string, out any) error {
	return s.scan(ctx, collectionName, out, func([]byte) (bool, error) { return true, nil })
}

// GetAllByIndex decodes the documents whose field equals value.
func (s *Store) GetAllByIndex(ctx context.Context, collectionName, field string, value any, out any) error {
	return s.scan(ctx, collectionName, out, func(body []byte) (bool, error) {
		return records.FieldEquals(body, field, value)
	})
}

func (s *Store) scan(ctx context.Context, collectionName string, out any, match func([]byte) (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	c := s.collections[collectionName]
	var rows []records.Row
	if c != nil {
		rows = make([]records.Row, 0, len(c.docs))
		for id, body := range c.docs {
			rows = append(rows, records.Row{ID: id, Body: body})
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	matched := rows[:0]
	for _, row := range rows {
		ok, err := match(row.Body)
		if err != nil {
			return fmt.Errorf("scan %s/%d: %w", collectionName, row.ID, err)
		}
		if ok {
			matched = append(matched, row)
		}
	}
	return records.DecodeAll(collectionName, matched, out)
}

// ReadSnapshot hands fn a frozen copy of the store. Bodies are immutable
// once written, so only the maps are copied.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(ctx context.Context, r records.Reader) error) error {
	s.mu.RLock()
	snap := &Store{collections: make(map[string]*collection, len(s.collections)), frozen: true}
	for name, c := range s.collections {
		docs := make(map[int64][]byte, len(c.docs))
		for id, body := range c.docs {
			docs[id] = body
		}
		snap.collections[name] = &collection{nextID: c.nextID, docs: docs}
	}
	s.mu.RUnlock()

	return fn(ctx, snap)
}

// DecrementIfAtLeast subtracts amount from a numeric field if the stored
// value covers it.
func (s *Store) DecrementIfAtLeast(ctx context.Context, collectionName string, id int64, field string, amount float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.frozen {
		return fmt.Errorf("decrement %s: snapshot is read-only", collectionName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collectionName)
	body, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("decrement %s/%d: %w", collectionName, id, records.ErrNotFound)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("decrement %s/%d: %w", collectionName, id, err)
	}

	current := 0.0
	if n, ok := fields[field].(json.Number); ok {
		v, err := n.Float64()
		if err != nil {
			return fmt.Errorf("decrement %s/%d: field %s: %w", collectionName, id, field, err)
		}
		current = v
	}
	if current < amount {
		return fmt.Errorf("decrement %s/%d: %w", collectionName, id, records.ErrInsufficient)
	}

	fields[field] = current - amount
	updated, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("decrement %s/%d: %w", collectionName, id, err)
	}
	c.docs[id] = updated
	return nil
}
