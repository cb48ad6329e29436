// Package persistence provides durable Collection backends for neuromem
// stores. A Collection is a single logical document collection with
// GetAll/Put/Delete/Clear semantics; each store owns one.
package persistence

import (
	"context"
	"sync"

	"github.com/cortexkit/neuromem/pkg/interfaces"
)

// MemoryCollection is a volatile in-process Collection. It backs tests
// and ephemeral sessions where durability is not wanted.
type MemoryCollection struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryCollection creates an empty in-memory collection
func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{
		records: make(map[string][]byte),
	}
}

// GetAll returns a copy of every record
func (mc *MemoryCollection) GetAll(ctx context.Context) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make(map[string][]byte, len(mc.records))
	for id, value := range mc.records {
		out[id] = append([]byte(nil), value...)
	}
	return out, nil
}

// Put writes one record
func (mc *MemoryCollection) Put(ctx context.Context, id string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.records[id] = append([]byte(nil), value...)
	return nil
}

// Delete removes one record; missing ids are not an error
func (mc *MemoryCollection) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	delete(mc.records, id)
	return nil
}

// Clear removes every record
func (mc *MemoryCollection) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.records = make(map[string][]byte)
	return nil
}

// Size returns the total serialized size of the collection in bytes
func (mc *MemoryCollection) Size(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	mc.mu.RLock()
	defer mc.mu.RUnlock()

	var total int64
	for id, value := range mc.records {
		total += int64(len(id) + len(value))
	}
	return total, nil
}

// Close closes the collection
func (mc *MemoryCollection) Close() error {
	return nil
}

var _ interfaces.Collection = (*MemoryCollection)(nil)
