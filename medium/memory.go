package medium

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-memdb"
)

const memoryTable = "entries"

// memoryEntry is the row stored in the memdb table.
type memoryEntry struct {
	Key   string
	Value []byte
}

// Memory is an in-process medium backed by go-memdb.
type Memory struct {
	mu    sync.Mutex
	db    *memdb.MemDB
	quota int64
	used  int64
}

// NewMemory creates an empty in-memory medium holding at most quota bytes.
func NewMemory(quota int64) (*Memory, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			memoryTable: {
				Name: memoryTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create memdb: %w", err)
	}

	return &Memory{db: db, quota: quota}, nil
}

// Get returns the value stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(memoryTable, "id", key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %q: %w", key, err)
	}
	if raw == nil {
		return nil, ErrNotFound
	}

	value := raw.(*memoryEntry).Value
	return append([]byte{}, value...), nil
}

// Set stores value under key if it fits in the quota.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := m.db.Txn(true)
	defer txn.Abort()

	var previous int64
	raw, err := txn.First(memoryTable, "id", key)
	if err != nil {
		return fmt.Errorf("failed to look up %q: %w", key, err)
	}
	if raw != nil {
		previous = entrySize(key, raw.(*memoryEntry).Value)
	}

	used := m.used - previous + entrySize(key, value)
	if !fits(used, m.quota) {
		return ErrQuotaExceeded
	}

	entry := &memoryEntry{Key: key, Value: append([]byte{}, value...)}
	if err := txn.Insert(memoryTable, entry); err != nil {
		return fmt.Errorf("failed to insert %q: %w", key, err)
	}
	txn.Commit()

	m.used = used
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := m.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(memoryTable, "id", key)
	if err != nil {
		return fmt.Errorf("failed to look up %q: %w", key, err)
	}
	if raw == nil {
		return nil
	}

	entry := raw.(*memoryEntry)
	if err := txn.Delete(memoryTable, entry); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	txn.Commit()

	m.used -= entrySize(key, entry.Value)
	return nil
}

// Keys returns every stored key in index order.
func (m *Memory) Keys(_ context.Context) ([]string, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(memoryTable, "id")
	if err != nil {
		return nil, fmt.Errorf("failed to scan entries: %w", err)
	}

	var keys []string
	for obj := it.Next(); obj != nil; obj = it.Next() {
		keys = append(keys, obj.(*memoryEntry).Key)
	}
	return keys, nil
}

// Clear removes every entry.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := m.db.Txn(true)
	defer txn.Abort()

	if _, err := txn.DeleteAll(memoryTable, "id"); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	txn.Commit()

	m.used = 0
	return nil
}

// Used returns the number of bytes currently charged against the quota.
func (m *Memory) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}
