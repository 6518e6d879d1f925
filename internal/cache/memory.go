package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is a bounded in-process Store that evicts the least recently used
// entry once full.
type Memory struct {
	lru *lru.Cache[string, []byte]
}

// NewMemory returns a Memory holding at most size entries.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = 1
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Memory{lru: c}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, value)
	return nil
}

func (m *Memory) Purge(context.Context) error {
	m.lru.Purge()
	return nil
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	return m.lru.Len()
}
