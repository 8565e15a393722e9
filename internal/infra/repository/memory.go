package repository

import (
	"context"
	"sync"
)

// Sessioned is implemented by entities that belong to a voice session.
type Sessioned interface {
	SessionKey() string
}

// MemoryRepository keeps entities in process memory, in insertion order.
type MemoryRepository[T Sessioned] struct {
	mu          sync.RWMutex
	collections map[string][]T
}

func NewMemoryRepository[T Sessioned]() *MemoryRepository[T] {
	return &MemoryRepository[T]{collections: make(map[string][]T)}
}

func (r *MemoryRepository[T]) Create(_ context.Context, collectionName string, entity T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[collectionName] = append(r.collections[collectionName], entity)
	return entity, nil
}

func (r *MemoryRepository[T]) FindBySessionID(_ context.Context, collectionName string, sessionID string) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entities []T
	for _, entity := range r.collections[collectionName] {
		if entity.SessionKey() == sessionID {
			entities = append(entities, entity)
		}
	}
	return entities, nil
}

func (r *MemoryRepository[T]) FindAll(_ context.Context, collectionName string) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]T(nil), r.collections[collectionName]...), nil
}
