package json

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/drakos74/free-som/internal/storage"
)

// LocalShard hands out an independent in-memory store per shard.
func LocalShard() storage.Shard {
	return func(string) (storage.Persistence, error) {
		return NewLocalStorage(), nil
	}
}

// LocalStorage holds encoded documents in memory.
// Values are kept encoded so loading always returns a fresh copy.
type LocalStorage struct {
	mu   sync.RWMutex
	docs map[storage.Key][]byte
}

func NewLocalStorage() *LocalStorage {
	return &LocalStorage{docs: make(map[storage.Key][]byte)}
}

func (l *LocalStorage) Store(k storage.Key, value interface{}) error {
	bb, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not encode '%s': %w", k.Path(), err)
	}
	l.mu.Lock()
	l.docs[k] = bb
	l.mu.Unlock()
	return nil
}

func (l *LocalStorage) Load(k storage.Key, value interface{}) error {
	l.mu.RLock()
	bb, ok := l.docs[k]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no document '%s': %w", k.Path(), storage.NotFoundErr)
	}
	if err := json.Unmarshal(bb, value); err != nil {
		return fmt.Errorf("could not decode '%s': %v: %w", k.Path(), err, storage.CouldNotLoadErr)
	}
	return nil
}
