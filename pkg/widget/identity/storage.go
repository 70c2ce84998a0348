package identity

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Storage.Get when the key has never been written.
var ErrNotFound = errors.New("identity: key not found")

// ErrUnavailable is returned by UnavailableStorage for every call.
var ErrUnavailable = errors.New("identity: storage unavailable")

// Storage is the persistent key/value surface the identity store writes to.
// It plays the role of the browser's local storage.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryStorage keeps values for the lifetime of the process.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

var _ Storage = &MemoryStorage{}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: map[string]string{}}
}

func (s *MemoryStorage) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryStorage) Close() error { return nil }

// UnavailableStorage fails every operation, like local storage in a private
// browsing window.
type UnavailableStorage struct{}

var _ Storage = UnavailableStorage{}

func (UnavailableStorage) Get(context.Context, string) (string, error) { return "", ErrUnavailable }
func (UnavailableStorage) Set(context.Context, string, string) error   { return ErrUnavailable }
func (UnavailableStorage) Delete(context.Context, string) error        { return ErrUnavailable }
func (UnavailableStorage) Close() error                                { return nil }
