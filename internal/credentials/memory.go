package credentials

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mutex  sync.RWMutex
	cred   Credential
	closed bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (Credential, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return Credential{}, ErrClosed
	}
	return s.cred, nil
}

func (s *MemoryStore) Save(_ context.Context, cred Credential) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.cred = cred
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.cred = Credential{}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
	return nil
}
