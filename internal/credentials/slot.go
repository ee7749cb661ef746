package credentials

import (
	"context"
	"sync"
)

// Slot is the process-wide credential slot. Writes are serialized, reads go
// straight to the backing store.
type Slot struct {
	store Store
	mutex sync.Mutex
}

var _ Store = (*Slot)(nil)

func NewSlot(store Store) *Slot {
	return &Slot{store: store}
}

func (s *Slot) Load(ctx context.Context) (Credential, error) {
	return s.store.Load(ctx)
}

func (s *Slot) Save(ctx context.Context, cred Credential) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.store.Save(ctx, cred)
}

func (s *Slot) Clear(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.store.Clear(ctx)
}

// CompareAndSwap saves next only if the stored access token still equals old's.
func (s *Slot) CompareAndSwap(ctx context.Context, old, next Credential) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if current.Access != old.Access {
		return false, nil
	}
	if err := s.store.Save(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// CompareAndClear clears the slot only if the stored access token still equals old's.
func (s *Slot) CompareAndClear(ctx context.Context, old Credential) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if current.Empty() || current.Access != old.Access {
		return false, nil
	}
	if err := s.store.Clear(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Slot) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.store.Close()
}
