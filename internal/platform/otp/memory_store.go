package otp

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	Entry
	expires time.Time
}

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu       sync.Mutex
	codes    map[string]memoryEntry
	verified map[string]time.Time
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		codes:    make(map[string]memoryEntry),
		verified: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, phone, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = memoryEntry{Entry: Entry{Code: code}, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) live(phone string) (memoryEntry, bool) {
	e, ok := s.codes[phone]
	if !ok {
		return e, false
	}
	if !s.now().Before(e.expires) {
		delete(s.codes, phone)
		return e, false
	}
	return e, true
}

func (s *MemoryStore) Get(_ context.Context, phone string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(phone)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e.Entry, nil
}

func (s *MemoryStore) IncrAttempts(_ context.Context, phone string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(phone)
	if !ok {
		return 0, ErrNotFound
	}
	e.Attempts++
	s.codes[phone] = e
	return e.Attempts, nil
}

func (s *MemoryStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, phone)
	return nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, phone string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[phone] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) ConsumeVerified(_ context.Context, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.verified[phone]
	delete(s.verified, phone)
	return ok && s.now().Before(exp), nil
}
