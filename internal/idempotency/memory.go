package idempotency

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is how many reservations pass between full expiry sweeps.
const sweepEvery = 256

// MemoryStore keeps reservations in process for single-replica runs and
// tests. Expired records are dropped when looked up and by a periodic sweep,
// so abandoned keys do not accumulate.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]Record
	reserves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Len reports how many records are held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemoryStore) live(id string, now time.Time) (Record, bool) {
	rec, ok := s.records[id]
	if ok && !now.Before(rec.ExpiresAt) {
		delete(s.records, id)
		return Record{}, false
	}
	return rec, ok
}

func (s *MemoryStore) sweep(now time.Time) {
	for id, rec := range s.records {
		if !now.Before(rec.ExpiresAt) {
			delete(s.records, id)
		}
	}
}

func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now, ttl = now.UTC(), ttlOrDefault(ttl)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reserves++; s.reserves%sweepEvery == 0 {
		s.sweep(now)
	}
	id := storageKey(key)
	if rec, ok := s.live(id, now); ok {
		return resolve(rec, fingerprint)
	}
	rec := pending(key, fingerprint, now, ttl)
	s.records[id] = rec
	return Reservation{State: ReservationStateNew, Record: rec}, nil
}

func (s *MemoryStore) SaveResponse(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now, ttl = now.UTC(), ttlOrDefault(ttl)
	s.mu.Lock()
	defer s.mu.Unlock()

	id := storageKey(key)
	rec, ok := s.live(id, now)
	if ok && rec.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	s.records[id] = completed(key, fingerprint, resp, rec.CreatedAt, now, ttl)
	return nil
}

// Release drops the reservation held under fingerprint; other holders keep theirs.
func (s *MemoryStore) Release(_ context.Context, key, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := storageKey(key)
	if rec, ok := s.records[id]; ok && rec.Fingerprint == fingerprint {
		delete(s.records, id)
	}
	return nil
}
