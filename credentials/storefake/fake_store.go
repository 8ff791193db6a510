package storefake

import (
	"sync"

	"github.com/carefleet/carefleet-client/credentials"
)

var _ credentials.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credential store for tests
type FakeStore struct {
	pair     credentials.Pair
	snapshot credentials.Snapshot
	lock     sync.RWMutex

	// Error injection
	PairErr     error
	SetPairErr  error
	SnapshotErr error
	ClearErr    error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (s *FakeStore) Pair() (credentials.Pair, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.PairErr != nil {
		return credentials.Pair{}, s.PairErr
	}
	return s.pair, nil
}

func (s *FakeStore) SetPair(pair credentials.Pair) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.SetPairErr != nil {
		return s.SetPairErr
	}
	s.pair = pair
	return nil
}

func (s *FakeStore) Snapshot() (credentials.Snapshot, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.SnapshotErr != nil {
		return credentials.Snapshot{}, s.SnapshotErr
	}
	return s.snapshot, nil
}

func (s *FakeStore) SetSnapshot(snapshot credentials.Snapshot) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.snapshot = snapshot
	return nil
}

func (s *FakeStore) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.ClearErr != nil {
		return s.ClearErr
	}
	s.pair = credentials.Pair{}
	s.snapshot = credentials.Snapshot{}
	return nil
}
