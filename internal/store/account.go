package store

import (
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/ledger"
)

// AccountStore holds the session's current account. Opening a new account
// replaces the previous one.
type AccountStore struct {
	mu      sync.RWMutex
	current *ledger.Account
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{}
}

// Put makes a the current account and returns the one it replaced, if any.
func (s *AccountStore) Put(a *ledger.Account) *ledger.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current
	s.current = a
	return prev
}

// Get returns the current account. It returns domain.ErrAccountNotFound
// if no account has been opened.
func (s *AccountStore) Get() (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, domain.ErrAccountNotFound
	}
	return s.current, nil
}

// Exists returns true if an account has been opened.
func (s *AccountStore) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current != nil
}
