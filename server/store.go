package main

import (
	"errors"
	"sync"

	"github.com/puyokura/housechat/model"
	"golang.org/x/crypto/bcrypt"
)

// AccountStatus is what the store learned from one sign-in.
type AccountStatus int

const (
	AccountNew AccountStatus = iota
	AccountKnown
	AccountPasswordChanged
)

func (a AccountStatus) String() string {
	switch a {
	case AccountNew:
		return "new"
	case AccountKnown:
		return "known"
	case AccountPasswordChanged:
		return "password-changed"
	default:
		return "unknown"
	}
}

// Store remembers which usernames signed in during this process lifetime.
// Only bcrypt hashes are kept, nothing is persisted and nobody is ever rejected.
type Store struct {
	mu     sync.Mutex
	hashes map[string][]byte // Key: Username
	cost   int
}

func NewStore(cost int) *Store {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Store{
		hashes: make(map[string][]byte),
		cost:   cost,
	}
}

// Observe records a sign-in and classifies it against earlier ones.
func (s *Store) Observe(c model.Credentials) (AccountStatus, error) {
	s.mu.Lock()
	hash, exists := s.hashes[c.Username]
	s.mu.Unlock()

	if exists {
		err := bcrypt.CompareHashAndPassword(hash, []byte(c.Password))
		if err == nil {
			return AccountKnown, nil
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return AccountKnown, err
		}
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(c.Password), s.cost)
	if err != nil {
		return AccountNew, err
	}
	s.mu.Lock()
	s.hashes[c.Username] = newHash
	s.mu.Unlock()

	if exists {
		return AccountPasswordChanged, nil
	}
	return AccountNew, nil
}

// Len returns the number of distinct usernames seen.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes)
}
