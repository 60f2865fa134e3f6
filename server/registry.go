package main

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionInfo describes an active session for the console and the status API.
type SessionInfo struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	RemoteAddr string    `json:"remote_addr"`
	Transport  string    `json:"transport"`
	Since      time.Time `json:"since"`
}

type registryEntry struct {
	info SessionInfo
	kick func()
}

// registry tracks sessions that have completed sign-in.
type registry struct {
	mu   sync.RWMutex
	list map[uuid.UUID]registryEntry
}

func newRegistry() *registry {
	return &registry{
		list: make(map[uuid.UUID]registryEntry),
	}
}

func (r *registry) add(info SessionInfo, kick func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list[info.ID] = registryEntry{info, kick}
}

func (r *registry) delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.list, id)
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.list)
}

// snapshot returns the active sessions ordered by sign-in time.
func (r *registry) snapshot() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.list))
	for _, e := range r.list {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Since.Before(out[j].Since)
	})
	return out
}

// kick ends every session signed in as username and reports how many there were.
func (r *registry) kick(username string) int {
	r.mu.RLock()
	var targets []func()
	for _, e := range r.list {
		if e.info.Username == username {
			targets = append(targets, e.kick)
		}
	}
	r.mu.RUnlock()
	for _, k := range targets {
		k()
	}
	return len(targets)
}
