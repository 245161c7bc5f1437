// Package gate is the per-request admission control: a Cloudflare origin
// allow-list and an adaptive per-IP ban driven by not-found responses.
package gate

import (
	"sync"
	"time"
)

type banEntry struct {
	notFoundCount int
	// expiresAt is zero while the IP is clean.
	expiresAt time.Time
}

// BanList tracks not-found strikes per client IP and bans offenders for a
// fixed window. State is in-process and deliberately not persisted across
// restarts. One coarse mutex guards the whole map; request volume here is
// nowhere near the point where sharded locks would pay for themselves.
type BanList struct {
	mu      sync.Mutex
	entries map[string]*banEntry

	maxNotFound int
	banFor      time.Duration
	now         func() time.Time
}

// NewBanList creates a ban list that bans an IP for banFor once it has
// produced maxNotFound not-found responses.
func NewBanList(maxNotFound int, banFor time.Duration) *BanList {
	if maxNotFound < 1 {
		maxNotFound = 1
	}
	return &BanList{
		entries:     make(map[string]*banEntry),
		maxNotFound: maxNotFound,
		banFor:      banFor,
		now:         time.Now,
	}
}

// Check reports whether the IP is currently banned and, if so, how long
// until the ban lifts. An expired ban is removed here, which also resets
// the strike count, atomically under the lock.
func (b *BanList) Check(ip string) (banned bool, retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[ip]
	if !ok || e.expiresAt.IsZero() {
		return false, 0
	}
	remaining := e.expiresAt.Sub(b.now())
	if remaining > 0 {
		return true, remaining
	}
	delete(b.entries, ip)
	return false, 0
}

// RecordNotFound registers one not-found response from the IP. When the
// strike count reaches the threshold the IP is banned and the caller is
// told to replace the response with the ban payload.
func (b *BanList) RecordNotFound(ip string) (banned bool, retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[ip]
	if !ok {
		e = &banEntry{}
		b.entries[ip] = e
	}
	e.notFoundCount++
	if e.notFoundCount < b.maxNotFound {
		return false, 0
	}
	e.expiresAt = b.now().Add(b.banFor)
	return true, b.banFor
}
