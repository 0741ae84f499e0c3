// Package ratelimit throttles incoming requests per client IP and per
// admin caller, identifying clients the same way the teacher's pool
// request limiter does: by address, with one token bucket each.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

const (
	// clientTokenRate is the steady-state allowance, per second, for a
	// public client (puzzle fetch, verify submission, websocket
	// connect).
	clientTokenRate = 5
	clientBurst     = 5

	// adminTokenRate is the steady-state allowance, per second, for an
	// authenticated admin caller — looser, since the admin plane is
	// already gated by a bearer token.
	adminTokenRate = 20
	adminBurst     = 20
)

// Kind selects which bucket configuration a caller is rate limited
// under.
type Kind int

const (
	Client Kind = iota
	Admin
)

// Limiter keeps connected clients within their allocated request
// rate, identified by IP address.
type Limiter struct {
	mutex    sync.RWMutex
	limiters map[string]*rate.Limiter
	kind     Kind
}

// New constructs a Limiter for the given Kind.
func New(kind Kind) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		kind:     kind,
	}
}

func (l *Limiter) newBucket() *rate.Limiter {
	if l.kind == Admin {
		return rate.NewLimiter(adminTokenRate, adminBurst)
	}
	return rate.NewLimiter(clientTokenRate, clientBurst)
}

func (l *Limiter) get(ip string) *rate.Limiter {
	l.mutex.RLock()
	b := l.limiters[ip]
	l.mutex.RUnlock()
	if b != nil {
		return b
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	if b := l.limiters[ip]; b != nil {
		return b
	}
	b = l.newBucket()
	l.limiters[ip] = b
	return b
}

// Allow reports whether a request from ip is within its allocated
// rate, lazily creating a bucket for ip on first use.
func (l *Limiter) Allow(ip string) bool {
	return l.get(ip).Allow()
}

// Remove deletes ip's bucket, e.g. when a ban is lifted and the
// caller wants a clean slate.
func (l *Limiter) Remove(ip string) {
	l.mutex.Lock()
	delete(l.limiters, ip)
	l.mutex.Unlock()
}
