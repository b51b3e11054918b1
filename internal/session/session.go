// Package session implements the Session Registry: allocation,
// validation, touching, removal, and idle sweeping of server-issued
// session handles (spec §4.9).
package session

import (
	"net"
	"sync"
	"time"
)

// Session is one registered EtherNet/IP session.
type Session struct {
	Handle     uint32
	CreatedAt  time.Time
	LastActive time.Time
	// RemoteAddr supports the optional per-IP session cap (SPEC_FULL §12);
	// empty when the registry is used without that policy.
	RemoteAddr string
}

// Registry is the shared, server-wide table of live sessions. All mutating
// operations are serialized under a single lock (spec §5 "Shared state").
type Registry struct {
	mu           sync.Mutex
	sessions     map[uint32]*Session
	nextHandle   uint32
	perIPCounts  map[string]int
}

// NewRegistry returns an empty session registry. Handles start at 1; 0 is
// reserved for unauthenticated requests (spec §3).
func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[uint32]*Session),
		nextHandle:  1,
		perIPCounts: make(map[string]int),
	}
}

// Count returns the number of currently live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CountForIP returns the number of live sessions whose remote address
// shares remoteAddr's IP (the port, which differs per TCP connection, is
// stripped before counting).
func (r *Registry) CountForIP(remoteAddr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.perIPCounts[hostOf(remoteAddr)]
}

// Create allocates the next handle, skipping forward over any still-live
// handle on u32 wraparound collision (spec §4.9 "The counter MAY wrap;
// collisions with still-live handles MUST be avoided").
func (r *Registry) Create(now time.Time, remoteAddr string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		h := r.nextHandle
		r.nextHandle++
		if r.nextHandle == 0 {
			r.nextHandle = 1
		}
		if h == 0 {
			continue
		}
		if _, exists := r.sessions[h]; exists {
			continue
		}
		s := &Session{Handle: h, CreatedAt: now, LastActive: now, RemoteAddr: remoteAddr}
		r.sessions[h] = s
		r.perIPCounts[hostOf(remoteAddr)]++
		return s
	}
}

// Has reports whether handle is currently live.
func (r *Registry) Has(handle uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[handle]
	return ok
}

// Touch updates a live session's last-activity timestamp. It reports
// whether the session existed.
func (r *Registry) Touch(handle uint32, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[handle]
	if !ok {
		return false
	}
	s.LastActive = now
	return true
}

// Remove destroys a session explicitly (UNREGISTER_SESSION) or implicitly
// (connection close, idle sweep). It reports whether the session existed.
func (r *Registry) Remove(handle uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[handle]
	if !ok {
		return false
	}
	delete(r.sessions, handle)
	ip := hostOf(s.RemoteAddr)
	r.perIPCounts[ip]--
	if r.perIPCounts[ip] <= 0 {
		delete(r.perIPCounts, ip)
	}
	return true
}

// RemoveAllForAddr destroys every session owned by remoteAddr, used when a
// TCP connection closes (spec §3 "destroyed implicitly when the TCP
// connection closes"). It returns the number of sessions removed so the
// caller can keep the live-session gauge in sync.
func (r *Registry) RemoveAllForAddr(remoteAddr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ip := hostOf(remoteAddr)
	removed := 0
	for h, s := range r.sessions {
		if s.RemoteAddr == remoteAddr {
			delete(r.sessions, h)
			r.perIPCounts[ip]--
			removed++
		}
	}
	if r.perIPCounts[ip] <= 0 {
		delete(r.perIPCounts, ip)
	}
	return removed
}

// Sweep removes every session whose last activity is older than
// idleTimeout as of now (spec §4.9).
func (r *Registry) Sweep(now time.Time, idleTimeout time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for h, s := range r.sessions {
		if now.Sub(s.LastActive) > idleTimeout {
			delete(r.sessions, h)
			ip := hostOf(s.RemoteAddr)
			r.perIPCounts[ip]--
			if r.perIPCounts[ip] <= 0 {
				delete(r.perIPCounts, ip)
			}
			removed++
		}
	}
	return removed
}

// hostOf strips the port from a "host:port" remote address for per-IP
// counting. Addresses without a parseable port (e.g. a bare IP, as a test
// fixture might pass) are used as-is.
func hostOf(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
