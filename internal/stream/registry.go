package stream

import "sync"

// Registry deduplicates connections by target URL and provides a close-all
// escape hatch for teardown.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Conn
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Conn)}
}

// Connect returns the existing connection for url if one is still live,
// otherwise it opens a new one with the given callbacks.
func (r *Registry) Connect(url string, cb Callbacks) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.conns[url]; ok {
		return existing
	}

	conn := newConn(url, cb, r)
	r.conns[url] = conn
	return conn
}

// Get returns the live connection for url, or nil.
func (r *Registry) Get(url string) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[url]
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll closes every live connection. Used by the store's disconnect as
// a backstop so a torn-down session cannot leak sockets.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// remove drops a terminally-closed connection from the registry.
func (r *Registry) remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[c.url] == c {
		delete(r.conns, c.url)
	}
}
