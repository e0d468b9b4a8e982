package server

import (
	"cmp"
	"slices"
	"sync"

	"github.com/gstoney/mclimbo/packet"
)

// Connections is the set of live connections, shared by the connection
// goroutines, the keep-alive scheduler and the admin surfaces.
// It only tracks membership; each Conn guards its own fields.
type Connections struct {
	mu    sync.RWMutex
	conns map[uint64]*Conn
}

func NewConnections() *Connections {
	return &Connections{conns: make(map[uint64]*Conn)}
}

// Register adds c. It reports false if a connection with the same id is
// already present.
func (cs *Connections) Register(c *Conn) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, ok := cs.conns[c.ID()]; ok {
		return false
	}
	cs.conns[c.ID()] = c
	return true
}

// Unregister removes c and reports whether it was present. Calling it
// again for the same connection is a no-op.
func (cs *Connections) Unregister(c *Conn) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cur, ok := cs.conns[c.ID()]; !ok || cur != c {
		return false
	}
	delete(cs.conns, c.ID())
	return true
}

func (cs *Connections) Get(id uint64) (*Conn, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.conns[id]
	return c, ok
}

func (cs *Connections) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.conns)
}

// CountIn returns how many connections are currently in state s.
func (cs *Connections) CountIn(s packet.State) int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	n := 0
	for _, c := range cs.conns {
		if c.State() == s {
			n++
		}
	}
	return n
}

// Players counts connections past login.
func (cs *Connections) Players() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.players()
}

// TryReserve marks c as past login unless max players already are. A
// negative max means no limit. Concurrent logins never push the count
// past max.
func (cs *Connections) TryReserve(c *Conn, max int) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if c.loggedIn.Load() {
		return true
	}
	if max >= 0 && cs.players() >= max {
		return false
	}
	c.loggedIn.Store(true)
	return true
}

func (cs *Connections) players() int {
	n := 0
	for _, c := range cs.conns {
		if c.loggedIn.Load() {
			n++
		}
	}
	return n
}

// Snapshot returns the live connections ordered by id. Connections may
// close after the snapshot is taken.
func (cs *Connections) Snapshot() []*Conn {
	cs.mu.RLock()
	list := make([]*Conn, 0, len(cs.conns))
	for _, c := range cs.conns {
		list = append(list, c)
	}
	cs.mu.RUnlock()

	slices.SortFunc(list, func(a, b *Conn) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	return list
}

// ForEach calls fn for every connection in a snapshot, without holding
// the lock, so fn may register or unregister connections.
func (cs *Connections) ForEach(fn func(c *Conn)) {
	for _, c := range cs.Snapshot() {
		fn(c)
	}
}

// Broadcast sends the packet built by fn to every connection in state s and
// returns how many sends were queued. Send failures are skipped; a
// connection that fails is already closing.
func (cs *Connections) Broadcast(s packet.State, fn func(c *Conn) packet.Packet) int {
	sent := 0
	for _, c := range cs.Snapshot() {
		if c.State() != s {
			continue
		}
		if err := c.Send(fn(c)); err == nil {
			sent++
		}
	}
	return sent
}
