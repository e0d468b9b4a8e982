package server

import (
	"sync"
	"testing"

	"github.com/gstoney/mclimbo/packet"
)

func TestConnections_RegisterUnregister(t *testing.T) {
	cs := NewConnections()
	a, _ := newPipeConn(t, 1, 4)
	b, _ := newPipeConn(t, 2, 4)
	dup, _ := newPipeConn(t, 1, 4)

	if !cs.Register(a) || !cs.Register(b) {
		t.Fatal("Register failed")
	}
	if cs.Register(dup) {
		t.Error("duplicate id registered")
	}
	if cs.Unregister(dup) {
		t.Error("Unregister removed a different conn with the same id")
	}
	if got, ok := cs.Get(1); !ok || got != a {
		t.Errorf("Get(1) = %v, %v", got, ok)
	}

	if !cs.Unregister(a) {
		t.Error("Unregister(a) = false")
	}
	if cs.Unregister(a) {
		t.Error("second Unregister(a) = true")
	}
	if cs.Len() != 1 {
		t.Errorf("Len = %d", cs.Len())
	}
}

func TestConnections_Counts(t *testing.T) {
	cs := NewConnections()
	for id, s := range []packet.State{packet.Status, packet.Play, packet.Play, packet.Login} {
		c, _ := newPipeConn(t, uint64(id+1), 4)
		c.state.Store(int32(s))
		if s == packet.Play {
			c.loggedIn.Store(true)
		}
		cs.Register(c)
	}

	if got := cs.CountIn(packet.Play); got != 2 {
		t.Errorf("CountIn(Play) = %d", got)
	}
	if got := cs.Players(); got != 2 {
		t.Errorf("Players = %d", got)
	}

	var ids []uint64
	for _, c := range cs.Snapshot() {
		ids = append(ids, c.ID())
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("Snapshot not ordered: %v", ids)
		}
	}
}

func TestConnections_Broadcast(t *testing.T) {
	cs := NewConnections()
	var play []*Conn
	for id := uint64(1); id <= 3; id++ {
		c, _ := newPipeConn(t, id, 4)
		if id != 2 {
			c.state.Store(int32(packet.Play))
			play = append(play, c)
		}
		cs.Register(c)
	}
	play[1].Close()

	sent := cs.Broadcast(packet.Play, func(c *Conn) packet.Packet {
		return &packet.KeepAlive{ID: int64(c.ID())}
	})
	if sent != 1 {
		t.Errorf("Broadcast sent %d, want 1", sent)
	}
	ops := drain(play[0])
	if len(ops) != 1 || ops[0].packet.(*packet.KeepAlive).ID != 1 {
		t.Errorf("queued %+v", ops)
	}
}

func TestConnections_Concurrent(t *testing.T) {
	cs := NewConnections()
	conns := make([]*Conn, 64)
	for i := range conns {
		conns[i], _ = newPipeConn(t, uint64(i+1), 4)
	}

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cs.Register(c)
			cs.Players()
			cs.ForEach(func(*Conn) {})
			cs.Unregister(c)
			cs.Unregister(c)
		}()
	}
	wg.Wait()

	if cs.Len() != 0 {
		t.Errorf("Len = %d after all unregistered", cs.Len())
	}
}

func TestConnections_TryReserve(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		players int
		want    bool
	}{
		{"unlimited", -1, 3, true},
		{"room left", 3, 2, true},
		{"full", 3, 3, false},
		{"zero slots", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := NewConnections()
			for id := range tt.players {
				c, _ := newPipeConn(t, uint64(id+1), 4)
				c.loggedIn.Store(true)
				cs.Register(c)
			}
			c, _ := newPipeConn(t, 100, 4)
			cs.Register(c)

			if got := cs.TryReserve(c, tt.max); got != tt.want {
				t.Errorf("TryReserve = %v, want %v", got, tt.want)
			}
			if c.loggedIn.Load() != tt.want {
				t.Errorf("loggedIn = %v, want %v", c.loggedIn.Load(), tt.want)
			}
		})
	}
}

// Simultaneous logins at the edge of the cap admit exactly max players.
func TestConnections_TryReserveConcurrent(t *testing.T) {
	const maxPlayers = 10
	cs := NewConnections()
	conns := make([]*Conn, 64)
	for i := range conns {
		conns[i], _ = newPipeConn(t, uint64(i+1), 4)
		cs.Register(conns[i])
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	start := make(chan struct{})
	for _, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if cs.TryReserve(c, maxPlayers) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if admitted != maxPlayers {
		t.Errorf("admitted %d, want %d", admitted, maxPlayers)
	}
	if got := cs.Players(); got != maxPlayers {
		t.Errorf("Players = %d, want %d", got, maxPlayers)
	}
}
