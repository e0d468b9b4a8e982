package server

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gstoney/mclimbo/config"
	"github.com/gstoney/mclimbo/packet"
	"github.com/gstoney/mclimbo/world"
)

func TestServer_Status(t *testing.T) {
	tests := []struct {
		name     string
		protocol int32
		want     int32
	}{
		{"supported", int32(packet.V1_20_3), int32(packet.V1_20_3)},
		{"newest", int32(packet.MaxVersion), int32(packet.MaxVersion)},
		{"unsupported old", 5, int32(packet.MaxVersion)},
		{"unsupported between", 760, int32(packet.MaxVersion)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, addr, _ := startTestServer(t, func(c *config.Config) {
				c.MOTD = "Hold on"
			})
			c := dialTest(t, addr, packet.Closest(tt.protocol))
			c.handshake(tt.protocol, packet.IntentStatus)

			c.send(&packet.StatusRequest{})
			resp, ok := c.recv().(*packet.StatusResponse)
			if !ok {
				t.Fatal("no status response")
			}
			var got StatusResponse
			if err := json.Unmarshal([]byte(resp.Response), &got); err != nil {
				t.Fatalf("status JSON: %v", err)
			}
			want := StatusResponse{
				Version:     statusVersion{Name: "mclimbo", Protocol: tt.want},
				Players:     statusPlayers{Max: 100, Online: 0},
				Description: statusText{Text: "Hold on"},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("status mismatch (-want +got):\n%s", diff)
			}

			c.send(&packet.StatusPing{Payload: 42})
			pong, ok := c.recv().(*packet.StatusPing)
			if !ok || pong.Payload != 42 {
				t.Errorf("pong = %+v", pong)
			}
			c.expectClosed()
		})
	}
}

func TestServer_LoginAndJoin(t *testing.T) {
	tests := []struct {
		version     packet.Version
		compression int
		regs        int
		want        []string
	}{
		{
			version:     packet.V1_8,
			compression: -1,
			want:        []string{"*packet.JoinGame", "*packet.PluginMessage", "*packet.SpawnPosition", "*packet.PlayerPosition"},
		},
		{
			version:     packet.V1_16_5,
			compression: 256,
			want:        []string{"*packet.JoinGame", "*packet.PluginMessage", "*packet.SpawnPosition", "*packet.PlayerPosition"},
		},
		{
			version:     packet.V1_20,
			compression: 256,
			want:        []string{"*packet.JoinGame", "*packet.PluginMessage", "*packet.SpawnPosition", "*packet.PlayerPosition"},
		},
		{
			version:     packet.V1_20_2,
			compression: -1,
			regs:        1,
			want:        []string{"*packet.JoinGame", "*packet.SpawnPosition", "*packet.PlayerPosition"},
		},
		{
			version:     packet.V1_20_3,
			compression: 0,
			regs:        1,
			want:        []string{"*packet.JoinGame", "*packet.SpawnPosition", "*packet.PlayerPosition", "*packet.GameEvent"},
		},
		{
			version:     packet.V1_21,
			compression: 256,
			want:        []string{"*packet.JoinGame", "*packet.SpawnPosition", "*packet.PlayerPosition", "*packet.GameEvent"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			s, addr, _ := startTestServer(t, func(c *config.Config) {
				c.CompressionThreshold = tt.compression
			})
			c := dialTest(t, addr, tt.version)

			success := c.login("Notch")
			if success.Username != "Notch" || success.UUID != OfflineUUID("Notch") {
				t.Errorf("LoginSuccess = %+v", success)
			}
			if tt.version.HasConfiguration() {
				if c.brand != "mclimbo" {
					t.Errorf("brand = %q", c.brand)
				}
				if tt.version.Before(packet.V1_21) && c.regs != tt.regs {
					t.Errorf("got %d registry packets, want %d", c.regs, tt.regs)
				}
				if tt.version.AtLeast(packet.V1_21) && c.regs < 5 {
					t.Errorf("got %d registry packets, want one per registry", c.regs)
				}
			}

			if diff := cmp.Diff(tt.want, c.recvTypes(len(tt.want))); diff != "" {
				t.Fatalf("join sequence mismatch (-want +got):\n%s", diff)
			}

			jg := c.packets[0].(*packet.JoinGame)
			if jg.GameMode != 3 {
				t.Errorf("JoinGame game mode = %d", jg.GameMode)
			}
			if tt.version.AtLeast(packet.V1_16_5) && jg.WorldName != "minecraft:overworld" {
				t.Errorf("JoinGame world = %q", jg.WorldName)
			}
			for _, p := range c.packets {
				if pp, ok := p.(*packet.PlayerPosition); ok && pp.Y != 100 {
					t.Errorf("PlayerPosition = %+v", pp)
				}
			}

			eventually(t, "player registered", func() bool {
				return s.Connections().Players() == 1 && s.Connections().CountIn(packet.Play) == 1
			})
			conn := s.Connections().Snapshot()[0]
			eventually(t, "join finished", conn.joined.Load)
			if conn.Name() != "Notch" || conn.Version() != tt.version {
				t.Errorf("conn = %s on %s", conn.Name(), conn.Version())
			}
		})
	}
}

func TestServer_RejectUnsupported(t *testing.T) {
	tests := []struct {
		name     string
		protocol int32
	}{
		{"outside configured range", int32(packet.V1_21)},
		{"unknown protocol", 999},
		{"too old", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, addr, _ := startTestServer(t, func(c *config.Config) {
				c.MaxProtocol = int32(packet.V1_20_3)
			})
			c := dialTest(t, addr, packet.Closest(tt.protocol))
			c.handshake(tt.protocol, packet.IntentLogin)
			c.sendLoginStart("Notch")

			d, ok := c.recv().(*packet.LoginDisconnect)
			if !ok || d.Reason != reasonUnsupported {
				t.Fatalf("got %+v, want LoginDisconnect", d)
			}
			c.expectClosed()
			eventually(t, "connection removed", func() bool { return s.Connections().Len() == 0 })
		})
	}
}

func TestServer_Full(t *testing.T) {
	_, addr, _ := startTestServer(t, func(c *config.Config) {
		c.MaxPlayers = 1
	})

	first := dialTest(t, addr, packet.V1_20_3)
	first.login("Alex")

	second := dialTest(t, addr, packet.V1_20_3)
	second.handshake(int32(packet.V1_20_3), packet.IntentLogin)
	second.sendLoginStart("Steve")
	d, ok := second.recv().(*packet.LoginDisconnect)
	if !ok || d.Reason != reasonFull {
		t.Fatalf("got %+v, want LoginDisconnect", d)
	}
	second.expectClosed()
}

// An unregistered id is dropped and the connection keeps working.
func TestServer_UnknownPacket(t *testing.T) {
	s, addr, logs := startTestServer(t, nil)
	c := dialTest(t, addr, packet.V1_21)
	c.login("Notch")
	c.recvTypes(4)

	c.sendRaw([]byte{0x7F, 0x01, 0x02, 0x03})
	eventually(t, "unknown packet counted", func() bool {
		return testutil.ToFloat64(s.metrics.UnknownPackets) == 1
	})

	conn := s.Connections().Snapshot()[0]
	eventually(t, "join finished", conn.joined.Load)
	before := conn.LastKeepAlive()
	time.Sleep(2 * time.Millisecond)
	c.send(&packet.KeepAlive{ID: 7})
	eventually(t, "keep-alive handled", func() bool {
		return conn.LastKeepAlive().After(before)
	})
	if conn.Closed() {
		t.Error("connection closed after unknown packet")
	}
	if logs.FilterMessage("unknown packet").Len() != 1 {
		t.Errorf("unknown packet logged %d times", logs.FilterMessage("unknown packet").Len())
	}
}

// A malformed LoginStart is dropped; a valid one afterwards still logs in.
func TestServer_MalformedLoginStart(t *testing.T) {
	s, addr, _ := startTestServer(t, nil)
	c := dialTest(t, addr, packet.V1_20_3)
	c.handshake(int32(packet.V1_20_3), packet.IntentLogin)

	c.sendLoginStart(strings.Repeat("x", 17))
	eventually(t, "malformed packet counted", func() bool {
		return testutil.ToFloat64(s.metrics.MalformedPackets) == 1
	})
	if s.Connections().Len() != 1 {
		t.Fatal("connection dropped after malformed packet")
	}

	c.sendLoginStart("Notch")
	if got := c.finishLogin(); got.Username != "Notch" {
		t.Errorf("logged in as %q", got.Username)
	}
}

// A handshake with an unknown intent is dropped like any malformed frame;
// the connection stays in Handshaking and can try again.
func TestServer_InvalidIntent(t *testing.T) {
	s, addr, _ := startTestServer(t, nil)
	c := dialTest(t, addr, packet.V1_20_3)

	c.send(&packet.Handshake{
		ProtocolVersion: int32(packet.V1_20_3),
		ServerAddr:      "localhost",
		ServerPort:      25565,
		NextState:       7,
	})
	eventually(t, "malformed handshake counted", func() bool {
		return testutil.ToFloat64(s.metrics.MalformedPackets) == 1
	})
	if s.Connections().Len() != 1 {
		t.Fatal("connection dropped after invalid intent")
	}
	if got := s.Connections().Snapshot()[0].State(); got != packet.Handshaking {
		t.Errorf("state = %s, want Handshaking", got)
	}

	c.handshake(int32(packet.V1_20_3), packet.IntentStatus)
	c.send(&packet.StatusRequest{})
	if _, ok := c.recv().(*packet.StatusResponse); !ok {
		t.Error("no status response after a valid handshake")
	}
}

// A bad packet on one connection leaves the registry and every other
// connection alone.
func TestServer_MalformedPacketIsolation(t *testing.T) {
	s, addr, _ := startTestServer(t, nil)

	player := dialTest(t, addr, packet.V1_21)
	player.login("Notch")
	player.recvTypes(4)
	var joined *Conn
	eventually(t, "player joined", func() bool {
		for _, c := range s.Connections().Snapshot() {
			if c.joined.Load() {
				joined = c
				return true
			}
		}
		return false
	})

	other := dialTest(t, addr, packet.V1_20_3)
	other.handshake(int32(packet.V1_20_3), packet.IntentLogin)
	eventually(t, "second connection in login", func() bool {
		return s.Connections().CountIn(packet.Login) == 1
	})
	other.sendLoginStart(strings.Repeat("x", 17))
	eventually(t, "malformed packet counted", func() bool {
		return testutil.ToFloat64(s.metrics.MalformedPackets) == 1
	})

	if got := s.Connections().Len(); got != 2 {
		t.Fatalf("registry holds %d connections, want 2", got)
	}
	if got, ok := s.Connections().Get(joined.ID()); !ok || got != joined {
		t.Fatal("joined player no longer registered")
	}
	if joined.State() != packet.Play || joined.Version() != packet.V1_21 || joined.Closed() {
		t.Errorf("joined player changed: state %s, version %s, closed %v",
			joined.State(), joined.Version(), joined.Closed())
	}
	if got := s.Connections().CountIn(packet.Login); got != 1 {
		t.Errorf("connections in Login = %d, want 1", got)
	}
}

func TestServer_KeepAlive(t *testing.T) {
	s, addr, _ := startTestServer(t, func(c *config.Config) {
		c.KeepAlive.Period = config.Duration{Duration: 20 * time.Millisecond}
	})
	c := dialTest(t, addr, packet.V1_20_2)
	c.login("Notch")
	c.recvTypes(3)

	conn := s.Connections().Snapshot()[0]
	eventually(t, "join finished", conn.joined.Load)
	joinedAt := conn.LastKeepAlive()
	if joinedAt.IsZero() {
		t.Fatal("LastKeepAlive not set on join")
	}

	var ka *packet.KeepAlive
	for ka == nil {
		ka, _ = c.recv().(*packet.KeepAlive)
	}
	c.send(&packet.KeepAlive{ID: ka.ID})

	eventually(t, "keep-alive answered", func() bool {
		return conn.LastKeepAlive().After(joinedAt)
	})
	if got := testutil.ToFloat64(s.metrics.KeepAlivesSent); got < 1 {
		t.Errorf("keep-alives sent = %v", got)
	}
}

func TestServer_KeepAliveEviction(t *testing.T) {
	s, addr, _ := startTestServer(t, func(c *config.Config) {
		c.KeepAlive.Period = config.Duration{Duration: 20 * time.Millisecond}
		c.KeepAlive.Timeout = config.Duration{Duration: 100 * time.Millisecond}
	})
	c := dialTest(t, addr, packet.V1_20_3)
	c.login("Notch")
	c.recvTypes(4)

	for {
		p := c.recv()
		if d, ok := p.(*packet.Disconnect); ok {
			if d.Reason != reasonTimedOut {
				t.Errorf("reason = %q", d.Reason)
			}
			break
		}
		if _, ok := p.(*packet.KeepAlive); !ok {
			t.Fatalf("unexpected %T", p)
		}
	}
	c.expectClosed()

	if got := testutil.ToFloat64(s.metrics.Evictions); got != 1 {
		t.Errorf("evictions = %v", got)
	}
	eventually(t, "connection removed", func() bool { return s.Connections().Len() == 0 })
}

type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) PlayerJoined(c *Conn) { l.record("joined " + c.Name()) }
func (l *recordingListener) PlayerLeft(c *Conn)   { l.record("left " + c.Name()) }

func (l *recordingListener) record(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingListener) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func TestServer_Listener(t *testing.T) {
	rec := &recordingListener{}
	_, addr, _ := startTestServer(t, nil, WithListener(rec))

	c := dialTest(t, addr, packet.V1_12_2)
	c.login("Notch")
	c.recvTypes(4)
	c.conn.Close()

	eventually(t, "player left", func() bool { return len(rec.get()) == 2 })
	if diff := cmp.Diff([]string{"joined Notch", "left Notch"}, rec.get()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestServer_Shutdown(t *testing.T) {
	s, addr, _ := startTestServer(t, nil)
	c := dialTest(t, addr, packet.V1_21)
	c.login("Notch")
	c.recvTypes(4)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	go s.Shutdown(ctx)

	for {
		p := c.recv()
		if d, ok := p.(*packet.Disconnect); ok {
			if d.Reason != reasonShutdown {
				t.Errorf("reason = %q", d.Reason)
			}
			break
		}
	}
	c.expectClosed()
}

// cancelOnAccept hands out one connection and cancels the server while
// doing so, then blocks until closed.
type cancelOnAccept struct {
	cancel  context.CancelFunc
	peer    chan net.Conn
	closed  chan struct{}
	handed  atomic.Bool
	closeMu sync.Once
}

func (l *cancelOnAccept) Accept() (net.Conn, error) {
	if l.handed.CompareAndSwap(false, true) {
		a, b := net.Pipe()
		l.peer <- b
		l.cancel()
		return a, nil
	}
	<-l.closed
	return nil, net.ErrClosed
}

func (l *cancelOnAccept) Close() error {
	l.closeMu.Do(func() { close(l.closed) })
	return nil
}

func (l *cancelOnAccept) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

// A connection accepted while the server is stopping must not hold up
// Serve until its read deadline.
func TestServer_ShutdownDuringAccept(t *testing.T) {
	for i := range 20 {
		cfg := config.Default()
		cfg.ReadTimeout = config.Duration{Duration: time.Minute}
		w, err := world.NewBuiltin(world.Overworld)
		if err != nil {
			t.Fatal(err)
		}
		s := New(cfg, packet.MustRegistry(), w)

		ctx, cancel := context.WithCancel(context.Background())
		l := &cancelOnAccept{cancel: cancel, peer: make(chan net.Conn, 1), closed: make(chan struct{})}
		errc := make(chan error, 1)
		go func() { errc <- s.Serve(ctx, l) }()

		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("run %d: Serve = %v", i, err)
			}
		case <-time.After(testTimeout):
			t.Fatalf("run %d: Serve still running after cancel", i)
		}
		(<-l.peer).Close()
		if got := s.Connections().Len(); got != 0 {
			t.Errorf("run %d: %d connections left registered", i, got)
		}
	}
}

type fakeWaker struct {
	mu     sync.Mutex
	status string
	wakes  int
}

func (w *fakeWaker) Wake(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.wakes++
	return nil
}

func (w *fakeWaker) Status(context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status, nil
}

func (w *fakeWaker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.wakes
}

func TestServer_Waker(t *testing.T) {
	w := &fakeWaker{status: "stopped"}
	_, addr, _ := startTestServer(t, nil, WithWaker(w))

	status := dialTest(t, addr, packet.V1_21)
	status.handshake(int32(packet.V1_21), packet.IntentStatus)
	status.send(&packet.StatusRequest{})
	resp := status.recv().(*packet.StatusResponse)
	if !strings.Contains(resp.Response, `Backend: stopped`) {
		t.Errorf("status %s does not mention the backend", resp.Response)
	}

	c := dialTest(t, addr, packet.V1_21)
	c.login("Notch")
	c.recvTypes(4)
	eventually(t, "backend woken", func() bool { return w.count() == 1 })
}
