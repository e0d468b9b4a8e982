package server

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gstoney/mclimbo"
	"github.com/gstoney/mclimbo/packet"
)

var testRegistry = packet.MustRegistry()

// newPipeConn builds a Conn over net.Pipe without starting its goroutines,
// so tests can look at the queue directly.
func newPipeConn(t *testing.T, id uint64, queueSize int) (*Conn, *observer.ObservedLogs) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})

	core, logs := observer.New(zapcore.DebugLevel)
	cfg := connConfig{
		queueSize: queueSize,
		transport: mclimbo.DefaultTransportConfig(),
	}
	return newConn(id, a, testRegistry, cfg, NewMetrics(nil), zap.New(core).Sugar()), logs
}

// drain empties the queue and returns what was in it.
func drain(c *Conn) []op {
	var ops []op
	for {
		select {
		case o := <-c.queue:
			ops = append(ops, o)
		default:
			return ops
		}
	}
}

func TestConn_SendAfterClose(t *testing.T) {
	c, _ := newPipeConn(t, 1, 4)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := c.Send(&packet.KeepAlive{ID: 1}); !errors.Is(err, ErrConnClosed) {
		t.Errorf("Send after Close = %v, want ErrConnClosed", err)
	}
	if !c.Closed() {
		t.Error("Closed() = false")
	}
}

func TestConn_QueueFull(t *testing.T) {
	c, logs := newPipeConn(t, 1, 2)
	for i := range 2 {
		if err := c.Send(&packet.KeepAlive{ID: int64(i)}); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	if err := c.Send(&packet.KeepAlive{ID: 3}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Send on full queue = %v, want ErrQueueFull", err)
	}
	if !c.Closed() {
		t.Error("full queue did not close the connection")
	}
	if logs.FilterMessage("outbound queue full, closing").Len() != 1 {
		t.Error("queue overflow not logged")
	}
	if err := c.Send(&packet.KeepAlive{ID: 4}); !errors.Is(err, ErrConnClosed) {
		t.Errorf("Send after overflow = %v, want ErrConnClosed", err)
	}
}

func TestConn_SwitchState(t *testing.T) {
	c, _ := newPipeConn(t, 1, 8)

	if err := c.switchState(packet.Login); err != nil {
		t.Fatalf("switch to Login: %v", err)
	}
	if c.State() != packet.Login || c.decoder.State() != packet.Login {
		t.Errorf("state = %s, decoder at %s", c.State(), c.decoder.State())
	}
	for _, s := range []packet.State{packet.Login, packet.Status, packet.Handshaking} {
		if err := c.switchState(s); !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("switch to %s = %v, want ErrIllegalTransition", s, err)
		}
	}

	ops := drain(c)
	if len(ops) != 1 || ops[0].kind != opState || ops[0].state != packet.Login {
		t.Errorf("queued ops = %+v", ops)
	}
}

func TestConn_Disconnect(t *testing.T) {
	tests := []struct {
		state packet.State
		want  packet.Packet
	}{
		{packet.Handshaking, nil},
		{packet.Status, nil},
		{packet.Login, &packet.LoginDisconnect{Reason: "bye"}},
		{packet.Configuration, &packet.Disconnect{Reason: "bye"}},
		{packet.Play, &packet.Disconnect{Reason: "bye"}},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			c, _ := newPipeConn(t, 1, 8)
			c.state.Store(int32(tt.state))

			if err := c.Disconnect("bye"); err != nil {
				t.Fatalf("Disconnect: %v", err)
			}
			if err := c.Disconnect("again"); !errors.Is(err, ErrConnClosed) {
				t.Errorf("second Disconnect = %v, want ErrConnClosed", err)
			}
			if err := c.Send(&packet.KeepAlive{}); !errors.Is(err, ErrConnClosed) {
				t.Errorf("Send after Disconnect = %v, want ErrConnClosed", err)
			}

			ops := drain(c)
			if last := ops[len(ops)-1]; last.kind != opClose {
				t.Errorf("last op = %+v, want close", last)
			}
			if tt.want == nil {
				if len(ops) != 1 {
					t.Errorf("queued %d ops, want only close", len(ops))
				}
				return
			}
			if len(ops) != 2 || ops[0].kind != opPacket {
				t.Fatalf("queued ops = %+v", ops)
			}
			if diff := cmp.Diff(tt.want, ops[0].packet); diff != "" {
				t.Errorf("disconnect packet mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConn_KeepAliveReceived(t *testing.T) {
	c, logs := newPipeConn(t, 1, 8)
	c.state.Store(int32(packet.Play))

	if err := c.SendKeepAlive(99); err != nil {
		t.Fatalf("SendKeepAlive: %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	c.keepAliveReceived(42, now)
	if !c.LastKeepAlive().Equal(now) {
		t.Errorf("LastKeepAlive = %v, want %v", c.LastKeepAlive(), now)
	}
	if logs.FilterMessage("keep-alive id mismatch").Len() != 1 {
		t.Error("mismatched id not logged")
	}

	later := now.Add(time.Second)
	c.keepAliveReceived(99, later)
	if !c.LastKeepAlive().Equal(later) {
		t.Errorf("LastKeepAlive = %v, want %v", c.LastKeepAlive(), later)
	}
	if logs.FilterMessage("keep-alive id mismatch").Len() != 1 {
		t.Error("matching id logged as mismatch")
	}
}

// 1.8 clients echo the id as a var-int; the echo must still match.
func TestConn_KeepAliveLegacyID(t *testing.T) {
	tests := []struct {
		version packet.Version
		wantID  int64
	}{
		{packet.V1_8, -807_049_093},
		{packet.V1_12_2, 1_700_000_000_123},
		{packet.V1_21, 1_700_000_000_123},
	}
	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			c, logs := newPipeConn(t, 1, 8)
			c.state.Store(int32(packet.Play))
			c.version.Store(int32(tt.version))

			if err := c.SendKeepAlive(1_700_000_000_123); err != nil {
				t.Fatalf("SendKeepAlive: %v", err)
			}
			ops := drain(c)
			if len(ops) != 1 {
				t.Fatalf("queued %d ops", len(ops))
			}
			if got := ops[0].packet.(*packet.KeepAlive).ID; got != tt.wantID {
				t.Errorf("sent id %d, want %d", got, tt.wantID)
			}

			// What the client sends back, decoded under its own version.
			var buf bytes.Buffer
			if err := ops[0].packet.Encode(&buf, tt.version); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			var echo packet.KeepAlive
			r := packet.NewFrameReader(buf.Bytes())
			if err := echo.Decode(&r, tt.version); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			c.keepAliveReceived(echo.ID, time.Now())
			if n := logs.FilterMessage("keep-alive id mismatch").Len(); n != 0 {
				t.Errorf("echoed id %d logged as mismatch", echo.ID)
			}
		})
	}
}

func TestConn_Info(t *testing.T) {
	c, _ := newPipeConn(t, 7, 8)
	if info := c.Info(); info.ID != 7 || info.State != "Handshaking" || info.UUID != "" || info.LastKeepAlive != nil {
		t.Errorf("fresh Info = %+v", info)
	}

	c.mu.Lock()
	c.name = "Notch"
	c.playerUUID = OfflineUUID("Notch")
	c.mu.Unlock()
	c.loggedIn.Store(true)
	c.lastKeepAlive.Store(time.Now().UnixNano())

	info := c.Info()
	if info.Name != "Notch" || info.UUID != "b50ad385-829d-3141-a216-7e7d7539ba7f" || info.LastKeepAlive == nil {
		t.Errorf("Info = %+v", info)
	}
}
