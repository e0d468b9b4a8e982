package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gstoney/mclimbo"
	"github.com/gstoney/mclimbo/config"
	"github.com/gstoney/mclimbo/packet"
	"github.com/gstoney/mclimbo/world"
)

const testTimeout = 5 * time.Second

// startTestServer serves on a loopback listener until the test ends.
func startTestServer(t *testing.T, mutate func(*config.Config), opts ...Option) (*Server, string, *observer.ObservedLogs) {
	t.Helper()

	cfg := config.Default()
	cfg.Bind = "127.0.0.1:0"
	if mutate != nil {
		mutate(cfg)
	}

	w, err := world.NewBuiltin(world.Overworld)
	if err != nil {
		t.Fatalf("NewBuiltin: %v", err)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	opts = append([]Option{WithLogger(zap.New(core).Sugar())}, opts...)
	s := New(cfg, packet.MustRegistry(), w, opts...)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, l) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("Serve: %v", err)
			}
		case <-time.After(testTimeout):
			t.Error("Serve did not return after cancel")
		}
	})
	return s, l.Addr().String(), logs
}

// testClient speaks the client side of the protocol.
type testClient struct {
	t       *testing.T
	conn    net.Conn
	tr      *mclimbo.Transport
	enc     *mclimbo.Encoder
	dec     *mclimbo.Decoder
	v       packet.Version
	brand   string
	regs    int
	packets []packet.Packet
}

func dialTest(t *testing.T, addr string, v packet.Version) *testClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, testTimeout)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	reg := packet.MustRegistry()
	c := &testClient{
		t:    t,
		conn: conn,
		tr:   mclimbo.NewTransport(conn, conn, mclimbo.DefaultTransportConfig()),
		enc:  mclimbo.NewEncoder(reg, packet.ServerBound),
		dec:  mclimbo.NewDecoder(reg, packet.ClientBound, zap.NewNop().Sugar()),
		v:    v,
	}
	c.enc.UpdateVersion(v)
	c.dec.UpdateVersion(v)
	return c
}

func (c *testClient) switchState(s packet.State) {
	c.enc.UpdateState(s)
	c.dec.UpdateState(s)
}

func (c *testClient) send(p packet.Packet) {
	c.t.Helper()
	b, err := c.enc.Encode(p)
	if err != nil {
		c.t.Fatalf("Encode %T: %v", p, err)
	}
	c.sendRaw(b)
}

func (c *testClient) sendRaw(b []byte) {
	c.t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(testTimeout))
	if err := c.tr.Send(b); err != nil {
		c.t.Fatalf("Send: %v", err)
	}
}

func (c *testClient) recv() packet.Packet {
	c.t.Helper()
	p, err := c.tryRecv()
	if err != nil {
		c.t.Fatalf("recv: %v", err)
	}
	return p
}

func (c *testClient) tryRecv() (packet.Packet, error) {
	c.conn.SetReadDeadline(time.Now().Add(testTimeout))
	b, err := c.tr.RecvFrame()
	if err != nil {
		return nil, err
	}
	return c.dec.Decode(b)
}

// expectClosed waits for the server to close the socket.
func (c *testClient) expectClosed() {
	c.t.Helper()
	for {
		p, err := c.tryRecv()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				c.t.Fatal("connection still open")
			}
			return
		}
		c.packets = append(c.packets, p)
	}
}

func (c *testClient) handshake(protocol int32, intent int32) {
	c.t.Helper()
	c.send(&packet.Handshake{
		ProtocolVersion: protocol,
		ServerAddr:      "localhost",
		ServerPort:      25565,
		NextState:       intent,
	})
	if intent == packet.IntentStatus {
		c.switchState(packet.Status)
	} else {
		c.switchState(packet.Login)
	}
}

func (c *testClient) sendLoginStart(name string) {
	c.t.Helper()
	c.send(&packet.LoginStart{Name: name, PlayerUUID: packet.Some(OfflineUUID(name))})
}

// login runs handshake, login and configuration, leaving the client in
// Play right before the join sequence.
func (c *testClient) login(name string) *packet.LoginSuccess {
	c.t.Helper()
	c.handshake(int32(c.v), packet.IntentLogin)
	c.sendLoginStart(name)
	return c.finishLogin()
}

func (c *testClient) finishLogin() *packet.LoginSuccess {
	c.t.Helper()
	for {
		switch p := c.recv().(type) {
		case *packet.SetCompression:
			c.tr.SetCompression(int(p.Threshold))
		case *packet.LoginSuccess:
			if !c.v.HasConfiguration() {
				c.switchState(packet.Play)
				return p
			}
			c.send(&packet.LoginAcknowledged{})
			c.switchState(packet.Configuration)
			c.configure()
			return p
		default:
			c.t.Fatalf("unexpected %T during login", p)
		}
	}
}

func (c *testClient) configure() {
	c.t.Helper()
	for {
		switch p := c.recv().(type) {
		case *packet.PluginMessage:
			c.brand = brandOf(c.t, p)
		case *packet.KnownPacks:
			c.send(&packet.KnownPacks{Packs: p.Packs})
		case *packet.RegistryData:
			c.regs++
		case *packet.FinishConfiguration:
			c.send(&packet.AcknowledgeFinishConfiguration{})
			c.switchState(packet.Play)
			return
		default:
			c.t.Fatalf("unexpected %T during configuration", p)
		}
	}
}

// recvTypes reads n packets and returns their type names.
func (c *testClient) recvTypes(n int) []string {
	c.t.Helper()
	var types []string
	for range n {
		p := c.recv()
		c.packets = append(c.packets, p)
		types = append(types, fmt.Sprintf("%T", p))
	}
	return types
}

func brandOf(t *testing.T, p *packet.PluginMessage) string {
	t.Helper()
	r := packet.NewFrameReader(p.Data)
	s, err := packet.ReadString(&r, packet.MaxStringLength)
	if err != nil {
		t.Fatalf("brand: %v", err)
	}
	return s
}

// eventually polls cond until it holds or the test times out.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
