package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gstoney/mclimbo"
	"github.com/gstoney/mclimbo/packet"
	"github.com/gstoney/mclimbo/world"
)

var (
	ErrQueueFull         = errors.New("outbound queue full")
	ErrConnClosed        = errors.New("connection closed")
	ErrIllegalTransition = errors.New("illegal state transition")
)

type opKind uint8

const (
	opPacket opKind = iota
	opState
	opVersion
	opCompression
	// opClose ends the connection once everything queued before it is written.
	opClose
)

// op is one entry of the outbound queue. State, version and compression
// switches travel with the packets so the writer applies them in order.
type op struct {
	kind      opKind
	packet    packet.Packet
	state     packet.State
	version   packet.Version
	threshold int
}

type connConfig struct {
	queueSize    int
	readTimeout  time.Duration
	writeTimeout time.Duration
	transport    mclimbo.TransportConfig
}

// Conn is one accepted client.
//
// A reader goroutine owns the decoder and runs the packet handler; a writer
// goroutine owns the encoder and the write side of the transport. Other
// goroutines only use Send, Disconnect, Close and the accessors.
type Conn struct {
	id          uint64
	nc          net.Conn
	transport   *mclimbo.Transport
	connectedAt time.Time
	cfg         connConfig

	// reader goroutine only
	ctx          context.Context
	decoder      *mclimbo.Decoder
	loginStarted bool
	payload      *world.JoinPayload

	// writer goroutine only
	encoder *mclimbo.Encoder

	queue     chan op
	closing   chan struct{}
	closeOnce sync.Once

	state         atomic.Int32
	version       atomic.Int32
	loggedIn      atomic.Bool
	joined        atomic.Bool
	disconnecting atomic.Bool
	lastKeepAlive atomic.Int64
	keepAliveID   atomic.Int64

	mu          sync.RWMutex
	protocol    int32
	serverAddr  string
	serverPort  uint16
	name        string
	playerUUID  uuid.UUID
	locale      string
	clientBrand string

	metrics *Metrics
	log     *zap.SugaredLogger
}

func newConn(id uint64, nc net.Conn, reg *packet.Registry, cfg connConfig, metrics *Metrics, log *zap.SugaredLogger) *Conn {
	log = log.With("conn", id, "remote", nc.RemoteAddr().String())
	c := &Conn{
		id:          id,
		nc:          nc,
		transport:   mclimbo.NewTransport(nc, nc, cfg.transport),
		connectedAt: time.Now(),
		cfg:         cfg,
		ctx:         context.Background(),
		decoder:     mclimbo.NewDecoder(reg, packet.ServerBound, log),
		encoder:     mclimbo.NewEncoder(reg, packet.ClientBound),
		queue:       make(chan op, cfg.queueSize),
		closing:     make(chan struct{}),
		metrics:     metrics,
		log:         log,
	}
	c.state.Store(int32(packet.Handshaking))
	c.version.Store(int32(packet.MinVersion))
	return c
}

func (c *Conn) ID() uint64             { return c.id }
func (c *Conn) RemoteAddr() net.Addr   { return c.nc.RemoteAddr() }
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// State is the state committed by the reader goroutine.
func (c *Conn) State() packet.State {
	return packet.State(c.state.Load())
}

// Version is the version used by the codec, which is the closest supported
// version to Protocol.
func (c *Conn) Version() packet.Version {
	return packet.Version(c.version.Load())
}

// Protocol is the protocol number the client sent in its handshake.
func (c *Conn) Protocol() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.protocol
}

func (c *Conn) ServerAddr() (string, uint16) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverAddr, c.serverPort
}

// Name is empty until the client sends its login start.
func (c *Conn) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Conn) UUID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerUUID
}

// LastKeepAlive is when the player last answered a keep-alive, or when it
// joined. It is zero before the join.
func (c *Conn) LastKeepAlive() time.Time {
	n := c.lastKeepAlive.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (c *Conn) Closed() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// Send queues p without blocking. A full queue closes the connection.
func (c *Conn) Send(p packet.Packet) error {
	return c.enqueue(op{kind: opPacket, packet: p})
}

func (c *Conn) enqueue(o op) error {
	if c.disconnecting.Load() {
		return ErrConnClosed
	}
	return c.push(o)
}

func (c *Conn) push(o op) error {
	if c.Closed() {
		return ErrConnClosed
	}
	select {
	case c.queue <- o:
		return nil
	case <-c.closing:
		return ErrConnClosed
	default:
		c.log.Warnw("outbound queue full, closing", "size", cap(c.queue))
		c.Close()
		return ErrQueueFull
	}
}

// Disconnect sends the disconnect packet of the current state, if it has
// one, and closes the connection once it is written. Later sends fail with
// ErrConnClosed, and so does a second Disconnect.
func (c *Conn) Disconnect(reason string) error {
	if c.Closed() || !c.disconnecting.CompareAndSwap(false, true) {
		return ErrConnClosed
	}
	var p packet.Packet
	switch c.State() {
	case packet.Login:
		p = &packet.LoginDisconnect{Reason: reason}
	case packet.Configuration, packet.Play:
		p = &packet.Disconnect{Reason: reason}
	}
	if p != nil {
		if err := c.push(op{kind: opPacket, packet: p}); err != nil {
			return err
		}
	}
	return c.push(op{kind: opClose})
}

// Close closes the socket. Queued packets are dropped. It is safe to call
// more than once and from any goroutine.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		err = c.nc.Close()
	})
	return err
}

// SendKeepAlive queues a keep-alive with the given id. Before 1.12.2 the
// id travels as a var-int, so only its low 32 bits are sent and expected.
func (c *Conn) SendKeepAlive(id int64) error {
	if c.Version().Before(packet.V1_12_2) {
		id = int64(int32(id))
	}
	if err := c.Send(&packet.KeepAlive{ID: id}); err != nil {
		return err
	}
	c.keepAliveID.Store(id)
	return nil
}

// keepAliveReceived refreshes the liveness timestamp. Any response counts;
// a mismatched id only gets logged.
func (c *Conn) keepAliveReceived(id int64, now time.Time) {
	if want := c.keepAliveID.Load(); want != 0 && id != want {
		c.log.Debugw("keep-alive id mismatch", "got", id, "want", want)
	}
	c.lastKeepAlive.Store(now.UnixNano())
}

// switchState moves the connection forward. The decoder switches now, the
// encoder once everything queued so far is written.
func (c *Conn) switchState(s packet.State) error {
	from := c.State()
	if s <= from {
		return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, from, s)
	}
	c.decoder.UpdateState(s)
	if err := c.enqueue(op{kind: opState, state: s}); err != nil {
		return err
	}
	c.state.Store(int32(s))
	c.metrics.stateChanged(from, s)
	c.log.Debugw("state changed", "from", from, "to", s)
	return nil
}

func (c *Conn) setVersion(v packet.Version) error {
	c.decoder.UpdateVersion(v)
	if err := c.enqueue(op{kind: opVersion, version: v}); err != nil {
		return err
	}
	c.version.Store(int32(v))
	return nil
}

// enableCompression sends SetCompression. Frames read after this call are
// expected compressed; frames written after the packet is sent are.
func (c *Conn) enableCompression(threshold int) error {
	if err := c.Send(&packet.SetCompression{Threshold: int32(threshold)}); err != nil {
		return err
	}
	if err := c.enqueue(op{kind: opCompression, threshold: threshold}); err != nil {
		return err
	}
	c.transport.SetReadCompression(threshold)
	return nil
}

// serve runs the reader and writer until either ends.
func (c *Conn) serve(handle func(*Conn, packet.Packet) error) error {
	var g errgroup.Group
	g.Go(func() error {
		defer c.Close()
		return c.readLoop(handle)
	})
	g.Go(func() error {
		defer c.Close()
		return c.writeLoop()
	})
	return g.Wait()
}

func (c *Conn) readLoop(handle func(*Conn, packet.Packet) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("panic while handling packet", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	for {
		if c.cfg.readTimeout > 0 {
			c.nc.SetReadDeadline(time.Now().Add(c.cfg.readTimeout))
		}

		payload, err := c.transport.RecvFrame()
		if err != nil {
			if c.Closed() || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		if c.Closed() {
			c.decoder.Close()
		}

		state := c.decoder.State()
		p, err := c.decoder.Decode(payload)
		switch {
		case errors.Is(err, mclimbo.ErrDecoderClosed):
			return nil
		case errors.Is(err, mclimbo.ErrUnknownPacket):
			c.metrics.UnknownPackets.Inc()
			continue
		case err != nil:
			c.metrics.MalformedPackets.Inc()
			continue
		}
		c.metrics.PacketsDecoded.WithLabelValues(state.String()).Inc()

		if err := handle(c, p); err != nil {
			return err
		}
	}
}

func (c *Conn) writeLoop() error {
	for {
		select {
		case <-c.closing:
			return nil
		case o := <-c.queue:
			done, err := c.write(o)
			if err != nil && c.Closed() {
				return nil
			}
			if done || err != nil {
				return err
			}
		}
	}
}

func (c *Conn) write(o op) (done bool, err error) {
	switch o.kind {
	case opState:
		c.encoder.UpdateState(o.state)
	case opVersion:
		c.encoder.UpdateVersion(o.version)
	case opCompression:
		c.transport.SetWriteCompression(o.threshold)
	case opClose:
		return true, nil
	case opPacket:
		b, err := c.encoder.Encode(o.packet)
		if errors.Is(err, mclimbo.ErrIllegalEncodeTarget) {
			c.log.DPanicw("illegal encode target", "error", err)
			return false, nil
		}
		if err != nil {
			c.log.Errorw("encode failed", "type", fmt.Sprintf("%T", o.packet), "error", err)
			return false, nil
		}

		if c.cfg.writeTimeout > 0 {
			c.nc.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout))
		}
		if err := c.transport.Send(b); err != nil {
			return true, fmt.Errorf("write: %w", err)
		}
	}
	return false, nil
}

// ConnInfo is a point-in-time view of a connection for admin surfaces.
type ConnInfo struct {
	ID            uint64     `json:"id"`
	Remote        string     `json:"remote"`
	State         string     `json:"state"`
	Version       string     `json:"version"`
	Protocol      int32      `json:"protocol"`
	Name          string     `json:"name,omitempty"`
	UUID          string     `json:"uuid,omitempty"`
	ConnectedAt   time.Time  `json:"connected_at"`
	LastKeepAlive *time.Time `json:"last_keep_alive,omitempty"`
}

func (c *Conn) Info() ConnInfo {
	info := ConnInfo{
		ID:          c.id,
		Remote:      c.nc.RemoteAddr().String(),
		State:       c.State().String(),
		Version:     c.Version().String(),
		Protocol:    c.Protocol(),
		Name:        c.Name(),
		ConnectedAt: c.connectedAt,
	}
	if c.loggedIn.Load() {
		info.UUID = c.UUID().String()
	}
	if t := c.LastKeepAlive(); !t.IsZero() {
		info.LastKeepAlive = &t
	}
	return info
}
