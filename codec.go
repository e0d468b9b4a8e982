package mclimbo

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/gstoney/mclimbo/packet"
)

var (
	// ErrUnknownPacket marks a frame whose id has no entry in the active
	// table. It is a miss, not a failure.
	ErrUnknownPacket = errors.New("unknown packet id")

	// ErrDecoderClosed is returned for frames arriving after Close.
	ErrDecoderClosed = errors.New("decoder closed")

	ErrIllegalEncodeTarget = errors.New("packet not registered for connection state")
)

// DecodeError reports a frame that matched a packet but failed to parse.
// ID is -1 when the id itself could not be read.
type DecodeError struct {
	State   packet.State
	Version packet.Version
	ID      int32
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s packet 0x%02X (%s): %v", e.State, e.ID, e.Version, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IllegalEncodeTargetError is a programming error: the packet is not
// registered for the state and version it was sent in.
type IllegalEncodeTargetError struct {
	State   packet.State
	Version packet.Version
	Type    string
}

func (e *IllegalEncodeTargetError) Error() string {
	return fmt.Sprintf("%v: %s in %s (%s)", ErrIllegalEncodeTarget, e.Type, e.State, e.Version)
}

func (e *IllegalEncodeTargetError) Unwrap() error {
	return ErrIllegalEncodeTarget
}

// Decoder turns payloads into packets using the table of the current
// state and version. It is owned by one connection and not safe for
// concurrent use.
type Decoder struct {
	reg     *packet.Registry
	dir     packet.Direction
	state   packet.State
	version packet.Version
	table   *packet.Table
	closed  bool

	log *zap.SugaredLogger
}

// NewDecoder starts in the handshaking state at the lowest version.
func NewDecoder(reg *packet.Registry, dir packet.Direction, log *zap.SugaredLogger) *Decoder {
	d := &Decoder{
		reg:     reg,
		dir:     dir,
		state:   packet.Handshaking,
		version: packet.MinVersion,
		log:     log,
	}
	d.table = reg.Table(d.state, dir, d.version)
	return d
}

func (d *Decoder) State() packet.State     { return d.state }
func (d *Decoder) Version() packet.Version { return d.version }

// UpdateState switches the table used by the next Decode.
func (d *Decoder) UpdateState(s packet.State) {
	d.state = s
	d.table = d.reg.Table(s, d.dir, d.version)
}

func (d *Decoder) UpdateVersion(v packet.Version) {
	d.version = v
	d.table = d.reg.Table(d.state, d.dir, v)
}

// Close makes every later Decode drop its frame.
func (d *Decoder) Close() {
	d.closed = true
}

// Decode parses one payload ([id][body]). A miss returns ErrUnknownPacket
// and a bad body returns a *DecodeError; neither affects the decoder.
func (d *Decoder) Decode(payload []byte) (packet.Packet, error) {
	if d.closed {
		return nil, ErrDecoderClosed
	}

	r := packet.NewFrameReader(payload)
	id, err := packet.ReadVarInt(&r)
	if err != nil {
		d.log.Warnw("unreadable packet id", "state", d.state, "version", d.version, "error", err)
		return nil, &DecodeError{State: d.state, Version: d.version, ID: -1, Err: err}
	}

	p, ok := d.table.Lookup(id)
	if !ok {
		d.log.Debugw("unknown packet",
			"state", d.state,
			"version", d.version,
			"id", fmt.Sprintf("0x%02X", id),
			"length", len(payload),
		)
		return nil, fmt.Errorf("%w: 0x%02X in %s", ErrUnknownPacket, id, d.state)
	}

	if err := p.Decode(&r, d.version); err != nil {
		d.log.Warnw("malformed packet",
			"state", d.state,
			"version", d.version,
			"id", fmt.Sprintf("0x%02X", id),
			"type", reflect.TypeOf(p).Elem().Name(),
			"error", err,
		)
		return nil, &DecodeError{State: d.state, Version: d.version, ID: id, Err: err}
	}

	if n := r.Remaining(); n > 0 {
		d.log.Debugw("ignoring trailing bytes",
			"id", fmt.Sprintf("0x%02X", id),
			"type", reflect.TypeOf(p).Elem().Name(),
			"trailing", n,
		)
	}
	return p, nil
}

// Encoder turns clientbound packets into payloads. Like Decoder it
// belongs to a single goroutine.
type Encoder struct {
	reg     *packet.Registry
	dir     packet.Direction
	state   packet.State
	version packet.Version
	table   *packet.Table

	buf bytes.Buffer
}

func NewEncoder(reg *packet.Registry, dir packet.Direction) *Encoder {
	e := &Encoder{
		reg:     reg,
		dir:     dir,
		state:   packet.Handshaking,
		version: packet.MinVersion,
	}
	e.table = reg.Table(e.state, dir, e.version)
	return e
}

func (e *Encoder) State() packet.State     { return e.state }
func (e *Encoder) Version() packet.Version { return e.version }

func (e *Encoder) UpdateState(s packet.State) {
	e.state = s
	e.table = e.reg.Table(s, e.dir, e.version)
}

func (e *Encoder) UpdateVersion(v packet.Version) {
	e.version = v
	e.table = e.reg.Table(e.state, e.dir, v)
}

// Encode writes the id and body of p. The returned slice is owned by the
// caller.
func (e *Encoder) Encode(p packet.Packet) ([]byte, error) {
	id, ok := e.table.ID(p)
	if !ok {
		return nil, &IllegalEncodeTargetError{
			State:   e.state,
			Version: e.version,
			Type:    reflect.TypeOf(p).String(),
		}
	}

	e.buf.Reset()
	if err := packet.WriteVarInt(&e.buf, id); err != nil {
		return nil, err
	}
	if err := p.Encode(&e.buf, e.version); err != nil {
		return nil, fmt.Errorf("encode %T: %w", p, err)
	}
	return bytes.Clone(e.buf.Bytes()), nil
}
