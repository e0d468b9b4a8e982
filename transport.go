package mclimbo

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"github.com/gstoney/mclimbo/packet"
)

var (
	ErrPacketTooBig      = errors.New("packet too big")
	ErrInvalidDataLength = errors.New("invalid data length")
)

type TransportConfig struct {
	MaxPacketLen       int32
	MaxDecompressedLen int32
}

// DefaultTransportConfig matches the vanilla limits: 2 MiB frames and
// 8 MiB once decompressed.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxPacketLen:       1 << 21,
		MaxDecompressedLen: 1 << 23,
	}
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

type byteWriter interface {
	io.Writer
	io.ByteWriter
}

// Transport provides read and write access to a framed stream,
// with compression handled internally.
// Transport does not deserialize packets.
//
// The read side (Recv, RecvFrame, SetReadCompression) and the write side
// (Send, SetWriteCompression) share no state, so one goroutine may read
// while another writes.
type Transport struct {
	reader byteReader
	writer byteWriter

	fReader streamReader
	zReader io.ReadCloser

	zBuffer bytes.Buffer
	zWriter *zlib.Writer

	// Negative disables compression.
	readThreshold  int
	writeThreshold int

	cfg TransportConfig
}

// NewTransport creates a Transport.
//
// For readers/writers that perform syscalls (e.g. net.Conn), buffering is
// required. Indicate buffered I/O by implementing io.ByteReader/io.ByteWriter.
// If these interfaces are not implemented, the reader/writer will be wrapped
// with bufio.
func NewTransport(r io.Reader, w io.Writer, cfg TransportConfig) *Transport {
	var br byteReader
	var bw byteWriter

	if b, ok := r.(byteReader); ok {
		br = b
	} else if r != nil {
		br = bufio.NewReader(r)
	}

	if b, ok := w.(byteWriter); ok {
		bw = b
	} else if w != nil {
		bw = bufio.NewWriter(w)
	}

	return &Transport{
		reader:         br,
		writer:         bw,
		fReader:        streamReader{br, 0},
		readThreshold:  -1,
		writeThreshold: -1,
		cfg:            cfg,
	}
}

// SetCompression switches both directions at once. Only a client, or a
// test owning both ends, can do that safely.
func (t *Transport) SetCompression(threshold int) {
	t.readThreshold = threshold
	t.writeThreshold = threshold
}

// SetReadCompression applies to frames received after the call.
func (t *Transport) SetReadCompression(threshold int) {
	t.readThreshold = threshold
}

// SetWriteCompression applies to frames sent after the call.
func (t *Transport) SetWriteCompression(threshold int) {
	t.writeThreshold = threshold
}

func (t *Transport) Recv() (r PayloadReader, err error) {
	frameLength, err := t.fReader.Next()
	if err != nil {
		return nil, err
	}

	if frameLength > t.cfg.MaxPacketLen {
		return nil, ErrPacketTooBig
	}

	r = plainPayload{&t.fReader}

	decompressedLen := int32(0)

	if t.readThreshold >= 0 {
		decompressedLen, err = packet.ReadVarInt(&t.fReader)
		if err != nil {
			return nil, err
		}

		if decompressedLen > 0 {
			if decompressedLen > t.cfg.MaxDecompressedLen {
				return nil, ErrPacketTooBig
			}

			if t.zReader == nil {
				t.zReader, err = zlib.NewReader(&t.fReader)
			} else {
				err = t.zReader.(zlib.Resetter).Reset(&t.fReader, nil)
			}
			if err != nil {
				return nil, err
			}

			r = &compressedPayload{t.zReader, &t.fReader, decompressedLen}

		} else if decompressedLen < 0 {
			return nil, ErrInvalidDataLength
		}
	}

	return r, err
}

// RecvFrame reads one whole payload ([id][body]) into memory. Any error
// leaves the stream unusable and should end the connection.
func (t *Transport) RecvFrame() ([]byte, error) {
	pr, err := t.Recv()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, pr.Remaining())
	if _, err := io.ReadFull(pr, buf); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if err := pr.Close(); err != nil {
		return nil, fmt.Errorf("close payload: %w", err)
	}
	return buf, nil
}

// Send frames b and flushes it to the underlying writer.
func (t *Transport) Send(b []byte) (err error) {
	length := len(b)

	switch {
	case t.writeThreshold >= 0 && length >= t.writeThreshold:
		t.zBuffer.Reset()
		if t.zWriter == nil {
			t.zWriter = zlib.NewWriter(&t.zBuffer)
		} else {
			t.zWriter.Reset(&t.zBuffer)
		}
		packet.WriteVarInt(&t.zBuffer, int32(length))

		if _, err = t.zWriter.Write(b); err != nil {
			return
		}
		if err = t.zWriter.Close(); err != nil {
			return
		}

		if err = packet.WriteVarInt(t.writer, int32(t.zBuffer.Len())); err != nil {
			return
		}
		if _, err = t.zBuffer.WriteTo(t.writer); err != nil {
			return
		}

	case t.writeThreshold >= 0:
		if err = packet.WriteVarInt(t.writer, int32(length+1)); err != nil {
			return
		}
		if err = t.writer.WriteByte(0); err != nil {
			return
		}
		if _, err = t.writer.Write(b); err != nil {
			return
		}

	default:
		if err = packet.WriteVarInt(t.writer, int32(length)); err != nil {
			return
		}
		if _, err = t.writer.Write(b); err != nil {
			return
		}
	}

	if bw, ok := t.writer.(*bufio.Writer); ok {
		err = bw.Flush()
	}
	return
}
