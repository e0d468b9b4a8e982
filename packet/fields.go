package packet

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"
)

type WriteFn[T any] func(io.Writer, T) error
type ReadFn[T any] func(*FrameReader) (T, error)

// MaxStringLength is the protocol-wide upper bound for String fields, in bytes.
const MaxStringLength = 32767

func WriteBoolean(w io.Writer, v bool) (err error) {
	b := byte(0)
	if v {
		b = 1
	}

	_, err = w.Write([]byte{b})
	return
}

func ReadBoolean(r *FrameReader) (v bool, err error) {
	b, err := r.ReadByte()
	if err != nil {
		return
	}

	if b == 0 {
		v = false
	} else if b == 1 {
		v = true
	} else {
		err = ErrInvalidBoolean
	}

	return
}

func WriteByte(w io.Writer, v byte) (err error) {
	_, err = w.Write([]byte{v})
	return
}

func ReadByte(r *FrameReader) (v byte, err error) {
	b, err := r.ReadByte()
	return b, err
}

func WriteUnsignedShort(w io.Writer, v uint16) (err error) {
	return binary.Write(w, binary.BigEndian, v)
}

func ReadUnsignedShort(r *FrameReader) (v uint16, err error) {
	b, err := r.Read(2)
	if err != nil {
		return
	}

	v = binary.BigEndian.Uint16(b)
	return
}

func WriteInt(w io.Writer, v int32) (err error) {
	return binary.Write(w, binary.BigEndian, v)
}

func ReadInt(r *FrameReader) (v int32, err error) {
	b, err := r.Read(4)
	if err != nil {
		return
	}

	v = int32(binary.BigEndian.Uint32(b))
	return
}

func WriteLong(w io.Writer, v int64) (err error) {
	return binary.Write(w, binary.BigEndian, v)
}

func ReadLong(r *FrameReader) (v int64, err error) {
	b, err := r.Read(8)
	if err != nil {
		return
	}

	v = int64(binary.BigEndian.Uint64(b))
	return
}

func WriteFloat(w io.Writer, v float32) (err error) {
	return binary.Write(w, binary.BigEndian, math.Float32bits(v))
}

func ReadFloat(r *FrameReader) (v float32, err error) {
	b, err := r.Read(4)
	if err != nil {
		return
	}

	v = math.Float32frombits(binary.BigEndian.Uint32(b))
	return
}

func WriteDouble(w io.Writer, v float64) (err error) {
	return binary.Write(w, binary.BigEndian, math.Float64bits(v))
}

func ReadDouble(r *FrameReader) (v float64, err error) {
	b, err := r.Read(8)
	if err != nil {
		return
	}

	v = math.Float64frombits(binary.BigEndian.Uint64(b))
	return
}

func WriteVarInt(w io.Writer, v int32) error {
	uv := uint32(v)
	for i := 0; ; i++ {
		b := byte(uv & 0x7F)
		uv >>= 7

		if uv != 0 {
			b |= 0x80
		}

		if _, err := w.Write([]byte{b}); err != nil {
			return err
		}

		if uv == 0 {
			return nil
		}
	}
}

// ReadVarInt reads at most 5 bytes. Errors from r are returned as is,
// so a stream reader at a frame boundary reports io.EOF.
func ReadVarInt(r io.ByteReader) (int32, error) {
	var v int32
	var shift uint

	for n := 0; n < 5; n++ {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && n > 0 {
				err = io.ErrUnexpectedEOF
			}
			return v, err
		}

		segment := b & 0x7F
		v |= int32(segment) << shift

		shift += 7

		if (b & 0x80) == 0 {
			return v, nil
		}
	}
	return v, ErrMalformedVarInt
}

// VarIntSize reports how many bytes WriteVarInt uses for v.
func VarIntSize(v int32) int {
	uv := uint32(v)
	n := 1
	for uv >= 0x80 {
		uv >>= 7
		n++
	}
	return n
}

func WriteString(w io.Writer, v string) (err error) {
	err = WriteVarInt(w, int32(len(v)))
	if err != nil {
		return
	}
	_, err = io.WriteString(w, v)
	return
}

// ReadString reads a String whose byte length must not exceed max.
func ReadString(r *FrameReader, max int) (v string, err error) {
	length := int32(0)
	length, err = ReadVarInt(r)
	if err != nil {
		return
	}

	if length < 0 {
		err = ErrNegativeLength
		return
	}
	if int(length) > max {
		err = fmt.Errorf("%w: %d > %d", ErrStringTooLong, length, max)
		return
	}

	buf, err := r.Read(int(length))
	return string(buf), err
}

// ReadIdentifier reads a namespaced key such as "minecraft:brand".
func ReadIdentifier(r *FrameReader) (string, error) {
	return ReadString(r, MaxStringLength)
}

func WriteByteArray(w io.Writer, v []byte) (err error) {
	err = WriteVarInt(w, int32(len(v)))
	if err != nil {
		return
	}
	_, err = w.Write(v)
	return
}

// ReadByteArray reads a length-prefixed byte array of at most max bytes.
// The result is a copy and does not alias the frame.
func ReadByteArray(r *FrameReader, max int) (v []byte, err error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return
	}
	if length < 0 {
		err = ErrNegativeLength
		return
	}
	if int(length) > max {
		err = fmt.Errorf("%w: byte array of %d > %d", ErrMalformedField, length, max)
		return
	}

	b, err := r.Read(int(length))
	if err != nil {
		return
	}
	v = append([]byte{}, b...)
	return
}

// ReadRemaining copies the unread tail of the frame.
func ReadRemaining(r *FrameReader) []byte {
	return append([]byte{}, r.Rest()...)
}

// Position's serialized form is composed of X, Z which are 26 bits each, and 12 bits of Y.
// Thus, unintended content can be written when the values are out of range
type Position struct {
	X int32
	Y int16
	Z int32
}

func WritePosition(w io.Writer, v Position) (err error) {
	packed := (uint64(v.X&0x3FFFFFF) << 38) |
		(uint64(v.Z&0x3FFFFFF) << 12) |
		(uint64(v.Y) & 0xFFF)

	err = binary.Write(w, binary.BigEndian, packed)
	return
}

func ReadPosition(r *FrameReader) (v Position, err error) {
	b, err := r.Read(8)
	if err != nil {
		return
	}

	packed := binary.BigEndian.Uint64(b)

	v.X = signExtend32(int32((packed>>38)&0x3FFFFFF), 26)
	v.Z = signExtend32(int32((packed>>12)&0x3FFFFFF), 26)
	v.Y = int16(signExtend32(int32(packed&0xFFF), 12))
	return
}

// Before 1.14 the Y coordinate sits between X and Z.
func writeLegacyPosition(w io.Writer, v Position) (err error) {
	packed := (uint64(v.X&0x3FFFFFF) << 38) |
		((uint64(v.Y) & 0xFFF) << 26) |
		uint64(v.Z&0x3FFFFFF)

	err = binary.Write(w, binary.BigEndian, packed)
	return
}

func readLegacyPosition(r *FrameReader) (v Position, err error) {
	b, err := r.Read(8)
	if err != nil {
		return
	}

	packed := binary.BigEndian.Uint64(b)

	v.X = signExtend32(int32((packed>>38)&0x3FFFFFF), 26)
	v.Y = int16(signExtend32(int32((packed>>26)&0xFFF), 12))
	v.Z = signExtend32(int32(packed&0x3FFFFFF), 26)
	return
}

func signExtend32(v int32, bits uint) int32 {
	shift := 32 - bits
	return (v << shift) >> shift
}

func WriteUUID(w io.Writer, v uuid.UUID) (err error) {
	_, err = w.Write(v[:])
	return
}

func ReadUUID(r *FrameReader) (v uuid.UUID, err error) {
	b, err := r.Read(16)
	if err != nil {
		return
	}

	v = uuid.UUID(b)
	return
}

func WritePrefixedArray[T any](w io.Writer, v []T, write WriteFn[T]) (err error) {
	err = WriteVarInt(w, int32(len(v)))
	if err != nil {
		return
	}

	for _, item := range v {
		err = write(w, item)
		if err != nil {
			return
		}
	}
	return
}

func ReadPrefixedArray[T any](r *FrameReader, read ReadFn[T]) (v []T, err error) {
	length := int32(0)
	if length, err = ReadVarInt(r); err != nil {
		return
	}
	if length < 0 {
		err = ErrNegativeLength
		return
	}
	// Every element takes at least one byte.
	if int(length) > r.Remaining() {
		err = ErrBufferUnderflow
		return
	}

	v = make([]T, length)
	for i := 0; i < int(length); i++ {
		var item T
		if item, err = read(r); err != nil {
			return
		}
		v[i] = item
	}

	return
}

// Optional[T] represents Optional field in a packet
//
// Serialized Optional[T] is prefixed with Boolean of whether the value exists.
// If so, the value T is followed.
type Optional[T any] struct {
	Exists bool
	Item   T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Exists: true, Item: v}
}

func WriteOptional[T any](w io.Writer, v Optional[T], write WriteFn[T]) (err error) {
	err = WriteBoolean(w, v.Exists)
	if err != nil {
		return
	}

	if v.Exists {
		err = write(w, v.Item)
	}
	return
}

func ReadOptional[T any](r *FrameReader, read ReadFn[T]) (v Optional[T], err error) {
	if v.Exists, err = ReadBoolean(r); err != nil {
		return
	}

	if v.Exists {
		v.Item, err = read(r)
	}
	return
}

// stringReader adapts ReadString to ReadFn for nested String fields.
func stringReader(max int) ReadFn[string] {
	return func(r *FrameReader) (string, error) {
		return ReadString(r, max)
	}
}
