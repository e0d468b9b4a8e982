package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// NBT tag type ids.
const (
	TagEnd byte = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

// MaxNBTDepth bounds compound/list nesting while reading.
const MaxNBTDepth = 512

var ErrNBTTooDeep = fmt.Errorf("%w: NBT nesting too deep", ErrMalformedField)

// Tag is one NBT value.
type Tag interface {
	TagType() byte
	writePayload(w io.Writer) error
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	String    string
	ByteArray []byte
	IntArray  []int32
	LongArray []int64
)

// List holds tags of one type. Elem is only consulted when the list is empty.
type List struct {
	Elem  byte
	Items []Tag
}

// NamedTag is one entry of a Compound.
type NamedTag struct {
	Name  string
	Value Tag
}

// Compound keeps entries in insertion order so encoding is deterministic.
type Compound []NamedTag

func (Byte) TagType() byte      { return TagByte }
func (Short) TagType() byte     { return TagShort }
func (Int) TagType() byte       { return TagInt }
func (Long) TagType() byte      { return TagLong }
func (Float) TagType() byte     { return TagFloat }
func (Double) TagType() byte    { return TagDouble }
func (String) TagType() byte    { return TagString }
func (ByteArray) TagType() byte { return TagByteArray }
func (IntArray) TagType() byte  { return TagIntArray }
func (LongArray) TagType() byte { return TagLongArray }
func (List) TagType() byte      { return TagList }
func (Compound) TagType() byte  { return TagCompound }

func (v Byte) writePayload(w io.Writer) error   { return WriteByte(w, byte(v)) }
func (v Short) writePayload(w io.Writer) error  { return binary.Write(w, binary.BigEndian, int16(v)) }
func (v Int) writePayload(w io.Writer) error    { return WriteInt(w, int32(v)) }
func (v Long) writePayload(w io.Writer) error   { return WriteLong(w, int64(v)) }
func (v Float) writePayload(w io.Writer) error  { return WriteFloat(w, float32(v)) }
func (v Double) writePayload(w io.Writer) error { return WriteDouble(w, float64(v)) }
func (v String) writePayload(w io.Writer) error { return writeNBTString(w, string(v)) }

func (v ByteArray) writePayload(w io.Writer) (err error) {
	if err = WriteInt(w, int32(len(v))); err != nil {
		return
	}
	_, err = w.Write(v)
	return
}

func (v IntArray) writePayload(w io.Writer) (err error) {
	if err = WriteInt(w, int32(len(v))); err != nil {
		return
	}
	return binary.Write(w, binary.BigEndian, []int32(v))
}

func (v LongArray) writePayload(w io.Writer) (err error) {
	if err = WriteInt(w, int32(len(v))); err != nil {
		return
	}
	return binary.Write(w, binary.BigEndian, []int64(v))
}

func (v List) writePayload(w io.Writer) (err error) {
	elem := v.Elem
	if len(v.Items) > 0 {
		elem = v.Items[0].TagType()
	}
	if err = WriteByte(w, elem); err != nil {
		return
	}
	if err = WriteInt(w, int32(len(v.Items))); err != nil {
		return
	}
	for i, item := range v.Items {
		if item.TagType() != elem {
			return fmt.Errorf("nbt: list item %d has type %d, want %d", i, item.TagType(), elem)
		}
		if err = item.writePayload(w); err != nil {
			return
		}
	}
	return
}

func (v Compound) writePayload(w io.Writer) (err error) {
	for _, e := range v {
		if e.Value == nil {
			return fmt.Errorf("nbt: nil value for %q", e.Name)
		}
		if err = WriteByte(w, e.Value.TagType()); err != nil {
			return
		}
		if err = writeNBTString(w, e.Name); err != nil {
			return
		}
		if err = e.Value.writePayload(w); err != nil {
			return
		}
	}
	return WriteByte(w, TagEnd)
}

// Get returns the value stored under name.
func (v Compound) Get(name string) (Tag, bool) {
	for _, e := range v {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

func writeNBTString(w io.Writer, s string) (err error) {
	if len(s) > math.MaxUint16 {
		return errors.New("nbt: string too long")
	}
	if err = WriteUnsignedShort(w, uint16(len(s))); err != nil {
		return
	}
	_, err = io.WriteString(w, s)
	return
}

// WriteNBT writes a root tag. Since 1.20.2 the network form drops the
// root name; before that the root carries an empty name.
func WriteNBT(w io.Writer, v Tag, network bool) (err error) {
	if v == nil {
		return WriteByte(w, TagEnd)
	}
	if err = WriteByte(w, v.TagType()); err != nil {
		return
	}
	if !network {
		if err = writeNBTString(w, ""); err != nil {
			return
		}
	}
	return v.writePayload(w)
}

// ReadNBT reads a root tag written by WriteNBT. A lone TagEnd yields nil.
func ReadNBT(r *FrameReader, network bool) (Tag, error) {
	id, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if id == TagEnd {
		return nil, nil
	}
	if !network {
		if _, err = readNBTString(r); err != nil {
			return nil, err
		}
	}
	return readNBTPayload(r, id, 0)
}

func readNBTString(r *FrameReader) (string, error) {
	n, err := ReadUnsignedShort(r)
	if err != nil {
		return "", err
	}
	b, err := r.Read(int(n))
	return string(b), err
}

func readNBTLength(r *FrameReader, elemSize int) (int, error) {
	n, err := ReadInt(r)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrNegativeLength
	}
	if int(n)*elemSize > r.Remaining() {
		return 0, ErrBufferUnderflow
	}
	return int(n), nil
}

func readNBTPayload(r *FrameReader, id byte, depth int) (Tag, error) {
	if depth > MaxNBTDepth {
		return nil, ErrNBTTooDeep
	}

	switch id {
	case TagByte:
		b, err := r.ReadByte()
		return Byte(int8(b)), err
	case TagShort:
		v, err := ReadUnsignedShort(r)
		return Short(int16(v)), err
	case TagInt:
		v, err := ReadInt(r)
		return Int(v), err
	case TagLong:
		v, err := ReadLong(r)
		return Long(v), err
	case TagFloat:
		v, err := ReadFloat(r)
		return Float(v), err
	case TagDouble:
		v, err := ReadDouble(r)
		return Double(v), err
	case TagString:
		v, err := readNBTString(r)
		return String(v), err
	case TagByteArray:
		n, err := readNBTLength(r, 1)
		if err != nil {
			return nil, err
		}
		b, err := r.Read(n)
		return ByteArray(append([]byte{}, b...)), err
	case TagIntArray:
		n, err := readNBTLength(r, 4)
		if err != nil {
			return nil, err
		}
		v := make(IntArray, n)
		for i := range v {
			if v[i], err = ReadInt(r); err != nil {
				return nil, err
			}
		}
		return v, nil
	case TagLongArray:
		n, err := readNBTLength(r, 8)
		if err != nil {
			return nil, err
		}
		v := make(LongArray, n)
		for i := range v {
			if v[i], err = ReadLong(r); err != nil {
				return nil, err
			}
		}
		return v, nil
	case TagList:
		elem, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		n, err := readNBTLength(r, 0)
		if err != nil {
			return nil, err
		}
		if n > 0 && elem == TagEnd {
			return nil, fmt.Errorf("%w: non-empty NBT list of TAG_End", ErrMalformedField)
		}
		if n > r.Remaining() {
			return nil, ErrBufferUnderflow
		}
		l := List{Elem: elem}
		for i := 0; i < n; i++ {
			item, err := readNBTPayload(r, elem, depth+1)
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, item)
		}
		return l, nil
	case TagCompound:
		c := Compound{}
		for {
			t, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			if t == TagEnd {
				return c, nil
			}
			name, err := readNBTString(r)
			if err != nil {
				return nil, err
			}
			v, err := readNBTPayload(r, t, depth+1)
			if err != nil {
				return nil, err
			}
			c = append(c, NamedTag{Name: name, Value: v})
		}
	}
	return nil, fmt.Errorf("%w: unknown NBT tag type %d", ErrMalformedField, id)
}
