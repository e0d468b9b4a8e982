package packet

// FrameReader reads fields out of one decoded frame.
// All reads are bounds checked and fail with ErrBufferUnderflow.
type FrameReader struct {
	buf []byte
	off int
}

func NewFrameReader(buf []byte) FrameReader {
	return FrameReader{
		buf: buf,
		off: 0,
	}
}

func (r FrameReader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *FrameReader) ReadByte() (byte, error) {
	if r.off >= len(r.buf) {
		return 0, ErrBufferUnderflow
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

// Read returns the next n bytes. The slice aliases the frame.
func (r *FrameReader) Read(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeLength
	}
	if n > len(r.buf)-r.off {
		return nil, ErrBufferUnderflow
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Rest consumes and returns everything left in the frame.
func (r *FrameReader) Rest() []byte {
	b := r.buf[r.off:]
	r.off = len(r.buf)
	return b
}
