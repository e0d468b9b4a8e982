package packet

import "io"

type Handshake struct {
	ProtocolVersion int32
	ServerAddr      string
	ServerPort      uint16
	// One of IntentStatus, IntentLogin or IntentTransfer.
	NextState int32
}

func (p Handshake) Encode(w io.Writer, v Version) (err error) {
	if err = WriteVarInt(w, p.ProtocolVersion); err != nil {
		return
	}
	if err = WriteString(w, p.ServerAddr); err != nil {
		return
	}
	if err = WriteUnsignedShort(w, p.ServerPort); err != nil {
		return
	}
	return WriteVarInt(w, p.NextState)
}

func (p *Handshake) Decode(r *FrameReader, v Version) (err error) {
	if p.ProtocolVersion, err = ReadVarInt(r); err != nil {
		return
	}
	if p.ServerAddr, err = ReadString(r, 255); err != nil {
		return
	}
	if p.ServerPort, err = ReadUnsignedShort(r); err != nil {
		return
	}
	if p.NextState, err = ReadVarInt(r); err != nil {
		return
	}
	if p.NextState < IntentStatus || p.NextState > IntentTransfer {
		return ErrInvalidEnum
	}
	return
}
