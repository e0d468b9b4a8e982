package packet

import (
	"bytes"
	"io"
)

// KeepAlive is used in configuration and play, in both directions.
// 1.8 sends the id as a VarInt, later versions as a Long.
type KeepAlive struct {
	ID int64
}

func (p KeepAlive) Encode(w io.Writer, v Version) error {
	if v.Before(V1_12_2) {
		return WriteVarInt(w, int32(p.ID))
	}
	return WriteLong(w, p.ID)
}

func (p *KeepAlive) Decode(r *FrameReader, v Version) (err error) {
	if v.Before(V1_12_2) {
		var id int32
		id, err = ReadVarInt(r)
		p.ID = int64(id)
		return
	}
	p.ID, err = ReadLong(r)
	return
}

// PluginMessage carries opaque channel data. Data runs to the end of the frame.
type PluginMessage struct {
	Channel string
	Data    []byte
}

func (p PluginMessage) Encode(w io.Writer, v Version) (err error) {
	if err = WriteString(w, p.Channel); err != nil {
		return
	}
	_, err = w.Write(p.Data)
	return
}

func (p *PluginMessage) Decode(r *FrameReader, v Version) (err error) {
	if p.Channel, err = ReadIdentifier(r); err != nil {
		return
	}
	p.Data = ReadRemaining(r)
	return
}

// BrandMessage builds the plugin message announcing the server brand.
func BrandMessage(v Version, brand string) *PluginMessage {
	channel := "minecraft:brand"
	if v.Before(V1_16_5) {
		channel = "MC|Brand"
	}
	var data bytes.Buffer
	WriteString(&data, brand)
	return &PluginMessage{Channel: channel, Data: data.Bytes()}
}

// Disconnect kicks a client in the configuration or play state.
type Disconnect struct {
	Reason string
}

func (p Disconnect) Encode(w io.Writer, v Version) error {
	return writeText(w, v, p.Reason)
}

func (p *Disconnect) Decode(r *FrameReader, v Version) (err error) {
	p.Reason, err = readText(r, v)
	return
}
