package packet

import (
	"fmt"
	"io"
)

// ClientInformation reports client settings. The server only logs it.
type ClientInformation struct {
	Locale              string
	ViewDistance        int8
	ChatMode            int32
	ChatColors          bool
	DisplayedSkinParts  byte
	MainHand            int32
	EnableTextFiltering bool
	AllowServerListings bool
}

func (p ClientInformation) Encode(w io.Writer, v Version) (err error) {
	if err = WriteString(w, p.Locale); err != nil {
		return
	}
	if err = WriteByte(w, byte(p.ViewDistance)); err != nil {
		return
	}
	if err = WriteVarInt(w, p.ChatMode); err != nil {
		return
	}
	if err = WriteBoolean(w, p.ChatColors); err != nil {
		return
	}
	if err = WriteByte(w, p.DisplayedSkinParts); err != nil {
		return
	}
	if err = WriteVarInt(w, p.MainHand); err != nil {
		return
	}
	if err = WriteBoolean(w, p.EnableTextFiltering); err != nil {
		return
	}
	return WriteBoolean(w, p.AllowServerListings)
}

func (p *ClientInformation) Decode(r *FrameReader, v Version) (err error) {
	if p.Locale, err = ReadString(r, 16); err != nil {
		return
	}
	var b byte
	if b, err = ReadByte(r); err != nil {
		return
	}
	p.ViewDistance = int8(b)
	if p.ChatMode, err = ReadVarInt(r); err != nil {
		return
	}
	if p.ChatMode < 0 || p.ChatMode > 2 {
		return ErrInvalidEnum
	}
	if p.ChatColors, err = ReadBoolean(r); err != nil {
		return
	}
	if p.DisplayedSkinParts, err = ReadByte(r); err != nil {
		return
	}
	if p.MainHand, err = ReadVarInt(r); err != nil {
		return
	}
	if p.MainHand < 0 || p.MainHand > 1 {
		return ErrInvalidEnum
	}
	if p.EnableTextFiltering, err = ReadBoolean(r); err != nil {
		return
	}
	p.AllowServerListings, err = ReadBoolean(r)
	return
}

// @gen:r,w
type FinishConfiguration struct{}

// @gen:r,w
type AcknowledgeFinishConfiguration struct{}

// RegistryEntry is one element of a synchronized registry. Data may be
// omitted when both sides share the entry through a known pack.
type RegistryEntry struct {
	ID   string
	Data Optional[Tag]
}

func writeRegistryEntry(w io.Writer, e RegistryEntry) (err error) {
	if err = WriteString(w, e.ID); err != nil {
		return
	}
	return WriteOptional(w, e.Data, writeNetworkNBT)
}

func readRegistryEntry(r *FrameReader) (e RegistryEntry, err error) {
	if e.ID, err = ReadIdentifier(r); err != nil {
		return
	}
	e.Data, err = ReadOptional(r, readNetworkNBT)
	return
}

func writeNetworkNBT(w io.Writer, t Tag) error {
	return WriteNBT(w, t, true)
}

func readNetworkNBT(r *FrameReader) (Tag, error) {
	return ReadNBT(r, true)
}

// RegistryData synchronizes data-driven registries. Up to 1.20.4 it carries
// the whole codec as one compound; from 1.20.5 one packet per registry.
type RegistryData struct {
	Codec Compound

	RegistryID string
	Entries    []RegistryEntry
}

func (p RegistryData) Encode(w io.Writer, v Version) (err error) {
	if v.Before(V1_21) {
		return WriteNBT(w, p.Codec, true)
	}
	if err = WriteString(w, p.RegistryID); err != nil {
		return
	}
	return WritePrefixedArray(w, p.Entries, writeRegistryEntry)
}

func (p *RegistryData) Decode(r *FrameReader, v Version) (err error) {
	if v.Before(V1_21) {
		var t Tag
		if t, err = ReadNBT(r, true); err != nil {
			return
		}
		c, ok := t.(Compound)
		if !ok {
			return fmt.Errorf("%w: registry codec is not a compound", ErrMalformedField)
		}
		p.Codec = c
		return
	}
	if p.RegistryID, err = ReadIdentifier(r); err != nil {
		return
	}
	p.Entries, err = ReadPrefixedArray(r, readRegistryEntry)
	return
}

type KnownPack struct {
	Namespace string
	ID        string
	Version   string
}

func writeKnownPack(w io.Writer, v KnownPack) (err error) {
	if err = WriteString(w, v.Namespace); err != nil {
		return
	}
	if err = WriteString(w, v.ID); err != nil {
		return
	}
	return WriteString(w, v.Version)
}

func readKnownPack(r *FrameReader) (v KnownPack, err error) {
	if v.Namespace, err = ReadString(r, MaxStringLength); err != nil {
		return
	}
	if v.ID, err = ReadString(r, MaxStringLength); err != nil {
		return
	}
	v.Version, err = ReadString(r, MaxStringLength)
	return
}

// KnownPacks lists data packs whose registry contents both sides share.
//
// @gen:r,w
type KnownPacks struct {
	Packs []KnownPack `field:"PrefixedArray" write:"writeKnownPack" read:"readKnownPack"`
}
