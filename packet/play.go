package packet

import (
	"fmt"
	"io"
)

// DeathLocation is the last death position reported on join.
type DeathLocation struct {
	Dimension string
	Location  Position
}

// JoinGame puts the client into the world. The layout changed with 1.9,
// 1.16, 1.19/1.20, 1.20.2 and 1.20.5; fields a layout lacks decode as
// zero values.
type JoinGame struct {
	EntityID         int32
	Hardcore         bool
	GameMode         byte
	PreviousGameMode int8

	// 1.8 and 1.12.2 only.
	LegacyDimension int32
	Difficulty      byte
	LevelType       string

	WorldNames []string
	// Registry codec sent inline on 1.16.5 and 1.20.
	Codec Compound
	// Dimension element, 1.16.5 only.
	Dimension Compound
	// Dimension type key on 1.20 to 1.20.4, registry index on 1.21.
	DimensionType   string
	DimensionTypeID int32
	WorldName       string
	HashedSeed      int64

	MaxPlayers          int32
	ViewDistance        int32
	SimulationDistance  int32
	ReducedDebugInfo    bool
	EnableRespawnScreen bool
	DoLimitedCrafting   bool
	IsDebug             bool
	IsFlat              bool
	DeathLocation       Optional[DeathLocation]
	PortalCooldown      int32
	EnforcesSecureChat  bool
}

func writeIdentifier(w io.Writer, v string) error {
	return WriteString(w, v)
}

func writeDeathLocation(w io.Writer, v DeathLocation) (err error) {
	if err = WriteString(w, v.Dimension); err != nil {
		return
	}
	return WritePosition(w, v.Location)
}

func readDeathLocation(r *FrameReader) (v DeathLocation, err error) {
	if v.Dimension, err = ReadIdentifier(r); err != nil {
		return
	}
	v.Location, err = ReadPosition(r)
	return
}

func (p JoinGame) Encode(w io.Writer, v Version) error {
	if v.Before(V1_16_5) {
		return p.encodeLegacy(w, v)
	}
	if v.Before(V1_20_2) {
		return p.encodeWithCodec(w, v)
	}
	return p.encodeConfigured(w, v)
}

func (p *JoinGame) Decode(r *FrameReader, v Version) error {
	if v.Before(V1_16_5) {
		return p.decodeLegacy(r, v)
	}
	if v.Before(V1_20_2) {
		return p.decodeWithCodec(r, v)
	}
	return p.decodeConfigured(r, v)
}

// 1.8 and 1.12.2 fold the hardcore flag into bit 3 of the game mode.
func (p JoinGame) encodeLegacy(w io.Writer, v Version) (err error) {
	if err = WriteInt(w, p.EntityID); err != nil {
		return
	}
	mode := p.GameMode
	if p.Hardcore {
		mode |= 0x8
	}
	if err = WriteByte(w, mode); err != nil {
		return
	}
	if v.Before(V1_12_2) {
		err = WriteByte(w, byte(int8(p.LegacyDimension)))
	} else {
		err = WriteInt(w, p.LegacyDimension)
	}
	if err != nil {
		return
	}
	if err = WriteByte(w, p.Difficulty); err != nil {
		return
	}
	if err = WriteByte(w, byte(p.MaxPlayers)); err != nil {
		return
	}
	if err = WriteString(w, p.LevelType); err != nil {
		return
	}
	return WriteBoolean(w, p.ReducedDebugInfo)
}

func (p *JoinGame) decodeLegacy(r *FrameReader, v Version) (err error) {
	if p.EntityID, err = ReadInt(r); err != nil {
		return
	}
	var mode byte
	if mode, err = ReadByte(r); err != nil {
		return
	}
	p.Hardcore = mode&0x8 != 0
	p.GameMode = mode &^ 0x8
	if v.Before(V1_12_2) {
		var b byte
		b, err = ReadByte(r)
		p.LegacyDimension = int32(int8(b))
	} else {
		p.LegacyDimension, err = ReadInt(r)
	}
	if err != nil {
		return
	}
	if p.Difficulty, err = ReadByte(r); err != nil {
		return
	}
	var maxPlayers byte
	if maxPlayers, err = ReadByte(r); err != nil {
		return
	}
	p.MaxPlayers = int32(maxPlayers)
	if p.LevelType, err = ReadString(r, 16); err != nil {
		return
	}
	p.ReducedDebugInfo, err = ReadBoolean(r)
	return
}

// 1.16.5 and 1.20 send the registry codec inside JoinGame.
func (p JoinGame) encodeWithCodec(w io.Writer, v Version) (err error) {
	if err = WriteInt(w, p.EntityID); err != nil {
		return
	}
	if err = WriteBoolean(w, p.Hardcore); err != nil {
		return
	}
	if err = WriteByte(w, p.GameMode); err != nil {
		return
	}
	if err = WriteByte(w, byte(p.PreviousGameMode)); err != nil {
		return
	}
	if err = WritePrefixedArray(w, p.WorldNames, writeIdentifier); err != nil {
		return
	}
	if err = WriteNBT(w, p.Codec, false); err != nil {
		return
	}
	if v.Before(V1_20) {
		err = WriteNBT(w, p.Dimension, false)
	} else {
		err = WriteString(w, p.DimensionType)
	}
	if err != nil {
		return
	}
	if err = WriteString(w, p.WorldName); err != nil {
		return
	}
	if err = WriteLong(w, p.HashedSeed); err != nil {
		return
	}
	if err = WriteVarInt(w, p.MaxPlayers); err != nil {
		return
	}
	if err = WriteVarInt(w, p.ViewDistance); err != nil {
		return
	}
	if v.AtLeast(V1_20) {
		if err = WriteVarInt(w, p.SimulationDistance); err != nil {
			return
		}
	}
	if err = WriteBoolean(w, p.ReducedDebugInfo); err != nil {
		return
	}
	if err = WriteBoolean(w, p.EnableRespawnScreen); err != nil {
		return
	}
	if err = WriteBoolean(w, p.IsDebug); err != nil {
		return
	}
	if err = WriteBoolean(w, p.IsFlat); err != nil {
		return
	}
	if v.Before(V1_20) {
		return
	}
	if err = WriteOptional(w, p.DeathLocation, writeDeathLocation); err != nil {
		return
	}
	return WriteVarInt(w, p.PortalCooldown)
}

func readCompound(r *FrameReader, network bool) (Compound, error) {
	t, err := ReadNBT(r, network)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	c, ok := t.(Compound)
	if !ok {
		return nil, fmt.Errorf("%w: expected NBT compound, got tag %d", ErrMalformedField, t.TagType())
	}
	return c, nil
}

func (p *JoinGame) decodeWithCodec(r *FrameReader, v Version) (err error) {
	if p.EntityID, err = ReadInt(r); err != nil {
		return
	}
	if p.Hardcore, err = ReadBoolean(r); err != nil {
		return
	}
	if p.GameMode, err = ReadByte(r); err != nil {
		return
	}
	var prev byte
	if prev, err = ReadByte(r); err != nil {
		return
	}
	p.PreviousGameMode = int8(prev)
	if p.WorldNames, err = ReadPrefixedArray(r, ReadIdentifier); err != nil {
		return
	}
	if p.Codec, err = readCompound(r, false); err != nil {
		return
	}
	if v.Before(V1_20) {
		p.Dimension, err = readCompound(r, false)
	} else {
		p.DimensionType, err = ReadIdentifier(r)
	}
	if err != nil {
		return
	}
	if p.WorldName, err = ReadIdentifier(r); err != nil {
		return
	}
	if p.HashedSeed, err = ReadLong(r); err != nil {
		return
	}
	if p.MaxPlayers, err = ReadVarInt(r); err != nil {
		return
	}
	if p.ViewDistance, err = ReadVarInt(r); err != nil {
		return
	}
	if v.AtLeast(V1_20) {
		if p.SimulationDistance, err = ReadVarInt(r); err != nil {
			return
		}
	}
	if p.ReducedDebugInfo, err = ReadBoolean(r); err != nil {
		return
	}
	if p.EnableRespawnScreen, err = ReadBoolean(r); err != nil {
		return
	}
	if p.IsDebug, err = ReadBoolean(r); err != nil {
		return
	}
	if p.IsFlat, err = ReadBoolean(r); err != nil {
		return
	}
	if v.Before(V1_20) {
		return
	}
	if p.DeathLocation, err = ReadOptional(r, readDeathLocation); err != nil {
		return
	}
	p.PortalCooldown, err = ReadVarInt(r)
	return
}

// From 1.20.2 the codec travels in the configuration phase.
func (p JoinGame) encodeConfigured(w io.Writer, v Version) (err error) {
	if err = WriteInt(w, p.EntityID); err != nil {
		return
	}
	if err = WriteBoolean(w, p.Hardcore); err != nil {
		return
	}
	if err = WritePrefixedArray(w, p.WorldNames, writeIdentifier); err != nil {
		return
	}
	if err = WriteVarInt(w, p.MaxPlayers); err != nil {
		return
	}
	if err = WriteVarInt(w, p.ViewDistance); err != nil {
		return
	}
	if err = WriteVarInt(w, p.SimulationDistance); err != nil {
		return
	}
	if err = WriteBoolean(w, p.ReducedDebugInfo); err != nil {
		return
	}
	if err = WriteBoolean(w, p.EnableRespawnScreen); err != nil {
		return
	}
	if err = WriteBoolean(w, p.DoLimitedCrafting); err != nil {
		return
	}
	if v.AtLeast(V1_21) {
		err = WriteVarInt(w, p.DimensionTypeID)
	} else {
		err = WriteString(w, p.DimensionType)
	}
	if err != nil {
		return
	}
	if err = WriteString(w, p.WorldName); err != nil {
		return
	}
	if err = WriteLong(w, p.HashedSeed); err != nil {
		return
	}
	if err = WriteByte(w, p.GameMode); err != nil {
		return
	}
	if err = WriteByte(w, byte(p.PreviousGameMode)); err != nil {
		return
	}
	if err = WriteBoolean(w, p.IsDebug); err != nil {
		return
	}
	if err = WriteBoolean(w, p.IsFlat); err != nil {
		return
	}
	if err = WriteOptional(w, p.DeathLocation, writeDeathLocation); err != nil {
		return
	}
	if err = WriteVarInt(w, p.PortalCooldown); err != nil {
		return
	}
	if v.AtLeast(V1_21) {
		err = WriteBoolean(w, p.EnforcesSecureChat)
	}
	return
}

func (p *JoinGame) decodeConfigured(r *FrameReader, v Version) (err error) {
	if p.EntityID, err = ReadInt(r); err != nil {
		return
	}
	if p.Hardcore, err = ReadBoolean(r); err != nil {
		return
	}
	if p.WorldNames, err = ReadPrefixedArray(r, ReadIdentifier); err != nil {
		return
	}
	if p.MaxPlayers, err = ReadVarInt(r); err != nil {
		return
	}
	if p.ViewDistance, err = ReadVarInt(r); err != nil {
		return
	}
	if p.SimulationDistance, err = ReadVarInt(r); err != nil {
		return
	}
	if p.ReducedDebugInfo, err = ReadBoolean(r); err != nil {
		return
	}
	if p.EnableRespawnScreen, err = ReadBoolean(r); err != nil {
		return
	}
	if p.DoLimitedCrafting, err = ReadBoolean(r); err != nil {
		return
	}
	if v.AtLeast(V1_21) {
		p.DimensionTypeID, err = ReadVarInt(r)
	} else {
		p.DimensionType, err = ReadIdentifier(r)
	}
	if err != nil {
		return
	}
	if p.WorldName, err = ReadIdentifier(r); err != nil {
		return
	}
	if p.HashedSeed, err = ReadLong(r); err != nil {
		return
	}
	if p.GameMode, err = ReadByte(r); err != nil {
		return
	}
	var prev byte
	if prev, err = ReadByte(r); err != nil {
		return
	}
	p.PreviousGameMode = int8(prev)
	if p.IsDebug, err = ReadBoolean(r); err != nil {
		return
	}
	if p.IsFlat, err = ReadBoolean(r); err != nil {
		return
	}
	if p.DeathLocation, err = ReadOptional(r, readDeathLocation); err != nil {
		return
	}
	if p.PortalCooldown, err = ReadVarInt(r); err != nil {
		return
	}
	if v.AtLeast(V1_21) {
		p.EnforcesSecureChat, err = ReadBoolean(r)
	}
	return
}

// SpawnPosition sets the compass target. Angle exists from 1.17.
type SpawnPosition struct {
	Location Position
	Angle    float32
}

func (p SpawnPosition) Encode(w io.Writer, v Version) (err error) {
	if v.Before(V1_16_5) {
		return writeLegacyPosition(w, p.Location)
	}
	if err = WritePosition(w, p.Location); err != nil {
		return
	}
	if v.AtLeast(V1_20) {
		err = WriteFloat(w, p.Angle)
	}
	return
}

func (p *SpawnPosition) Decode(r *FrameReader, v Version) (err error) {
	if v.Before(V1_16_5) {
		p.Location, err = readLegacyPosition(r)
		return
	}
	if p.Location, err = ReadPosition(r); err != nil {
		return
	}
	if v.AtLeast(V1_20) {
		p.Angle, err = ReadFloat(r)
	}
	return
}

// PlayerPosition teleports the client. TeleportID exists from 1.9.
type PlayerPosition struct {
	X, Y, Z    float64
	Yaw, Pitch float32
	Flags      byte
	TeleportID int32
}

func (p PlayerPosition) Encode(w io.Writer, v Version) (err error) {
	for _, d := range []float64{p.X, p.Y, p.Z} {
		if err = WriteDouble(w, d); err != nil {
			return
		}
	}
	if err = WriteFloat(w, p.Yaw); err != nil {
		return
	}
	if err = WriteFloat(w, p.Pitch); err != nil {
		return
	}
	if err = WriteByte(w, p.Flags); err != nil {
		return
	}
	if v.AtLeast(V1_12_2) {
		err = WriteVarInt(w, p.TeleportID)
	}
	return
}

func (p *PlayerPosition) Decode(r *FrameReader, v Version) (err error) {
	if p.X, err = ReadDouble(r); err != nil {
		return
	}
	if p.Y, err = ReadDouble(r); err != nil {
		return
	}
	if p.Z, err = ReadDouble(r); err != nil {
		return
	}
	if p.Yaw, err = ReadFloat(r); err != nil {
		return
	}
	if p.Pitch, err = ReadFloat(r); err != nil {
		return
	}
	if p.Flags, err = ReadByte(r); err != nil {
		return
	}
	if v.AtLeast(V1_12_2) {
		p.TeleportID, err = ReadVarInt(r)
	}
	return
}

// GameEventStartWaitingForChunks must be sent from 1.20.3 on, or the
// client stays on the loading screen.
const GameEventStartWaitingForChunks byte = 13

// @gen:r,w
type GameEvent struct {
	Event byte    `field:"Byte"`
	Value float32 `field:"Float"`
}
