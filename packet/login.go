package packet

import (
	"fmt"
	"io"

	"github.com/google/uuid"
)

const maxUsernameLength = 16

// LoginStart opens the login sequence. PlayerUUID is absent before 1.20,
// optional on 1.20 and always present from 1.20.2.
type LoginStart struct {
	Name       string
	PlayerUUID Optional[uuid.UUID]
}

func (p LoginStart) Encode(w io.Writer, v Version) (err error) {
	if err = WriteString(w, p.Name); err != nil {
		return
	}
	switch {
	case v.AtLeast(V1_20_2):
		err = WriteUUID(w, p.PlayerUUID.Item)
	case v.AtLeast(V1_20):
		err = WriteOptional(w, p.PlayerUUID, WriteUUID)
	}
	return
}

func (p *LoginStart) Decode(r *FrameReader, v Version) (err error) {
	if p.Name, err = ReadString(r, maxUsernameLength); err != nil {
		return
	}
	switch {
	case v.AtLeast(V1_20_2):
		p.PlayerUUID.Exists = true
		p.PlayerUUID.Item, err = ReadUUID(r)
	case v.AtLeast(V1_20):
		p.PlayerUUID, err = ReadOptional(r, ReadUUID)
	}
	return
}

// LoginPluginResponse answers a login plugin request. Data is only present
// when Successful is set.
type LoginPluginResponse struct {
	MessageID  int32
	Successful bool
	Data       []byte
}

func (p LoginPluginResponse) Encode(w io.Writer, v Version) (err error) {
	if err = WriteVarInt(w, p.MessageID); err != nil {
		return
	}
	if err = WriteBoolean(w, p.Successful); err != nil {
		return
	}
	if p.Successful {
		_, err = w.Write(p.Data)
	}
	return
}

func (p *LoginPluginResponse) Decode(r *FrameReader, v Version) (err error) {
	if p.MessageID, err = ReadVarInt(r); err != nil {
		return
	}
	if p.Successful, err = ReadBoolean(r); err != nil {
		return
	}
	if p.Successful {
		p.Data = ReadRemaining(r)
	}
	return
}

// @gen:r,w
type LoginAcknowledged struct{}

// LoginDisconnect rejects a login. The reason is always JSON in this state.
type LoginDisconnect struct {
	Reason string
}

func (p LoginDisconnect) Encode(w io.Writer, v Version) error {
	return writeJSONText(w, p.Reason)
}

func (p *LoginDisconnect) Decode(r *FrameReader, v Version) (err error) {
	p.Reason, err = readJSONText(r)
	return
}

type GameProfileProperty struct {
	Name      string
	Value     string
	Signature Optional[string]
}

func writeGameProfileProperty(w io.Writer, v GameProfileProperty) (err error) {
	if err = WriteString(w, v.Name); err != nil {
		return
	}
	if err = WriteString(w, v.Value); err != nil {
		return
	}
	err = WriteOptional(w, v.Signature, WriteString)
	return
}

func readGameProfileProperty(r *FrameReader) (v GameProfileProperty, err error) {
	v.Name, err = ReadString(r, MaxStringLength)
	if err != nil {
		return
	}
	v.Value, err = ReadString(r, MaxStringLength)
	if err != nil {
		return
	}
	v.Signature, err = ReadOptional(r, stringReader(MaxStringLength))
	return
}

// LoginSuccess completes the login state. The UUID is a hyphenated string
// before 1.16; Properties exist from 1.19 and StrictErrHandling only on 1.21.
type LoginSuccess struct {
	UUID              uuid.UUID
	Username          string
	Properties        []GameProfileProperty
	StrictErrHandling bool
}

func (p LoginSuccess) Encode(w io.Writer, v Version) (err error) {
	if v.Before(V1_16_5) {
		err = WriteString(w, p.UUID.String())
	} else {
		err = WriteUUID(w, p.UUID)
	}
	if err != nil {
		return
	}
	if err = WriteString(w, p.Username); err != nil {
		return
	}
	if v.Before(V1_20) {
		return
	}
	if err = WritePrefixedArray(w, p.Properties, writeGameProfileProperty); err != nil {
		return
	}
	if v.AtLeast(V1_21) {
		err = WriteBoolean(w, p.StrictErrHandling)
	}
	return
}

func (p *LoginSuccess) Decode(r *FrameReader, v Version) (err error) {
	if v.Before(V1_16_5) {
		var s string
		if s, err = ReadString(r, 36); err != nil {
			return
		}
		if p.UUID, err = uuid.Parse(s); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedField, err)
		}
	} else if p.UUID, err = ReadUUID(r); err != nil {
		return
	}
	if p.Username, err = ReadString(r, maxUsernameLength); err != nil {
		return
	}
	if v.Before(V1_20) {
		return
	}
	if p.Properties, err = ReadPrefixedArray(r, readGameProfileProperty); err != nil {
		return
	}
	if v.AtLeast(V1_21) {
		p.StrictErrHandling, err = ReadBoolean(r)
	}
	return
}

// @gen:r,w
type SetCompression struct {
	Threshold int32 `field:"VarInt"`
}
