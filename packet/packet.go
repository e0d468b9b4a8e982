//go:generate go run ../codegen/gen_packet_codec.go -- .
package packet

import (
	"encoding/json"
	"io"
)

// Packet is one protocol message. The byte layout may depend on the
// negotiated Version; ids are assigned by a Registry, not by the packet.
//
// Implementations use a value receiver for Encode and a pointer receiver
// for Decode, so only pointers satisfy Packet.
type Packet interface {
	Encode(w io.Writer, v Version) error
	Decode(r *FrameReader, v Version) error
}

type textComponent struct {
	Text string `json:"text"`
}

// writeText writes a plain chat message as a JSON text component, or as an
// NBT compound from 1.20.3 on.
func writeText(w io.Writer, v Version, text string) error {
	if v.AtLeast(V1_20_3) {
		return WriteNBT(w, Compound{{Name: "text", Value: String(text)}}, true)
	}
	b, err := json.Marshal(textComponent{Text: text})
	if err != nil {
		return err
	}
	return WriteString(w, string(b))
}

func readText(r *FrameReader, v Version) (string, error) {
	if v.AtLeast(V1_20_3) {
		t, err := ReadNBT(r, true)
		if err != nil {
			return "", err
		}
		return textFromNBT(t), nil
	}
	s, err := ReadString(r, MaxStringLength)
	if err != nil {
		return "", err
	}
	return textFromJSON(s), nil
}

func readJSONText(r *FrameReader) (string, error) {
	s, err := ReadString(r, MaxStringLength)
	if err != nil {
		return "", err
	}
	return textFromJSON(s), nil
}

func writeJSONText(w io.Writer, text string) error {
	b, err := json.Marshal(textComponent{Text: text})
	if err != nil {
		return err
	}
	return WriteString(w, string(b))
}

func textFromJSON(s string) string {
	var c textComponent
	if err := json.Unmarshal([]byte(s), &c); err == nil {
		return c.Text
	}
	var plain string
	if err := json.Unmarshal([]byte(s), &plain); err == nil {
		return plain
	}
	return s
}

func textFromNBT(t Tag) string {
	switch t := t.(type) {
	case String:
		return string(t)
	case Compound:
		if s, ok := t.Get("text"); ok {
			if s, ok := s.(String); ok {
				return string(s)
			}
		}
	}
	return ""
}
