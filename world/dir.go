package world

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gstoney/mclimbo/packet"
)

// Dir serves codecs dumped from a vanilla server. For each protocol it
// reads codec_<protocol>.nbt (plain or gzipped named NBT) from the
// directory and falls back to the builtin codec for missing files.
type Dir struct {
	fallback Provider
	payloads map[packet.Version]*JoinPayload
}

func NewDir(path string, dim Dimension, fallback Provider) (*Dir, error) {
	d := &Dir{
		fallback: fallback,
		payloads: make(map[packet.Version]*JoinPayload),
	}

	for _, v := range packet.Versions() {
		if v.Before(packet.V1_16_5) {
			continue
		}

		name := filepath.Join(path, fmt.Sprintf("codec_%d.nbt", v))
		codec, err := readCodecFile(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		p, err := fromCodec(v, dim, codec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if v.AtLeast(packet.V1_21) {
			p.KnownPacks = []packet.KnownPack{CorePack}
		}
		d.payloads[v] = p
	}
	return d, nil
}

// Loaded reports which versions are served from files.
func (d *Dir) Loaded() []packet.Version {
	var vs []packet.Version
	for _, v := range packet.Versions() {
		if _, ok := d.payloads[v]; ok {
			vs = append(vs, v)
		}
	}
	return vs
}

func (d *Dir) JoinPayload(v packet.Version) (*JoinPayload, error) {
	if p, ok := d.payloads[v]; ok {
		return p, nil
	}
	return d.fallback.JoinPayload(v)
}

func readCodecFile(name string) (packet.Compound, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}

	if len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		if b, err = io.ReadAll(zr); err != nil {
			return nil, err
		}
	}

	r := packet.NewFrameReader(b)
	t, err := packet.ReadNBT(&r, false)
	if err != nil {
		return nil, err
	}
	codec, ok := t.(packet.Compound)
	if !ok {
		return nil, errors.New("root tag is not a compound")
	}
	return codec, nil
}
