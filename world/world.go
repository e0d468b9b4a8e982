// Package world supplies the dimension data a client needs to finish joining.
package world

import (
	"fmt"

	"github.com/gstoney/mclimbo/packet"
)

// Dimension is one of the three vanilla dimensions.
type Dimension string

const (
	Overworld Dimension = "overworld"
	Nether    Dimension = "the_nether"
	End       Dimension = "the_end"
)

// Key returns the namespaced identifier, e.g. minecraft:overworld.
func (d Dimension) Key() string {
	return "minecraft:" + string(d)
}

// LegacyID is the integer dimension id used by 1.8 and 1.12.2.
func (d Dimension) LegacyID() int32 {
	switch d {
	case Nether:
		return -1
	case End:
		return 1
	}
	return 0
}

func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(s); d {
	case Overworld, Nether, End:
		return d, nil
	}
	return "", fmt.Errorf("world: unknown dimension %q", s)
}

// JoinPayload is everything version dependent the join sequence sends.
// Which fields are set depends on the version it was built for.
type JoinPayload struct {
	Dimension Dimension
	// World name sent in JoinGame, e.g. minecraft:overworld.
	WorldName string

	// Registry codec, 1.16.5 to 1.20.4.
	Codec packet.Compound
	// Dimension type element, 1.16.5 only.
	DimensionElement packet.Compound
	// Index of Dimension in the dimension_type registry, 1.21.
	DimensionTypeID int32

	// Per-registry data and the packs the entries come from, 1.21.
	Registries []packet.RegistryData
	KnownPacks []packet.KnownPack
}

// Provider returns the join payload for a protocol version. Payloads are
// shared between connections and must not be modified.
type Provider interface {
	JoinPayload(v packet.Version) (*JoinPayload, error)
}

const (
	dimensionTypeRegistry = "minecraft:dimension_type"
	biomeRegistry         = "minecraft:worldgen/biome"
	chatTypeRegistry      = "minecraft:chat_type"
	damageTypeRegistry    = "minecraft:damage_type"
)

// fromCodec fills a payload from a codec compound of the shape
// {registry: {type, value: [{name, id, element}]}}.
func fromCodec(v packet.Version, dim Dimension, codec packet.Compound) (*JoinPayload, error) {
	p := &JoinPayload{
		Dimension: dim,
		WorldName: dim.Key(),
	}

	if v.Before(packet.V1_16_5) {
		return p, nil
	}

	entries, err := registryEntries(codec, dimensionTypeRegistry)
	if err != nil {
		return nil, err
	}
	index := -1
	for i, e := range entries {
		if e.ID == dim.Key() {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("world: %s has no %s entry", dimensionTypeRegistry, dim.Key())
	}

	switch {
	case v.Before(packet.V1_20):
		p.Codec = codec
		if elem, ok := entries[index].Data.Item.(packet.Compound); ok {
			p.DimensionElement = elem
		}
	case v.Before(packet.V1_21):
		p.Codec = codec
	default:
		p.DimensionTypeID = int32(index)
		for _, e := range codec {
			rd, err := registryData(codec, e.Name)
			if err != nil {
				return nil, err
			}
			p.Registries = append(p.Registries, rd)
		}
	}
	return p, nil
}

func registryData(codec packet.Compound, registry string) (packet.RegistryData, error) {
	entries, err := registryEntries(codec, registry)
	if err != nil {
		return packet.RegistryData{}, err
	}
	return packet.RegistryData{RegistryID: registry, Entries: entries}, nil
}

func registryEntries(codec packet.Compound, registry string) ([]packet.RegistryEntry, error) {
	t, ok := codec.Get(registry)
	if !ok {
		return nil, fmt.Errorf("world: codec has no %s registry", registry)
	}
	reg, ok := t.(packet.Compound)
	if !ok {
		return nil, fmt.Errorf("world: %s is not a compound", registry)
	}
	t, ok = reg.Get("value")
	if !ok {
		return nil, fmt.Errorf("world: %s has no value list", registry)
	}
	list, ok := t.(packet.List)
	if !ok {
		return nil, fmt.Errorf("world: %s value is not a list", registry)
	}

	entries := make([]packet.RegistryEntry, 0, len(list.Items))
	for _, item := range list.Items {
		c, ok := item.(packet.Compound)
		if !ok {
			return nil, fmt.Errorf("world: %s entry is not a compound", registry)
		}
		name, _ := c.Get("name")
		s, ok := name.(packet.String)
		if !ok {
			return nil, fmt.Errorf("world: %s entry without a name", registry)
		}
		e := packet.RegistryEntry{ID: string(s)}
		if elem, ok := c.Get("element"); ok {
			e.Data = packet.Some(elem)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
