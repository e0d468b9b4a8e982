package world

import (
	"fmt"
	"strings"

	"github.com/gstoney/mclimbo/packet"
)

// Builtin generates a minimal registry codec for every supported version.
// It is enough for an empty void world; Dir serves vanilla dumps instead.
type Builtin struct {
	payloads map[packet.Version]*JoinPayload
}

func NewBuiltin(dim Dimension) (*Builtin, error) {
	b := &Builtin{payloads: make(map[packet.Version]*JoinPayload)}
	for _, v := range packet.Versions() {
		p, err := builtinPayload(v, dim)
		if err != nil {
			return nil, fmt.Errorf("builtin %s: %w", v, err)
		}
		b.payloads[v] = p
	}
	return b, nil
}

func (b *Builtin) JoinPayload(v packet.Version) (*JoinPayload, error) {
	p, ok := b.payloads[v]
	if !ok {
		return nil, fmt.Errorf("world: no payload for %s", v)
	}
	return p, nil
}

// CorePack is the vanilla data pack 1.21 clients ship with.
var CorePack = packet.KnownPack{Namespace: "minecraft", ID: "core", Version: "1.21"}

func builtinPayload(v packet.Version, dim Dimension) (*JoinPayload, error) {
	if v.AtLeast(packet.V1_21) {
		p, err := fromCodec(v, dim, knownPackCodec())
		if err != nil {
			return nil, err
		}
		p.KnownPacks = []packet.KnownPack{CorePack}
		return p, nil
	}
	return fromCodec(v, dim, builtinCodec(v))
}

var dimensions = []Dimension{Overworld, Nether, End}

func builtinCodec(v packet.Version) packet.Compound {
	if v.Before(packet.V1_16_5) {
		return nil
	}

	dimTypes := make([]packet.Compound, len(dimensions))
	for i, d := range dimensions {
		dimTypes[i] = dimensionTypeElement(v, d)
	}
	codec := packet.Compound{
		registry(dimensionTypeRegistry, dimensionNames(), dimTypes),
		registry(biomeRegistry, []string{"minecraft:plains"}, []packet.Compound{plainsElement(v)}),
	}
	if v.Before(packet.V1_20) {
		return codec
	}

	damageNames := damageTypes(v)
	damage := make([]packet.Compound, len(damageNames))
	for i, name := range damageNames {
		damage[i] = packet.Compound{
			{Name: "message_id", Value: packet.String(messageID(name))},
			{Name: "scaling", Value: packet.String("when_caused_by_living_non_player")},
			{Name: "exhaustion", Value: packet.Float(0.1)},
		}
	}
	return append(codec,
		registry(chatTypeRegistry, []string{"minecraft:chat"}, []packet.Compound{chatElement()}),
		registry(damageTypeRegistry, damageNames, damage),
	)
}

// knownPackCodec lists entries without elements; the client takes the data
// from CorePack.
func knownPackCodec() packet.Compound {
	return packet.Compound{
		registry(dimensionTypeRegistry, dimensionNames(), nil),
		registry(biomeRegistry, []string{"minecraft:plains"}, nil),
		registry(chatTypeRegistry, []string{"minecraft:chat"}, nil),
		registry(damageTypeRegistry, damageTypes(packet.V1_21), nil),
		registry("minecraft:painting_variant", []string{"minecraft:kebab"}, nil),
		registry("minecraft:wolf_variant", []string{"minecraft:pale"}, nil),
		registry("minecraft:trim_pattern", nil, nil),
		registry("minecraft:trim_material", nil, nil),
		registry("minecraft:banner_pattern", nil, nil),
		registry("minecraft:enchantment", nil, nil),
		registry("minecraft:jukebox_song", nil, nil),
	}
}

func dimensionNames() []string {
	names := make([]string, len(dimensions))
	for i, d := range dimensions {
		names[i] = d.Key()
	}
	return names
}

// registry builds {type, value: [{name, id, element}]}. A nil elements
// slice leaves every element out.
func registry(name string, entries []string, elements []packet.Compound) packet.NamedTag {
	items := make([]packet.Tag, len(entries))
	for i, entry := range entries {
		c := packet.Compound{
			{Name: "name", Value: packet.String(entry)},
			{Name: "id", Value: packet.Int(i)},
		}
		if elements != nil {
			c = append(c, packet.NamedTag{Name: "element", Value: elements[i]})
		}
		items[i] = c
	}
	return packet.NamedTag{
		Name: name,
		Value: packet.Compound{
			{Name: "type", Value: packet.String(name)},
			{Name: "value", Value: packet.List{Elem: packet.TagCompound, Items: items}},
		},
	}
}

type dimensionType struct {
	piglinSafe, natural, respawnAnchor, skylight, bed, raids, ultrawarm, ceiling bool

	ambientLight    float32
	coordinateScale float64
	infiniburn      string
	fixedTime       int64
	minY, height    int32
	logicalHeight   int32
}

var dimensionTypes = map[Dimension]dimensionType{
	Overworld: {
		natural: true, skylight: true, bed: true, raids: true,
		coordinateScale: 1, infiniburn: "infiniburn_overworld",
		fixedTime: -1, minY: -64, height: 384, logicalHeight: 384,
	},
	Nether: {
		piglinSafe: true, respawnAnchor: true, ultrawarm: true, ceiling: true,
		ambientLight: 0.1, coordinateScale: 8, infiniburn: "infiniburn_nether",
		fixedTime: 18000, height: 256, logicalHeight: 128,
	},
	End: {
		raids: true, coordinateScale: 1, infiniburn: "infiniburn_end",
		fixedTime: 6000, height: 256, logicalHeight: 256,
	},
}

func boolByte(b bool) packet.Byte {
	if b {
		return 1
	}
	return 0
}

func dimensionTypeElement(v packet.Version, d Dimension) packet.Compound {
	t := dimensionTypes[d]

	// Tags became #-prefixed with 1.18.2.
	infiniburn := "minecraft:" + t.infiniburn
	logicalHeight := t.logicalHeight
	if v.Before(packet.V1_20) {
		logicalHeight = min(logicalHeight, 256)
	} else {
		infiniburn = "#" + infiniburn
	}

	c := packet.Compound{
		{Name: "piglin_safe", Value: boolByte(t.piglinSafe)},
		{Name: "natural", Value: boolByte(t.natural)},
		{Name: "ambient_light", Value: packet.Float(t.ambientLight)},
		{Name: "infiniburn", Value: packet.String(infiniburn)},
		{Name: "respawn_anchor_works", Value: boolByte(t.respawnAnchor)},
		{Name: "has_skylight", Value: boolByte(t.skylight)},
		{Name: "bed_works", Value: boolByte(t.bed)},
		{Name: "effects", Value: packet.String(d.Key())},
		{Name: "has_raids", Value: boolByte(t.raids)},
		{Name: "logical_height", Value: packet.Int(logicalHeight)},
		{Name: "coordinate_scale", Value: packet.Double(t.coordinateScale)},
		{Name: "ultrawarm", Value: boolByte(t.ultrawarm)},
		{Name: "has_ceiling", Value: boolByte(t.ceiling)},
	}
	if t.fixedTime >= 0 {
		c = append(c, packet.NamedTag{Name: "fixed_time", Value: packet.Long(t.fixedTime)})
	}
	if v.AtLeast(packet.V1_20) {
		c = append(c,
			packet.NamedTag{Name: "min_y", Value: packet.Int(t.minY)},
			packet.NamedTag{Name: "height", Value: packet.Int(t.height)},
			packet.NamedTag{Name: "monster_spawn_light_level", Value: packet.Int(0)},
			packet.NamedTag{Name: "monster_spawn_block_light_limit", Value: packet.Int(0)},
		)
	}
	return c
}

func plainsElement(v packet.Version) packet.Compound {
	effects := packet.Compound{
		{Name: "sky_color", Value: packet.Int(7907327)},
		{Name: "water_fog_color", Value: packet.Int(329011)},
		{Name: "fog_color", Value: packet.Int(12638463)},
		{Name: "water_color", Value: packet.Int(4159204)},
	}
	if v.Before(packet.V1_20) {
		return packet.Compound{
			{Name: "precipitation", Value: packet.String("rain")},
			{Name: "depth", Value: packet.Float(0.125)},
			{Name: "temperature", Value: packet.Float(0.8)},
			{Name: "scale", Value: packet.Float(0.05)},
			{Name: "downfall", Value: packet.Float(0.4)},
			{Name: "category", Value: packet.String("plains")},
			{Name: "effects", Value: effects},
		}
	}
	return packet.Compound{
		{Name: "has_precipitation", Value: packet.Byte(1)},
		{Name: "temperature", Value: packet.Float(0.8)},
		{Name: "downfall", Value: packet.Float(0.4)},
		{Name: "effects", Value: effects},
	}
}

func chatElement() packet.Compound {
	params := packet.List{Elem: packet.TagString, Items: []packet.Tag{packet.String("sender"), packet.String("content")}}
	return packet.Compound{
		{Name: "chat", Value: packet.Compound{
			{Name: "translation_key", Value: packet.String("chat.type.text")},
			{Name: "parameters", Value: params},
		}},
		{Name: "narration", Value: packet.Compound{
			{Name: "translation_key", Value: packet.String("chat.type.text.narrate")},
			{Name: "parameters", Value: params},
		}},
	}
}

// Damage types the client expects, with the version that added them.
var damageTypeSince = []struct {
	name  string
	since packet.Version
}{
	{"arrow", packet.V1_20},
	{"bad_respawn_point", packet.V1_20},
	{"cactus", packet.V1_20},
	{"campfire", packet.V1_21},
	{"cramming", packet.V1_20},
	{"dragon_breath", packet.V1_20},
	{"drown", packet.V1_20},
	{"dry_out", packet.V1_20},
	{"explosion", packet.V1_20},
	{"fall", packet.V1_20},
	{"falling_anvil", packet.V1_20},
	{"falling_block", packet.V1_20},
	{"falling_stalactite", packet.V1_20},
	{"fireball", packet.V1_20},
	{"fireworks", packet.V1_20},
	{"fly_into_wall", packet.V1_20},
	{"freeze", packet.V1_20},
	{"generic", packet.V1_20},
	{"generic_kill", packet.V1_20},
	{"hot_floor", packet.V1_20},
	{"in_fire", packet.V1_20},
	{"in_wall", packet.V1_20},
	{"indirect_magic", packet.V1_20},
	{"lava", packet.V1_20},
	{"lightning_bolt", packet.V1_20},
	{"magic", packet.V1_20},
	{"mob_attack", packet.V1_20},
	{"mob_attack_no_aggro", packet.V1_20},
	{"mob_projectile", packet.V1_20},
	{"on_fire", packet.V1_20},
	{"out_of_world", packet.V1_20},
	{"outside_border", packet.V1_20},
	{"player_attack", packet.V1_20},
	{"player_explosion", packet.V1_20},
	{"sonic_boom", packet.V1_20},
	{"spit", packet.V1_21},
	{"stalagmite", packet.V1_20},
	{"starve", packet.V1_20},
	{"sting", packet.V1_20},
	{"sweet_berry_bush", packet.V1_20},
	{"thorns", packet.V1_20},
	{"thrown", packet.V1_20},
	{"trident", packet.V1_20},
	{"unattributed_fireball", packet.V1_20},
	{"wind_charge", packet.V1_21},
	{"wither", packet.V1_20},
	{"wither_skull", packet.V1_20},
}

func damageTypes(v packet.Version) []string {
	var names []string
	for _, d := range damageTypeSince {
		if v.AtLeast(d.since) {
			names = append(names, "minecraft:"+d.name)
		}
	}
	return names
}

// messageID turns minecraft:falling_anvil into fallingAnvil.
func messageID(key string) string {
	parts := strings.Split(strings.TrimPrefix(key, "minecraft:"), "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
