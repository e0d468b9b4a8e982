package packet

// NewRegistry builds the packet table for every supported version.
func NewRegistry() (*Registry, error) {
	b := NewBuilder()
	registerHandshake(b)
	registerStatus(b)
	registerLogin(b)
	registerConfiguration(b)
	registerPlay(b)
	return b.Build()
}

// MustRegistry is NewRegistry for process start; it panics on a bad table.
func MustRegistry() *Registry {
	reg, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return reg
}

func registerHandshake(b *Builder) {
	b.Register(Handshaking, ServerBound, func() Packet { return &Handshake{} },
		Map(0x00, V1_8))
}

func registerStatus(b *Builder) {
	b.Register(Status, ServerBound, func() Packet { return &StatusRequest{} },
		Map(0x00, V1_8))
	b.Register(Status, ServerBound, func() Packet { return &StatusPing{} },
		Map(0x01, V1_8))

	b.Register(Status, ClientBound, func() Packet { return &StatusResponse{} },
		Map(0x00, V1_8))
	b.Register(Status, ClientBound, func() Packet { return &StatusPing{} },
		Map(0x01, V1_8))
}

func registerLogin(b *Builder) {
	b.Register(Login, ServerBound, func() Packet { return &LoginStart{} },
		Map(0x00, V1_8))
	b.Register(Login, ServerBound, func() Packet { return &LoginPluginResponse{} },
		Map(0x02, V1_16_5))
	b.Register(Login, ServerBound, func() Packet { return &LoginAcknowledged{} },
		Map(0x03, V1_20_2))

	b.Register(Login, ClientBound, func() Packet { return &LoginDisconnect{} },
		Map(0x00, V1_8))
	b.Register(Login, ClientBound, func() Packet { return &LoginSuccess{} },
		Map(0x02, V1_8))
	b.Register(Login, ClientBound, func() Packet { return &SetCompression{} },
		Map(0x03, V1_8))
}

func registerConfiguration(b *Builder) {
	b.Register(Configuration, ServerBound, func() Packet { return &ClientInformation{} },
		Map(0x00, V1_20_2))
	b.Register(Configuration, ServerBound, func() Packet { return &PluginMessage{} },
		Map(0x01, V1_20_2),
		Map(0x02, V1_21))
	b.Register(Configuration, ServerBound, func() Packet { return &AcknowledgeFinishConfiguration{} },
		Map(0x02, V1_20_2),
		Map(0x03, V1_21))
	b.Register(Configuration, ServerBound, func() Packet { return &KeepAlive{} },
		Map(0x03, V1_20_2),
		Map(0x04, V1_21))
	b.Register(Configuration, ServerBound, func() Packet { return &KnownPacks{} },
		Map(0x07, V1_21))

	b.Register(Configuration, ClientBound, func() Packet { return &PluginMessage{} },
		Map(0x00, V1_20_2),
		Map(0x01, V1_21))
	b.Register(Configuration, ClientBound, func() Packet { return &Disconnect{} },
		Map(0x01, V1_20_2),
		Map(0x02, V1_21))
	b.Register(Configuration, ClientBound, func() Packet { return &FinishConfiguration{} },
		Map(0x02, V1_20_2),
		Map(0x03, V1_21))
	b.Register(Configuration, ClientBound, func() Packet { return &KeepAlive{} },
		Map(0x03, V1_20_2),
		Map(0x04, V1_21))
	b.Register(Configuration, ClientBound, func() Packet { return &RegistryData{} },
		Map(0x05, V1_20_2),
		Map(0x07, V1_21))
	b.Register(Configuration, ClientBound, func() Packet { return &KnownPacks{} },
		Map(0x0E, V1_21))
}

func registerPlay(b *Builder) {
	b.Register(Play, ServerBound, func() Packet { return &KeepAlive{} },
		Map(0x00, V1_8),
		Map(0x0B, V1_12_2),
		Map(0x10, V1_16_5),
		Map(0x12, V1_20),
		Map(0x14, V1_20_2),
		Map(0x15, V1_20_3),
		Map(0x18, V1_21))
	b.Register(Play, ServerBound, func() Packet { return &PluginMessage{} },
		Map(0x17, V1_8),
		Map(0x09, V1_12_2),
		Map(0x0B, V1_16_5),
		Map(0x0D, V1_20),
		Map(0x0F, V1_20_2),
		Map(0x10, V1_20_3),
		Map(0x12, V1_21))

	b.Register(Play, ClientBound, func() Packet { return &KeepAlive{} },
		Map(0x00, V1_8),
		Map(0x1F, V1_12_2),
		Map(0x23, V1_20),
		Map(0x24, V1_20_2),
		Map(0x26, V1_21))
	b.Register(Play, ClientBound, func() Packet { return &JoinGame{} },
		Map(0x01, V1_8),
		Map(0x23, V1_12_2),
		Map(0x24, V1_16_5),
		Map(0x28, V1_20),
		Map(0x29, V1_20_2),
		Map(0x2B, V1_21))
	b.Register(Play, ClientBound, func() Packet { return &PlayerPosition{} },
		Map(0x08, V1_8),
		Map(0x2F, V1_12_2),
		Map(0x34, V1_16_5),
		Map(0x3C, V1_20),
		Map(0x3E, V1_20_2),
		Map(0x40, V1_21))
	b.Register(Play, ClientBound, func() Packet { return &Disconnect{} },
		Map(0x40, V1_8),
		Map(0x1A, V1_12_2),
		Map(0x19, V1_16_5),
		Map(0x1A, V1_20),
		Map(0x1B, V1_20_2),
		Map(0x1D, V1_21))
	b.Register(Play, ClientBound, func() Packet { return &PluginMessage{} },
		Map(0x3F, V1_8),
		Map(0x18, V1_12_2),
		Map(0x17, V1_16_5),
		Map(0x18, V1_20_2),
		Map(0x19, V1_21))
	b.Register(Play, ClientBound, func() Packet { return &SpawnPosition{} },
		Map(0x05, V1_8),
		Map(0x46, V1_12_2),
		Map(0x42, V1_16_5),
		Map(0x50, V1_20),
		Map(0x52, V1_20_2),
		Map(0x54, V1_20_3),
		Map(0x56, V1_21))
	b.Register(Play, ClientBound, func() Packet { return &GameEvent{} },
		Map(0x20, V1_20_3),
		Map(0x22, V1_21))
}
