package server

import (
	"fmt"
	"slices"
	"time"

	"github.com/gstoney/mclimbo/packet"
	"github.com/gstoney/mclimbo/world"
)

const reasonMissingPacks = "Your client lacks the data packs this server relies on"

// loadPayload fetches the world payload for the connection's version once.
func (s *Server) loadPayload(c *Conn) (*world.JoinPayload, error) {
	if c.payload != nil {
		return c.payload, nil
	}
	p, err := s.world.JoinPayload(c.Version())
	if err != nil {
		return nil, fmt.Errorf("join payload for %s: %w", c.Version(), err)
	}
	c.payload = p
	return p, nil
}

// startConfiguration runs after the client acknowledges login on versions
// with a configuration phase.
func (s *Server) startConfiguration(c *Conn) error {
	if err := c.switchState(packet.Configuration); err != nil {
		return err
	}
	v := c.Version()
	if err := c.Send(packet.BrandMessage(v, s.cfg.Brand)); err != nil {
		return err
	}

	p, err := s.loadPayload(c)
	if err != nil {
		return err
	}
	if len(p.KnownPacks) > 0 {
		// Registries follow once the client answers with its own packs.
		return c.Send(&packet.KnownPacks{Packs: p.KnownPacks})
	}
	return s.finishConfiguration(c, p)
}

func (s *Server) handleKnownPacks(c *Conn, reply *packet.KnownPacks) error {
	p, err := s.loadPayload(c)
	if err != nil {
		return err
	}
	if len(p.KnownPacks) == 0 {
		c.log.Debugw("unexpected known packs", "packs", reply.Packs)
		return nil
	}
	if !knowsAll(reply.Packs, p.KnownPacks) && needsPacks(p.Registries) {
		c.log.Infow("client lacks known packs", "want", p.KnownPacks, "got", reply.Packs)
		return c.Disconnect(reasonMissingPacks)
	}
	return s.finishConfiguration(c, p)
}

func (s *Server) finishConfiguration(c *Conn, p *world.JoinPayload) error {
	if c.Version().Before(packet.V1_21) {
		if err := c.Send(&packet.RegistryData{Codec: p.Codec}); err != nil {
			return err
		}
	} else {
		for i := range p.Registries {
			if err := c.Send(&p.Registries[i]); err != nil {
				return err
			}
		}
	}
	return c.Send(&packet.FinishConfiguration{})
}

func knowsAll(have, want []packet.KnownPack) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

// needsPacks reports whether any entry relies on a known pack for its data.
func needsPacks(regs []packet.RegistryData) bool {
	for _, r := range regs {
		for _, e := range r.Entries {
			if !e.Data.Exists {
				return true
			}
		}
	}
	return false
}

// join sends the play sequence that puts the player at the spawn point.
// The connection is already in Play.
func (s *Server) join(c *Conn) error {
	p, err := s.loadPayload(c)
	if err != nil {
		return err
	}
	v := c.Version()
	w := s.cfg.World

	jg := &packet.JoinGame{
		GameMode:            byte(w.GameMode),
		PreviousGameMode:    -1,
		LegacyDimension:     p.Dimension.LegacyID(),
		LevelType:           "flat",
		WorldNames:          []string{p.WorldName},
		Codec:               p.Codec,
		Dimension:           p.DimensionElement,
		DimensionType:       p.Dimension.Key(),
		DimensionTypeID:     p.DimensionTypeID,
		WorldName:           p.WorldName,
		MaxPlayers:          int32(max(s.cfg.MaxPlayers, 0)),
		ViewDistance:        2,
		SimulationDistance:  2,
		ReducedDebugInfo:    true,
		EnableRespawnScreen: true,
		IsFlat:              true,
	}
	if v.Before(packet.V1_16_5) && jg.MaxPlayers > 255 {
		jg.MaxPlayers = 255
	}

	sends := []packet.Packet{jg}
	if !v.HasConfiguration() {
		sends = append(sends, packet.BrandMessage(v, s.cfg.Brand))
	}
	sends = append(sends,
		&packet.SpawnPosition{Location: packet.Position{
			X: int32(w.SpawnX), Y: int16(w.SpawnY), Z: int32(w.SpawnZ),
		}},
		&packet.PlayerPosition{
			X: w.SpawnX, Y: w.SpawnY, Z: w.SpawnZ,
			Yaw: w.Yaw, Pitch: w.Pitch,
			TeleportID: 1,
		},
	)
	if v.AtLeast(packet.V1_20_3) {
		sends = append(sends, &packet.GameEvent{Event: packet.GameEventStartWaitingForChunks})
	}
	for _, sp := range sends {
		if err := c.Send(sp); err != nil {
			return err
		}
	}

	c.lastKeepAlive.Store(time.Now().UnixNano())
	c.joined.Store(true)
	c.log.Infow("player joined", "name", c.Name(), "uuid", c.UUID(), "version", v)
	for _, l := range s.listeners {
		l.PlayerJoined(c)
	}
	return nil
}
