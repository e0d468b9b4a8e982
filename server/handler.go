package server

import (
	"fmt"
	"time"

	"github.com/gstoney/mclimbo/packet"
)

const (
	reasonUnsupported = "Unsupported client version"
	reasonFull        = "The server is full"
)

// handle runs on the reader goroutine of c. Which packet types can arrive
// is already gated by the decoder's state table; an error ends the
// connection.
func (s *Server) handle(c *Conn, p packet.Packet) error {
	switch p := p.(type) {
	case *packet.Handshake:
		return s.handleHandshake(c, p)

	case *packet.StatusRequest:
		return s.handleStatusRequest(c)
	case *packet.StatusPing:
		if err := c.Send(&packet.StatusPing{Payload: p.Payload}); err != nil {
			return err
		}
		return c.enqueue(op{kind: opClose})

	case *packet.LoginStart:
		return s.handleLoginStart(c, p)
	case *packet.LoginAcknowledged:
		return s.startConfiguration(c)
	case *packet.LoginPluginResponse:
		c.log.Debugw("ignoring login plugin response", "message", p.MessageID)

	case *packet.ClientInformation:
		c.mu.Lock()
		c.locale = p.Locale
		c.mu.Unlock()
	case *packet.KnownPacks:
		return s.handleKnownPacks(c, p)
	case *packet.AcknowledgeFinishConfiguration:
		if err := c.switchState(packet.Play); err != nil {
			return err
		}
		return s.join(c)

	case *packet.PluginMessage:
		s.handlePluginMessage(c, p)
	case *packet.KeepAlive:
		c.keepAliveReceived(p.ID, time.Now())

	default:
		c.log.Debugw("unhandled packet", "type", fmt.Sprintf("%T", p))
	}
	return nil
}

func (s *Server) handleHandshake(c *Conn, p *packet.Handshake) error {
	c.mu.Lock()
	c.protocol = p.ProtocolVersion
	c.serverAddr = p.ServerAddr
	c.serverPort = p.ServerPort
	c.mu.Unlock()

	if err := c.setVersion(packet.Closest(p.ProtocolVersion)); err != nil {
		return err
	}

	switch p.NextState {
	case packet.IntentStatus:
		return c.switchState(packet.Status)
	case packet.IntentLogin, packet.IntentTransfer:
		return c.switchState(packet.Login)
	}
	return fmt.Errorf("invalid handshake intent %d", p.NextState)
}

func (s *Server) handleStatusRequest(c *Conn) error {
	b, err := s.status(c.ctx, c.Protocol())
	if err != nil {
		return err
	}
	return c.Send(&packet.StatusResponse{Response: string(b)})
}

func (s *Server) handleLoginStart(c *Conn, p *packet.LoginStart) error {
	if c.loginStarted {
		c.log.Debugw("ignoring repeated login start")
		return nil
	}
	c.loginStarted = true

	if !s.cfg.Accepts(packet.Version(c.Protocol())) {
		c.log.Infow("rejected unsupported client", "protocol", c.Protocol(), "name", p.Name)
		return c.Disconnect(reasonUnsupported)
	}
	if !s.conns.TryReserve(c, s.cfg.MaxPlayers) {
		c.log.Infow("rejected player, server full", "name", p.Name)
		return c.Disconnect(reasonFull)
	}

	id := OfflineUUID(p.Name)
	c.mu.Lock()
	c.name = p.Name
	c.playerUUID = id
	c.mu.Unlock()

	if t := s.cfg.CompressionThreshold; t >= 0 {
		if err := c.enableCompression(t); err != nil {
			return err
		}
	}

	v := c.Version()
	if err := c.Send(&packet.LoginSuccess{UUID: id, Username: p.Name}); err != nil {
		return err
	}
	if v.HasConfiguration() {
		// The client confirms with LoginAcknowledged.
		return nil
	}
	if err := c.switchState(packet.Play); err != nil {
		return err
	}
	return s.join(c)
}

func (s *Server) handlePluginMessage(c *Conn, p *packet.PluginMessage) {
	if p.Channel != "minecraft:brand" && p.Channel != "MC|Brand" {
		return
	}
	r := packet.NewFrameReader(p.Data)
	brand, err := packet.ReadString(&r, packet.MaxStringLength)
	if err != nil {
		c.log.Debugw("bad client brand", "error", err)
		return
	}
	c.mu.Lock()
	c.clientBrand = brand
	c.mu.Unlock()
	c.log.Debugw("client brand", "brand", brand)
}
