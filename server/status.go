package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gstoney/mclimbo/packet"
)

type statusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type statusPlayers struct {
	Max    int `json:"max"`
	Online int `json:"online"`
}

type statusText struct {
	Text string `json:"text"`
}

// StatusResponse is the JSON document shown in the server list.
type StatusResponse struct {
	Version            statusVersion `json:"version"`
	Players            statusPlayers `json:"players"`
	Description        statusText    `json:"description"`
	EnforcesSecureChat bool          `json:"enforcesSecureChat"`
}

const wakeStatusTimeout = 2 * time.Second

// status builds the response for a client on protocol. Accepted clients get
// their own protocol echoed so they show as compatible.
func (s *Server) status(ctx context.Context, protocol int32) ([]byte, error) {
	resp := StatusResponse{
		Version: statusVersion{
			Name:     s.cfg.VersionName,
			Protocol: s.cfg.MaxProtocol,
		},
		Players: statusPlayers{
			Max:    s.cfg.MaxPlayers,
			Online: s.conns.Players(),
		},
		Description: statusText{Text: s.cfg.MOTD},
	}
	if s.cfg.Accepts(packet.Version(protocol)) {
		resp.Version.Protocol = protocol
	}
	if resp.Players.Max < 0 {
		resp.Players.Max = resp.Players.Online + 1
	}

	ctx, cancel := context.WithTimeout(ctx, wakeStatusTimeout)
	defer cancel()
	backend, err := s.waker.Status(ctx)
	if err != nil {
		s.log.Debugw("backend status unavailable", "error", err)
	} else if backend != "" && backend != "running" {
		resp.Description.Text += "\nBackend: " + backend
	}

	return json.Marshal(resp)
}
