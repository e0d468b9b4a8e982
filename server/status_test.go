package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gstoney/mclimbo/config"
	"github.com/gstoney/mclimbo/packet"
	"github.com/gstoney/mclimbo/world"
)

type errWaker struct{}

func (errWaker) Wake(context.Context) error             { return nil }
func (errWaker) Status(context.Context) (string, error) { return "", errors.New("no credentials") }

func TestStatus(t *testing.T) {
	tests := []struct {
		name       string
		maxPlayers int
		players    int
		opts       []Option
		wantMax    int
		wantMOTD   string
	}{
		{name: "limited", maxPlayers: 20, players: 2, wantMax: 20, wantMOTD: "limbo"},
		{name: "unlimited", maxPlayers: -1, players: 3, wantMax: 4, wantMOTD: "limbo"},
		{name: "backend running", maxPlayers: 5, opts: []Option{WithWaker(&fakeWaker{status: "running"})}, wantMax: 5, wantMOTD: "limbo"},
		{name: "backend pending", maxPlayers: 5, opts: []Option{WithWaker(&fakeWaker{status: "pending"})}, wantMax: 5, wantMOTD: "limbo\nBackend: pending"},
		{name: "backend unavailable", maxPlayers: 5, opts: []Option{WithWaker(errWaker{})}, wantMax: 5, wantMOTD: "limbo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.MOTD = "limbo"
			cfg.MaxPlayers = tt.maxPlayers
			w, _ := world.NewBuiltin(world.Overworld)
			s := New(cfg, testRegistry, w, tt.opts...)

			for i := range tt.players {
				c, _ := newPipeConn(t, uint64(i+1), 4)
				c.loggedIn.Store(true)
				s.conns.Register(c)
			}

			b, err := s.status(context.Background(), int32(packet.V1_20_2))
			if err != nil {
				t.Fatalf("status: %v", err)
			}
			var got StatusResponse
			if err := json.Unmarshal(b, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got.Players.Max != tt.wantMax || got.Players.Online != tt.players {
				t.Errorf("players = %+v", got.Players)
			}
			if got.Description.Text != tt.wantMOTD {
				t.Errorf("description = %q, want %q", got.Description.Text, tt.wantMOTD)
			}
			if got.Version.Protocol != int32(packet.V1_20_2) {
				t.Errorf("protocol = %d", got.Version.Protocol)
			}
		})
	}
}
