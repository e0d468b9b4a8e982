package packet

import "io"

// @gen:r,w
type StatusRequest struct{}

// StatusPing is both the serverbound ping and the clientbound pong.
//
// @gen:r,w
type StatusPing struct {
	Payload int64 `field:"Long"`
}

// StatusResponse carries the server list JSON document.
type StatusResponse struct {
	Response string
}

func (p StatusResponse) Encode(w io.Writer, v Version) error {
	return WriteString(w, p.Response)
}

func (p *StatusResponse) Decode(r *FrameReader, v Version) (err error) {
	p.Response, err = ReadString(r, MaxStringLength)
	return
}
