package server

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/gstoney/mclimbo/packet"
)

const reasonTimedOut = "Timed out"

// KeepAlive pings every player in Play on a fixed period and evicts those
// that have not answered within the timeout. A zero timeout never evicts.
type KeepAlive struct {
	conns   *Connections
	period  time.Duration
	timeout time.Duration
	metrics *Metrics
	log     *zap.SugaredLogger

	now func() time.Time
}

func NewKeepAlive(conns *Connections, period, timeout time.Duration, metrics *Metrics, log *zap.SugaredLogger) *KeepAlive {
	return &KeepAlive{
		conns:   conns,
		period:  period,
		timeout: timeout,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// Run ticks until ctx is done.
func (k *KeepAlive) Run(ctx context.Context) error {
	t := time.NewTicker(k.period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			k.Tick()
		}
	}
}

// Tick sends one round of keep-alives and returns how many were queued.
// Connections that are not in Play are left alone.
func (k *KeepAlive) Tick() int {
	now := k.now()
	id := now.UnixMilli()

	sent := 0
	k.conns.ForEach(func(c *Conn) {
		if k.ping(c, now, id) {
			sent++
		}
	})
	return sent
}

// ping handles one connection. A panic here must not stop the scheduler.
func (k *KeepAlive) ping(c *Conn, now time.Time, id int64) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			k.log.Errorw("panic in keep-alive", "conn", c.ID(), "panic", r, "stack", string(debug.Stack()))
			sent = false
		}
	}()

	if c.State() != packet.Play || !c.joined.Load() || c.Closed() || c.disconnecting.Load() {
		return false
	}

	if k.timeout > 0 {
		if last := c.LastKeepAlive(); !last.IsZero() && now.Sub(last) > k.timeout {
			if c.Disconnect(reasonTimedOut) == nil {
				c.log.Infow("evicted unresponsive player", "name", c.Name(), "last_keep_alive", last)
				k.metrics.Evictions.Inc()
			}
			return false
		}
	}

	if err := c.SendKeepAlive(id); err != nil {
		c.log.Debugw("keep-alive not sent", "error", err)
		return false
	}
	k.metrics.KeepAlivesSent.Inc()
	return true
}
