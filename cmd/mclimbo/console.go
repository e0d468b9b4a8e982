package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/gstoney/mclimbo/server"
)

// console reads operator commands line by line.
type console struct {
	in   io.Reader
	out  io.Writer
	srv  *server.Server
	stop func()
}

func newConsole(in io.Reader, out io.Writer, srv *server.Server, stop func()) *console {
	return &console{in: in, out: out, srv: srv, stop: stop}
}

func (c *console) run(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if c.exec(strings.TrimSpace(line)) {
				return
			}
		}
	}
}

// exec runs one command and reports whether the console should stop.
func (c *console) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "help":
		fmt.Fprintln(c.out, "commands: conn, kick <id> [reason], mem, version, stop, help")
	case "conn":
		conns := c.srv.Connections()
		fmt.Fprintf(c.out, "%d connections, %d players\n", conns.Len(), conns.Players())
		conns.ForEach(func(conn *server.Conn) {
			info := conn.Info()
			fmt.Fprintf(c.out, "  #%d %-21s %-13s %-8s %s\n",
				info.ID, info.Remote, info.State, info.Version, info.Name)
		})
	case "kick":
		if len(fields) < 2 {
			fmt.Fprintln(c.out, "usage: kick <id> [reason]")
			return false
		}
		var id uint64
		if _, err := fmt.Sscan(fields[1], &id); err != nil {
			fmt.Fprintln(c.out, "bad id:", fields[1])
			return false
		}
		conn, ok := c.srv.Connections().Get(id)
		if !ok {
			fmt.Fprintln(c.out, "no such connection")
			return false
		}
		reason := "Kicked"
		if len(fields) > 2 {
			reason = strings.Join(fields[2:], " ")
		}
		if err := conn.Disconnect(reason); err != nil {
			fmt.Fprintln(c.out, "kick failed:", err)
		}
	case "mem":
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		fmt.Fprintf(c.out, "heap %d MiB, sys %d MiB, goroutines %d, gc %d\n",
			m.HeapAlloc>>20, m.Sys>>20, runtime.NumGoroutine(), m.NumGC)
	case "version":
		fmt.Fprintf(c.out, "mclimbo %s (%s)\n", version, commit)
	case "stop":
		fmt.Fprintln(c.out, "stopping at", time.Now().Format("15:04:05"))
		c.stop()
		return true
	default:
		fmt.Fprintf(c.out, "unknown command %q, try help\n", fields[0])
	}
	return false
}
