package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// console is the operator's stdin interface to a running relay.
type console struct {
	relay *Relay
	out   io.Writer
	stop  context.CancelFunc
}

// runConsole reads commands from in until it is exhausted, ctx ends or the operator types stop.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, relay *Relay, stop context.CancelFunc) {
	c := &console{relay: relay, out: out, stop: stop}
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "Server console ready. Type 'help' for commands.")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if !c.handle(scanner.Text()) {
			return
		}
	}
}

// handle executes one command line and reports whether the console should keep reading.
func (c *console) handle(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(c.out, "Available commands: who, kick <username>, broadcast <msg>, stop")
	case "who":
		sessions := c.relay.Sessions()
		if len(sessions) == 0 {
			fmt.Fprintln(c.out, "No active sessions.")
			return true
		}
		for _, s := range sessions {
			fmt.Fprintf(c.out, "%-16s %-22s %-9s since %s\n",
				s.Username, s.RemoteAddr, s.Transport, s.Since.Local().Format(time.TimeOnly))
		}
	case "kick":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "Usage: kick <username>")
			return true
		}
		if n := c.relay.Kick(args[0]); n > 0 {
			fmt.Fprintf(c.out, "Kicked %d session(s).\n", n)
		} else {
			fmt.Fprintln(c.out, "User not found.")
		}
	case "broadcast":
		if len(args) < 1 {
			fmt.Fprintln(c.out, "Usage: broadcast <message>")
			return true
		}
		if err := c.relay.Announce("[Admin] " + strings.Join(args, " ")); err != nil {
			fmt.Fprintln(c.out, "Error broadcasting:", err)
			return true
		}
		fmt.Fprintln(c.out, "Broadcast sent.")
	case "stop":
		fmt.Fprintln(c.out, "Stopping server...")
		c.stop()
		return false
	default:
		fmt.Fprintln(c.out, "Unknown command.")
	}
	return true
}
