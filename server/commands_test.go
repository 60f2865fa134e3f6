package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestConsole(t *testing.T) {
	relay, _ := startRelay(t)
	bob := join(t, relay, "bob")

	var out bytes.Buffer
	stopped := false
	in := strings.NewReader("help\nwho\nbroadcast hello all\nkick\nkick ghost\nfrobnicate\n\nstop\nwho\n")
	runConsole(context.Background(), in, &out, relay, func() { stopped = true })

	if !stopped {
		t.Error("stop did not cancel the server")
	}
	text := out.String()
	for _, want := range []string{
		"Available commands",
		"bob",
		"Broadcast sent.",
		"Usage: kick <username>",
		"User not found.",
		"Unknown command.",
		"Stopping server...",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("console output missing %q:\n%s", want, text)
		}
	}
	if strings.Count(text, "bob") != 1 {
		t.Errorf("commands after stop were executed:\n%s", text)
	}

	if msg := bob.read(t); msg.Payload != "[Admin] hello all" {
		t.Errorf("broadcast payload = %q", msg.Payload)
	}
}

func TestConsole_KickAndWhoEmpty(t *testing.T) {
	relay, _ := startRelay(t)
	var out bytes.Buffer
	c := &console{relay: relay, out: &out, stop: func() {}}

	c.handle("who")
	if !strings.Contains(out.String(), "No active sessions.") {
		t.Errorf("who on empty relay: %q", out.String())
	}

	bob := join(t, relay, "bob")
	join(t, relay, "alice")
	bob.expect(t, "alice has joined the chat!")

	out.Reset()
	c.handle("kick alice")
	if !strings.Contains(out.String(), "Kicked 1 session(s).") {
		t.Errorf("kick output: %q", out.String())
	}
	bob.expect(t, "alice has left the chat!")
}
