package main

import (
	"errors"
	"net/netip"

	"github.com/puyokura/housechat/model"
)

var (
	// ErrConnect - the TCP connection to the relay could not be established.
	ErrConnect = errors.New("connect failed")

	// ErrChannelSend - an action could not be handed to the network task.
	ErrChannelSend = errors.New("action channel full")

	// ErrServerClosed - the relay ended the connection.
	ErrServerClosed = errors.New("Server closed connection")

	// ErrNotConnected - a chat message was sent without a connection.
	ErrNotConnected = errors.New("not connected")

	// ErrEventsClosed - the event channel was closed while the multiplexer was running.
	ErrEventsClosed = errors.New("event channel closed")
)

// Event is an input to the multiplexer.
type Event interface {
	isEvent()
}

// TickEvent drives animations.
type TickEvent struct{}

// KeyEvent is one key press from the terminal.
type KeyEvent struct {
	Key Key
}

// ServerFoundEvent carries the relay address found by discovery.
type ServerFoundEvent struct {
	Addr netip.AddrPort
}

// ConnectedEvent carries the first line the relay sent after sign-in.
type ConnectedEvent struct {
	Welcome model.Message
}

// ServerMessageEvent is any later line from the relay.
type ServerMessageEvent struct {
	Message model.Message
}

// ErrorEvent reports a failure from the network or discovery side.
type ErrorEvent struct {
	Err error
}

// actionFailed is fed back by the multiplexer when an action could not be delivered.
type actionFailed struct {
	Action Action
	Err    error
}

func (TickEvent) isEvent()          {}
func (KeyEvent) isEvent()           {}
func (ServerFoundEvent) isEvent()   {}
func (ConnectedEvent) isEvent()     {}
func (ServerMessageEvent) isEvent() {}
func (ErrorEvent) isEvent()         {}
func (actionFailed) isEvent()       {}

// Action is a request from the multiplexer to the network task.
type Action interface {
	isAction()
}

// DiscoverAction starts one discovery probe.
type DiscoverAction struct{}

// ConnectAction opens a connection and signs in.
type ConnectAction struct {
	Addr        netip.AddrPort
	Credentials model.Credentials
}

// SendAction sends one chat line.
type SendAction struct {
	Text string
}

// DisconnectAction closes the connection and stops the network task.
type DisconnectAction struct{}

func (DiscoverAction) isAction()   {}
func (ConnectAction) isAction()    {}
func (SendAction) isAction()       {}
func (DisconnectAction) isAction() {}

type KeyCode int

const (
	KeyRune KeyCode = iota
	KeyEnter
	KeyBackspace
	KeyTab
	KeyEsc
)

// Key is a terminal-independent key press.
type Key struct {
	Code KeyCode
	Rune rune // Set for KeyRune
	Ctrl bool
}

func isCtrlC(k Key) bool {
	return k.Ctrl && k.Code == KeyRune && (k.Rune == 'c' || k.Rune == 'C')
}
