package main

import (
	"errors"
	"net/netip"

	"github.com/puyokura/housechat/discovery"
	"github.com/puyokura/housechat/model"
)

type Screen int

const (
	FindingServer Screen = iota
	SigningIn
	Chatting
)

func (s Screen) String() string {
	switch s {
	case FindingServer:
		return "finding-server"
	case SigningIn:
		return "signing-in"
	case Chatting:
		return "chatting"
	default:
		return "unknown"
	}
}

type Field int

const (
	FieldUsername Field = iota
	FieldPassword
)

const DefaultMaxChats = 500

// UIState is everything the screens draw. It is only changed by Update.
type UIState struct {
	Screen     Screen
	ServerAddr netip.AddrPort

	Username    string
	Password    string
	ActiveField Field
	Message     string

	Chats    []model.Message
	MaxChats int

	ErrorMsg   string
	Searching  bool
	Connecting bool
	Spinner    int
	Quit       bool
}

func NewUIState(maxChats int) UIState {
	if maxChats <= 0 {
		maxChats = DefaultMaxChats
	}
	return UIState{Screen: FindingServer, MaxChats: maxChats}
}

// Init starts the first discovery probe.
func Init(s UIState) (UIState, []Action) {
	s.Searching = true
	return s, []Action{DiscoverAction{}}
}

// Update applies one event and returns the new state plus the actions to deliver.
func Update(s UIState, ev Event) (UIState, []Action) {
	switch ev := ev.(type) {
	case TickEvent:
		if s.Searching || s.Connecting {
			s.Spinner++
		}
	case ServerFoundEvent:
		if s.Screen != FindingServer {
			return s, nil
		}
		s.ServerAddr = ev.Addr
		s.Searching = false
		s.ErrorMsg = ""
		s.Screen = SigningIn
	case ConnectedEvent:
		if !s.Connecting {
			return s, nil
		}
		s.Connecting = false
		s.ErrorMsg = ""
		s.Screen = Chatting
		s = s.appendChat(ev.Welcome)
	case ServerMessageEvent:
		s = s.appendChat(ev.Message)
	case ErrorEvent:
		s = s.applyError(ev.Err)
	case actionFailed:
		s = s.applyActionFailure(ev)
	case KeyEvent:
		if isCtrlC(ev.Key) {
			s.Quit = true
			return s, []Action{DisconnectAction{}}
		}
		switch s.Screen {
		case FindingServer:
			return s.keyFindingServer(ev.Key)
		case SigningIn:
			return s.keySigningIn(ev.Key)
		case Chatting:
			return s.keyChatting(ev.Key)
		}
	}
	return s, nil
}

func (s UIState) keyFindingServer(k Key) (UIState, []Action) {
	if k.Code == KeyRune && !k.Ctrl && (k.Rune == 'r' || k.Rune == 'R') && !s.Searching {
		s.Searching = true
		s.ErrorMsg = ""
		return s, []Action{DiscoverAction{}}
	}
	return s, nil
}

func (s UIState) keySigningIn(k Key) (UIState, []Action) {
	field := &s.Username
	if s.ActiveField == FieldPassword {
		field = &s.Password
	}
	switch k.Code {
	case KeyRune:
		if !k.Ctrl {
			*field += string(k.Rune)
		}
	case KeyBackspace:
		*field = dropLastRune(*field)
	case KeyTab:
		if s.ActiveField == FieldUsername {
			s.ActiveField = FieldPassword
		} else {
			s.ActiveField = FieldUsername
		}
	case KeyEnter:
		if !s.ServerAddr.IsValid() || s.Connecting {
			return s, nil
		}
		s.Connecting = true
		s.ErrorMsg = ""
		return s, []Action{ConnectAction{
			Addr:        s.ServerAddr,
			Credentials: model.Credentials{Username: s.Username, Password: s.Password},
		}}
	}
	return s, nil
}

func (s UIState) keyChatting(k Key) (UIState, []Action) {
	switch k.Code {
	case KeyRune:
		if !k.Ctrl {
			s.Message += string(k.Rune)
		}
	case KeyBackspace:
		s.Message = dropLastRune(s.Message)
	case KeyEsc:
		s.Message = ""
	case KeyEnter:
		if s.Message == "" {
			return s, nil
		}
		text := s.Message
		s.Message = ""
		return s, []Action{SendAction{Text: text}}
	}
	return s, nil
}

func (s UIState) applyError(err error) UIState {
	switch {
	case isDiscoveryError(err):
		s.Searching = false
		s.ErrorMsg = "Server discovery failed: " + err.Error()
	case errors.Is(err, ErrConnect):
		s.Connecting = false
		s.ErrorMsg = err.Error()
	case errors.Is(err, ErrServerClosed):
		s.Connecting = false
		if s.Screen == Chatting {
			s.Screen = SigningIn
		}
		s.ErrorMsg = err.Error()
	default:
		s.ErrorMsg = err.Error()
	}
	return s
}

func (s UIState) applyActionFailure(f actionFailed) UIState {
	switch f.Action.(type) {
	case ConnectAction:
		s.Connecting = false
		s.ErrorMsg = "Failed to send connection action to the network task."
	case SendAction:
		s.ErrorMsg = "Failed to send message."
	case DiscoverAction:
		s.Searching = false
		s.ErrorMsg = "Failed to start server discovery."
	case DisconnectAction:
		s.ErrorMsg = "Failed to send disconnect action to the network task."
	}
	return s
}

// appendChat keeps the newest MaxChats messages.
func (s UIState) appendChat(msg model.Message) UIState {
	limit := s.MaxChats
	if limit <= 0 {
		limit = DefaultMaxChats
	}
	chats := make([]model.Message, 0, min(len(s.Chats)+1, limit))
	if drop := len(s.Chats) + 1 - limit; drop > 0 {
		chats = append(chats, s.Chats[drop:]...)
	} else {
		chats = append(chats, s.Chats...)
	}
	s.Chats = append(chats, msg)
	return s
}

func isDiscoveryError(err error) bool {
	return errors.Is(err, discovery.ErrTimeout) ||
		errors.Is(err, discovery.ErrTransport) ||
		errors.Is(err, discovery.ErrMalformedReply)
}

func dropLastRune(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return string(r[:len(r)-1])
}
