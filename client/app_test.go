package main

import (
	"fmt"
	"net/netip"
	"reflect"
	"testing"

	"github.com/puyokura/housechat/discovery"
	"github.com/puyokura/housechat/model"
)

var testAddr = netip.MustParseAddrPort("192.168.1.20:8080")

func runeKey(r rune) Event { return KeyEvent{Key: Key{Code: KeyRune, Rune: r}} }
func codeKey(c KeyCode) Event { return KeyEvent{Key: Key{Code: c}} }

var ctrlC = KeyEvent{Key: Key{Code: KeyRune, Rune: 'c', Ctrl: true}}

// apply feeds events through Update and collects every action.
func apply(s UIState, events ...Event) (UIState, []Action) {
	var all []Action
	for _, ev := range events {
		var actions []Action
		s, actions = Update(s, ev)
		all = append(all, actions...)
	}
	return s, all
}

func typeText(text string) []Event {
	var events []Event
	for _, r := range text {
		events = append(events, runeKey(r))
	}
	return events
}

func signingIn() UIState {
	s, _ := Init(NewUIState(0))
	s, _ = Update(s, ServerFoundEvent{Addr: testAddr})
	return s
}

func chatting(t *testing.T) UIState {
	t.Helper()
	s, _ := apply(signingIn(), codeKey(KeyEnter), ConnectedEvent{Welcome: model.Message{Payload: "welcome"}})
	if s.Screen != Chatting {
		t.Fatalf("screen = %v, want chatting", s.Screen)
	}
	return s
}

func TestInit_StartsDiscovery(t *testing.T) {
	s, actions := Init(NewUIState(0))
	if s.Screen != FindingServer || !s.Searching {
		t.Errorf("initial state = %+v", s)
	}
	if !reflect.DeepEqual(actions, []Action{DiscoverAction{}}) {
		t.Errorf("actions = %#v", actions)
	}
	if s.MaxChats != DefaultMaxChats {
		t.Errorf("MaxChats = %d", s.MaxChats)
	}
}

func TestUpdate_ServerFound(t *testing.T) {
	s := signingIn()
	if s.Screen != SigningIn || s.ServerAddr != testAddr || s.Searching {
		t.Fatalf("state = %+v", s)
	}

	other := netip.MustParseAddrPort("10.0.0.1:1")
	s, _ = Update(s, ServerFoundEvent{Addr: other})
	if s.ServerAddr != testAddr {
		t.Error("ServerFound outside FindingServer changed the address")
	}
}

func TestUpdate_CtrlCQuitsFromEveryScreen(t *testing.T) {
	for _, s := range []UIState{NewUIState(0), signingIn(), chatting(t)} {
		got, actions := Update(s, ctrlC)
		if !got.Quit {
			t.Errorf("%v: quit not set", s.Screen)
		}
		if !reflect.DeepEqual(actions, []Action{DisconnectAction{}}) {
			t.Errorf("%v: actions = %#v", s.Screen, actions)
		}
		if got.Screen != s.Screen {
			t.Errorf("%v: Ctrl-C changed screen", s.Screen)
		}
	}
}

func TestUpdate_SigningInFields(t *testing.T) {
	events := typeText("alicx")
	events = append(events, codeKey(KeyBackspace), runeKey('e'), codeKey(KeyTab))
	events = append(events, typeText("pw")...)
	s, actions := apply(signingIn(), events...)
	if len(actions) != 0 {
		t.Fatalf("typing issued actions: %#v", actions)
	}
	if s.Username != "alice" || s.Password != "pw" || s.ActiveField != FieldPassword {
		t.Fatalf("state = %+v", s)
	}

	s, _ = apply(s, codeKey(KeyTab), runeKey('!'))
	if s.Username != "alice!" {
		t.Errorf("Tab did not toggle back, username = %q", s.Username)
	}

	s, actions = Update(s, codeKey(KeyEnter))
	want := []Action{ConnectAction{Addr: testAddr, Credentials: model.Credentials{Username: "alice!", Password: "pw"}}}
	if !reflect.DeepEqual(actions, want) {
		t.Errorf("actions = %#v, want %#v", actions, want)
	}
	if !s.Connecting || s.Screen != SigningIn {
		t.Errorf("after Enter: %+v", s)
	}

	if _, actions := Update(s, codeKey(KeyEnter)); len(actions) != 0 {
		t.Error("second Enter while connecting issued another Connect")
	}
}

func TestUpdate_BackspaceOnMultibyte(t *testing.T) {
	s, _ := apply(signingIn(), append(typeText("héé"), codeKey(KeyBackspace))...)
	if s.Username != "hé" {
		t.Errorf("username = %q", s.Username)
	}
	s, _ = apply(NewUIState(0), codeKey(KeyBackspace))
	if s.Username != "" {
		t.Error("backspace outside SigningIn edited the username")
	}
}

func TestUpdate_EnterWithoutAddress(t *testing.T) {
	s := NewUIState(0)
	s.Screen = SigningIn
	if _, actions := Update(s, codeKey(KeyEnter)); len(actions) != 0 {
		t.Errorf("Connect issued without an address: %#v", actions)
	}
}

func TestUpdate_ConnectedOnlyAfterConnect(t *testing.T) {
	s, _ := Update(signingIn(), ConnectedEvent{Welcome: model.Message{Payload: "welcome"}})
	if s.Screen != SigningIn || len(s.Chats) != 0 {
		t.Errorf("unsolicited Connected changed state: %+v", s)
	}

	s = chatting(t)
	if len(s.Chats) != 1 || s.Chats[0].Payload != "welcome" || s.Connecting {
		t.Errorf("state = %+v", s)
	}
}

func TestUpdate_Chatting(t *testing.T) {
	s := chatting(t)

	s, actions := apply(s, codeKey(KeyEnter))
	if len(actions) != 0 {
		t.Errorf("Enter on empty buffer issued %#v", actions)
	}

	s, actions = apply(s, append(typeText("hellp"), codeKey(KeyBackspace), runeKey('o'), codeKey(KeyEnter))...)
	if !reflect.DeepEqual(actions, []Action{SendAction{Text: "hello"}}) {
		t.Errorf("actions = %#v", actions)
	}
	if s.Message != "" {
		t.Errorf("buffer not drained: %q", s.Message)
	}

	s, _ = apply(s, append(typeText("draft"), codeKey(KeyEsc))...)
	if s.Message != "" {
		t.Errorf("Esc did not clear the buffer: %q", s.Message)
	}
}

func TestUpdate_ServerMessageInAnyScreen(t *testing.T) {
	msg := model.Message{Payload: "early"}
	s, _ := Update(NewUIState(0), ServerMessageEvent{Message: msg})
	if len(s.Chats) != 1 || s.Screen != FindingServer {
		t.Errorf("state = %+v", s)
	}
}

func TestUpdate_ChatsAreBounded(t *testing.T) {
	s := NewUIState(3)
	var events []Event
	for i := 0; i < 5; i++ {
		events = append(events, ServerMessageEvent{Message: model.Message{Payload: fmt.Sprint(i)}})
	}
	before := s
	s, _ = apply(s, events...)
	if len(s.Chats) != 3 || s.Chats[0].Payload != "2" || s.Chats[2].Payload != "4" {
		t.Errorf("chats = %+v", s.Chats)
	}
	if len(before.Chats) != 0 {
		t.Error("Update mutated the previous state")
	}
}

func TestUpdate_Errors(t *testing.T) {
	t.Run("discovery", func(t *testing.T) {
		s, _ := Init(NewUIState(0))
		s, _ = Update(s, ErrorEvent{Err: fmt.Errorf("%w after 5s", discovery.ErrTimeout)})
		if s.Searching || s.ErrorMsg != "Server discovery failed: discovery: timed out waiting for server reply after 5s" {
			t.Errorf("state = %+v", s)
		}
		s, actions := Update(s, runeKey('r'))
		if !s.Searching || s.ErrorMsg != "" || !reflect.DeepEqual(actions, []Action{DiscoverAction{}}) {
			t.Errorf("retry: state = %+v, actions = %#v", s, actions)
		}
		if _, actions := Update(s, runeKey('r')); len(actions) != 0 {
			t.Error("r while searching started a second probe")
		}
	})

	t.Run("connect", func(t *testing.T) {
		s, _ := Update(signingIn(), codeKey(KeyEnter))
		s, _ = Update(s, ErrorEvent{Err: fmt.Errorf("%w: refused", ErrConnect)})
		if s.Connecting || s.Screen != SigningIn || s.ErrorMsg == "" {
			t.Errorf("state = %+v", s)
		}
		if _, actions := Update(s, codeKey(KeyEnter)); len(actions) != 1 {
			t.Error("Connect not allowed after a failed connect")
		}
	})

	t.Run("server closed", func(t *testing.T) {
		s, _ := Update(chatting(t), ErrorEvent{Err: ErrServerClosed})
		if s.Screen != SigningIn || s.ErrorMsg != "Server closed connection" {
			t.Errorf("state = %+v", s)
		}
	})

	t.Run("other", func(t *testing.T) {
		s, _ := Update(chatting(t), ErrorEvent{Err: ErrNotConnected})
		if s.Screen != Chatting || s.ErrorMsg != "not connected" {
			t.Errorf("state = %+v", s)
		}
	})
}

func TestUpdate_ActionFailed(t *testing.T) {
	s, _ := Update(signingIn(), codeKey(KeyEnter))
	s, _ = Update(s, actionFailed{Action: ConnectAction{}, Err: ErrChannelSend})
	if s.Connecting || s.Screen != SigningIn || s.ErrorMsg != "Failed to send connection action to the network task." {
		t.Errorf("state = %+v", s)
	}

	s, _ = Update(chatting(t), actionFailed{Action: SendAction{Text: "x"}, Err: ErrChannelSend})
	if s.Screen != Chatting || s.ErrorMsg != "Failed to send message." {
		t.Errorf("state = %+v", s)
	}
}

func TestUpdate_TickAdvancesSpinnerWhileBusy(t *testing.T) {
	s, _ := Init(NewUIState(0))
	s, _ = apply(s, TickEvent{}, TickEvent{})
	if s.Spinner != 2 {
		t.Errorf("Spinner = %d, want 2", s.Spinner)
	}
	idle := signingIn()
	idle, _ = Update(idle, TickEvent{})
	if idle.Spinner != 0 {
		t.Errorf("idle Spinner = %d", idle.Spinner)
	}
}
