package main

import (
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/puyokura/housechat/model"
)

func TestTranslateKey(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want []Key
	}{
		{"ctrl-c", tea.KeyMsg{Type: tea.KeyCtrlC}, []Key{{Code: KeyRune, Rune: 'c', Ctrl: true}}},
		{"enter", tea.KeyMsg{Type: tea.KeyEnter}, []Key{{Code: KeyEnter}}},
		{"backspace", tea.KeyMsg{Type: tea.KeyBackspace}, []Key{{Code: KeyBackspace}}},
		{"tab", tea.KeyMsg{Type: tea.KeyTab}, []Key{{Code: KeyTab}}},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}, []Key{{Code: KeyEsc}}},
		{"space", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, []Key{{Code: KeyRune, Rune: ' '}}},
		{"paste", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hé")}, []Key{{Code: KeyRune, Rune: 'h'}, {Code: KeyRune, Rune: 'é'}}},
		{"alt", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x"), Alt: true}, nil},
		{"arrow", tea.KeyMsg{Type: tea.KeyLeft}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translateKey(tt.msg); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("translateKey = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestView_ForwardsKeysAndQuits(t *testing.T) {
	events := make(chan Event, 4)
	var m tea.Model = newView(events, make(chan struct{}))

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ab")})
	for _, want := range []rune("ab") {
		ev := <-events
		if k, ok := ev.(KeyEvent); !ok || k.Key.Rune != want {
			t.Errorf("forwarded %#v, want %q", ev, want)
		}
	}

	state := NewUIState(0)
	state.Quit = true
	_, cmd := m.Update(stateMsg(state))
	if cmd == nil {
		t.Fatal("quit state did not return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit state did not quit the program")
	}
}

func TestView_StoppedUnblocksKeys(t *testing.T) {
	stopped := make(chan struct{})
	close(stopped)
	v := newView(make(chan Event), stopped)
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("key forwarding blocked after stop")
	}
}

func TestView_Screens(t *testing.T) {
	var m tea.Model = newView(make(chan Event, 1), make(chan struct{}))
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 20})

	s, _ := Init(NewUIState(0))
	m, _ = m.Update(stateMsg(s))
	if out := m.View(); !strings.Contains(out, "Searching for a server") {
		t.Errorf("finding screen:\n%s", out)
	}

	s, _ = apply(signingIn(), append(typeText("bob"), codeKey(KeyTab), runeKey('x'))...)
	s.ErrorMsg = "connect failed: refused"
	m, _ = m.Update(stateMsg(s))
	out := m.View()
	for _, want := range []string{"192.168.1.20:8080", "bob", "connect failed: refused"} {
		if !strings.Contains(out, want) {
			t.Errorf("signing-in screen missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Password: x") {
		t.Error("password rendered in clear text")
	}

	s.Screen = Chatting
	s.Chats = []model.Message{{SenderUsername: "bob", SenderAddr: "10.0.0.2:5000", Payload: "hello there"}}
	m, _ = m.Update(stateMsg(s))
	if out := m.View(); !strings.Contains(out, "hello there") || !strings.Contains(out, "10.0.0.2:5000") {
		t.Errorf("chat screen:\n%s", out)
	}
}

func TestFormatMessage_Wraps(t *testing.T) {
	msg := model.Message{SenderUsername: "alice", SenderAddr: "127.0.0.1:1", Payload: strings.Repeat("word ", 40)}
	out := formatMessage(msg, 80)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) < 2 {
		t.Fatalf("long payload not wrapped:\n%s", out)
	}
	for _, line := range lines {
		if w := lipgloss.Width(line); w > 80 {
			t.Errorf("line is %d cells wide: %q", w, line)
		}
	}
	if !strings.Contains(lines[0], "alice") || strings.Contains(lines[1], "alice") {
		t.Error("sender must only appear on the first line")
	}
}

func TestFitColumn(t *testing.T) {
	if got := fitColumn("bob", 5); got != "bob  " {
		t.Errorf("fitColumn pad = %q", got)
	}
	if got := fitColumn("abcdefgh", 5); got != "abcd…" {
		t.Errorf("fitColumn truncate = %q", got)
	}
}
