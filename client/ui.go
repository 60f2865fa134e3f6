package main

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/puyokura/housechat/model"
)

// spinnerFrames advance once per multiplexer tick.
var spinnerFrames = []string{`\`, "|", "/", "-"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A8A8A8")).Italic(true)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#505050"))
	activeLabel = lipgloss.NewStyle().Bold(true)
)

// stateMsg delivers a multiplexer state snapshot to the bubbletea program.
type stateMsg UIState

// UI is the terminal side of the client: it feeds key presses into the event
// channel and draws whatever state the multiplexer renders.
type UI struct {
	program *tea.Program
	latest  atomic.Pointer[UIState]
	dirty   chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func NewUI(events chan<- Event, opts ...tea.ProgramOption) *UI {
	stopped := make(chan struct{})
	return &UI{
		program: tea.NewProgram(newView(events, stopped), opts...),
		dirty:   make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: stopped,
	}
}

// Render stores the snapshot and wakes the sender. Intermediate states may be skipped.
func (u *UI) Render(s UIState) {
	u.latest.Store(&s)
	select {
	case u.dirty <- struct{}{}:
	default:
	}
}

// Run blocks until the program exits.
func (u *UI) Run() error {
	go u.pump()
	defer close(u.done)
	_, err := u.program.Run()
	return err
}

// Quit stops key forwarding and ends the program.
func (u *UI) Quit() {
	u.once.Do(func() { close(u.stopped) })
	u.program.Quit()
}

func (u *UI) pump() {
	for {
		select {
		case <-u.dirty:
			if s := u.latest.Load(); s != nil {
				u.program.Send(stateMsg(*s))
			}
		case <-u.done:
			return
		}
	}
}

type view struct {
	events  chan<- Event
	stopped <-chan struct{}
	state   UIState

	username textinput.Model
	password textinput.Model
	message  textinput.Model
	viewport viewport.Model
	chats    []model.Message
	ready    bool
}

func newView(events chan<- Event, stopped <-chan struct{}) view {
	newInput := func(prompt, placeholder string) textinput.Model {
		ti := textinput.New()
		ti.Prompt = prompt
		ti.Placeholder = placeholder
		ti.CharLimit = 256
		ti.Cursor.SetMode(cursor.CursorStatic)
		return ti
	}
	v := view{
		events:   events,
		stopped:  stopped,
		username: newInput("Username: ", "your name"),
		password: newInput("Password: ", ""),
		message:  newInput("> ", "Type a message..."),
	}
	v.password.EchoMode = textinput.EchoPassword
	v.password.EchoCharacter = '•'
	return v
}

func (v view) Init() tea.Cmd {
	return nil
}

func (v view) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			v.viewport, cmd = v.viewport.Update(msg)
			return v, cmd
		}
		for _, k := range translateKey(msg) {
			select {
			case v.events <- KeyEvent{Key: k}:
			case <-v.stopped:
				return v, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		footerHeight := 3
		if !v.ready {
			v.viewport = viewport.New(msg.Width, msg.Height-footerHeight)
			v.ready = true
		} else {
			v.viewport.Width = msg.Width
			v.viewport.Height = msg.Height - footerHeight
		}
		v.message.Width = msg.Width - lipgloss.Width(v.message.Prompt) - 1
		v.refreshChats(true)

	case stateMsg:
		v.state = UIState(msg)
		v.syncInputs()
		v.refreshChats(false)
		if v.state.Quit {
			return v, tea.Quit
		}
	}
	return v, nil
}

func (v *view) syncInputs() {
	set := func(ti *textinput.Model, value string, focus bool) {
		ti.SetValue(value)
		ti.CursorEnd()
		if focus {
			ti.Focus()
		} else {
			ti.Blur()
		}
	}
	s := v.state
	set(&v.username, s.Username, s.Screen == SigningIn && s.ActiveField == FieldUsername)
	set(&v.password, s.Password, s.Screen == SigningIn && s.ActiveField == FieldPassword)
	set(&v.message, s.Message, s.Screen == Chatting)
}

// refreshChats re-renders the scrollback when the chat list changed.
func (v *view) refreshChats(force bool) {
	if !v.ready {
		return
	}
	chats := v.state.Chats
	if !force && sameChats(chats, v.chats) {
		return
	}
	v.chats = chats
	var b strings.Builder
	for _, msg := range chats {
		b.WriteString(formatMessage(msg, v.viewport.Width))
	}
	v.viewport.SetContent(b.String())
	v.viewport.GotoBottom()
}

func sameChats(a, b []model.Message) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}

func (v view) View() string {
	s := v.state
	var b strings.Builder
	switch s.Screen {
	case FindingServer:
		b.WriteString(titleStyle.Render("HouseChat") + "\n\n")
		if s.Searching {
			frame := spinnerFrames[s.Spinner%len(spinnerFrames)]
			fmt.Fprintf(&b, "  %s Searching for a server on the local network...\n", frame)
		} else {
			b.WriteString(hintStyle.Render("  Press r to search again.") + "\n")
		}

	case SigningIn:
		b.WriteString(titleStyle.Render("HouseChat") + "\n\n")
		fmt.Fprintf(&b, "  Server: %s\n\n", s.ServerAddr)
		b.WriteString("  " + fieldLabel(v.username.View(), s.ActiveField == FieldUsername) + "\n")
		b.WriteString("  " + fieldLabel(v.password.View(), s.ActiveField == FieldPassword) + "\n\n")
		if s.Connecting {
			frame := spinnerFrames[s.Spinner%len(spinnerFrames)]
			fmt.Fprintf(&b, "  %s Connecting...\n", frame)
		} else {
			b.WriteString(hintStyle.Render("  Tab switches field, Enter connects.") + "\n")
		}

	case Chatting:
		if !v.ready {
			return "\n  Initializing..."
		}
		width := v.viewport.Width
		b.WriteString(v.viewport.View() + "\n")
		b.WriteString(borderStyle.Render(strings.Repeat("─", max(width, 1))) + "\n")
		b.WriteString(v.message.View())
	}

	if s.ErrorMsg != "" {
		b.WriteString("\n" + errorStyle.Render("  "+s.ErrorMsg))
	}
	if s.Screen != Chatting {
		b.WriteString("\n" + hintStyle.Render("  Ctrl-C quits."))
	}
	return b.String()
}

func fieldLabel(input string, active bool) string {
	if active {
		return activeLabel.Render("›") + " " + input
	}
	return "  " + input
}

// translateKey maps a terminal key to the keys the reducer understands.
func translateKey(msg tea.KeyMsg) []Key {
	switch msg.Type {
	case tea.KeyCtrlC:
		return []Key{{Code: KeyRune, Rune: 'c', Ctrl: true}}
	case tea.KeyEnter:
		return []Key{{Code: KeyEnter}}
	case tea.KeyBackspace:
		return []Key{{Code: KeyBackspace}}
	case tea.KeyTab:
		return []Key{{Code: KeyTab}}
	case tea.KeyEsc:
		return []Key{{Code: KeyEsc}}
	case tea.KeySpace:
		return []Key{{Code: KeyRune, Rune: ' '}}
	case tea.KeyRunes:
		if msg.Alt {
			return nil
		}
		keys := make([]Key, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			keys = append(keys, Key{Code: KeyRune, Rune: r})
		}
		return keys
	}
	return nil
}

// formatMessage renders one chat line as │ sender │ address │ text, wrapping the text.
func formatMessage(msg model.Message, width int) string {
	if width < 50 {
		width = 80
	}

	sender := msg.SenderUsername
	if sender == "" {
		sender = "Unknown"
	}
	sender = fitColumn(sender, 15)
	addr := fitColumn(msg.SenderAddr, 21)

	vLine := borderStyle.Render("│")
	prefix := fmt.Sprintf("%s %s %s %s %s ", vLine, sender, vLine, addr, vLine)
	msgWidth := max(width-lipgloss.Width(prefix), 10)

	textStyle := lipgloss.NewStyle().Width(msgWidth)
	if msg.ID == uuid.Nil {
		textStyle = systemStyle.Width(msgWidth)
	}
	lines := strings.Split(textStyle.Render(msg.Payload), "\n")

	emptyPrefix := fmt.Sprintf("%s %s %s %s %s ", vLine, strings.Repeat(" ", 15), vLine, strings.Repeat(" ", 21), vLine)
	var result strings.Builder
	for i, line := range lines {
		if i == 0 {
			result.WriteString(prefix)
		} else {
			result.WriteString(emptyPrefix)
		}
		result.WriteString(line)
		result.WriteString("\n")
	}
	return result.String()
}

// fitColumn pads or truncates s to exactly n cells.
func fitColumn(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s + strings.Repeat(" ", max(n-lipgloss.Width(s), 0))
}
