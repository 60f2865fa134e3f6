package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const DefaultTick = 100 * time.Millisecond

// Renderer draws a state snapshot. Render must not block.
type Renderer interface {
	Render(UIState)
}

// Multiplexer is the client's single control loop. It owns the UI state and
// merges network events, key presses and ticks, one event per iteration.
type Multiplexer struct {
	events   <-chan Event
	actions  chan<- Action
	tick     time.Duration
	renderer Renderer
	logger   *slog.Logger
}

// NewMultiplexer wires the loop. The actions channel must stay open while Run
// is executing, a full channel is reported as a failed action.
func NewMultiplexer(events <-chan Event, actions chan<- Action, tick time.Duration, renderer Renderer, logger *slog.Logger) *Multiplexer {
	if tick <= 0 {
		tick = DefaultTick
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Multiplexer{
		events:   events,
		actions:  actions,
		tick:     tick,
		renderer: renderer,
		logger:   logger,
	}
}

// Run loops until the state asks to quit, the event channel closes or ctx ends.
// It returns the final state.
func (m *Multiplexer) Run(ctx context.Context, state UIState) (UIState, error) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	state, actions := Init(state)
	state = m.deliver(state, actions)
	m.render(state)

	for {
		var ev Event
		select {
		case e, ok := <-m.events:
			if !ok {
				return state, ErrEventsClosed
			}
			ev = e
		case <-ticker.C:
			ev = TickEvent{}
		case <-ctx.Done():
			return state, ctx.Err()
		}

		prev := state.Screen
		state, actions = Update(state, ev)
		state = m.deliver(state, actions)
		if state.Screen != prev {
			m.logger.Info("Screen changed", slog.String("from", prev.String()), slog.String("to", state.Screen.String()))
		}
		m.render(state)

		if state.Quit {
			return state, nil
		}
	}
}

// deliver hands actions to the network task without blocking.
func (m *Multiplexer) deliver(state UIState, actions []Action) UIState {
	for _, a := range actions {
		select {
		case m.actions <- a:
		default:
			m.logger.Warn("Dropping action", slog.String("action", fmt.Sprintf("%T", a)), slog.Any("error", ErrChannelSend))
			state, _ = Update(state, actionFailed{Action: a, Err: ErrChannelSend})
		}
	}
	return state
}

func (m *Multiplexer) render(state UIState) {
	if m.renderer != nil {
		m.renderer.Render(state)
	}
}
