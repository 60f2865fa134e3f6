package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/puyokura/housechat/model"
)

type sessionState int

const (
	stateAwaitingCredentials sessionState = iota
	stateActive
	stateClosing
	stateDone
)

func (s sessionState) String() string {
	switch s {
	case stateAwaitingCredentials:
		return "awaiting-credentials"
	case stateActive:
		return "active"
	case stateClosing:
		return "closing"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

type inbound struct {
	line []byte
	err  error
}

// Session is the server side of one client connection.
type Session struct {
	id         uuid.UUID
	conn       lineConn
	transport  string
	hub        *Hub
	sub        *Subscription
	accounts   *Store
	registry   *registry
	proto      model.Protocol
	serverAddr string
	logger     *slog.Logger

	state    sessionState
	username string
	cancel   context.CancelFunc
	lines    chan inbound
	done     chan struct{}
}

// Run drives the session through its states until the connection is gone.
// The returned error is nil for a normal disconnect.
func (s *Session) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	stop := context.AfterFunc(ctx, func() {
		// unblocks a pending ReadLine
		s.conn.Close()
	})
	defer func() {
		stop()
		s.cancel()
		s.release()
	}()

	var result error
	for s.state != stateDone {
		var (
			next sessionState
			err  error
		)
		switch s.state {
		case stateAwaitingCredentials:
			next, err = s.awaitCredentials()
		case stateActive:
			next, err = s.active(ctx)
		case stateClosing:
			next, err = s.closing()
		default:
			next, err = stateDone, fmt.Errorf("session: unexpected state %v", s.state)
		}
		if err != nil && result == nil {
			result = err
		}
		s.state = next
	}
	return result
}

func (s *Session) awaitCredentials() (sessionState, error) {
	line, err := s.conn.ReadLine()
	if errors.Is(err, model.ErrLineTooLong) {
		s.logger.Warn("Protocol error: credentials line too long", slog.Any("error", err))
		return stateDone, fmt.Errorf("%w: %v", model.ErrCredentialDecode, err)
	}
	if err != nil {
		return stateDone, err
	}
	creds, err := model.DecodeCredentials(line)
	if err != nil {
		s.logger.Warn("Protocol error: closing connection", slog.Any("error", err))
		return stateDone, err
	}
	s.username = creds.Username
	s.logger = s.logger.With(slog.String("username", s.username))

	if s.accounts != nil {
		status, err := s.accounts.Observe(creds)
		if err != nil {
			s.logger.Warn("Account registry failed", slog.Any("error", err))
		} else {
			s.logger.Info("Account observed", slog.String("account", status.String()))
		}
	}

	join := s.proto.SystemMessage(s.serverAddr, fmt.Sprintf("%s has joined the chat!", s.username))
	sub, err := s.hub.SubscribeWith(join)
	if err != nil {
		return stateDone, err
	}
	s.sub = sub
	s.registry.add(SessionInfo{
		ID:         s.id,
		Username:   s.username,
		RemoteAddr: s.conn.RemoteAddr(),
		Transport:  s.transport,
		Since:      time.Now().UTC(),
	}, s.cancel)
	s.logger.Info(join.Payload)
	return stateActive, nil
}

func (s *Session) active(ctx context.Context) (sessionState, error) {
	go s.readLoop()
	for {
		select {
		case <-s.sub.Ready():
			if err := s.deliver(); err != nil {
				return stateClosing, err
			}
		case in := <-s.lines:
			if errors.Is(in.err, model.ErrLineTooLong) {
				s.logger.Warn("Dropping oversized line", slog.Any("error", in.err))
				continue
			}
			if in.err != nil {
				if errors.Is(in.err, ErrSocketClosed) {
					return stateClosing, nil
				}
				return stateClosing, in.err
			}
			if err := s.relayLine(in.line); err != nil {
				return stateClosing, err
			}
		case <-ctx.Done():
			return stateClosing, nil
		}
	}
}

func (s *Session) closing() (sessionState, error) {
	s.registry.delete(s.id)
	leave := s.proto.SystemMessage(s.serverAddr, fmt.Sprintf("%s has left the chat!", s.username))
	if err := s.hub.Publish(leave); err != nil {
		s.logger.Info("Could not broadcast leave message", slog.Any("error", err))
	}
	s.logger.Info(leave.Payload)
	return stateDone, nil
}

// deliver writes at most one pending bus message to the client.
func (s *Session) deliver() error {
	msg, err := s.sub.TryRecv()
	var lagged *LaggedError
	switch {
	case errors.As(err, &lagged):
		s.logger.Warn("Session lagging behind the hub", slog.Uint64("missed", lagged.Missed))
		return nil
	case errors.Is(err, errNoMessage):
		return nil
	case err != nil:
		return err
	}
	if err := s.conn.WriteLine(model.Encode(msg)); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	return nil
}

func (s *Session) relayLine(line []byte) error {
	payload, err := payloadOf(line)
	if err != nil {
		s.logger.Warn("Dropping malformed line", slog.Any("error", err))
		return nil
	}
	if payload == "" {
		return nil
	}
	msg := model.Message{
		ID:             s.id,
		SenderAddr:     s.conn.RemoteAddr(),
		SenderUsername: s.username,
		Payload:        payload,
	}
	// every subscriber must be able to read the line back
	if size := len(model.Encode(msg)); size > model.MaxLineSize {
		s.logger.Warn("Dropping message that would exceed the line limit", slog.Int("encoded_size", size))
		return nil
	}
	if err := s.hub.Publish(msg); err != nil {
		return err
	}
	s.logger.Info("Message relayed", slog.Int("size", len(payload)))
	return nil
}

// payloadOf extracts the text of an inbound line. JSON objects must be
// well-formed chat messages, anything else is taken as plain text.
func payloadOf(line []byte) (string, error) {
	line = bytes.TrimSpace(line)
	if !utf8.Valid(line) {
		return "", fmt.Errorf("%w: invalid utf-8", model.ErrMessageDecode)
	}
	if len(line) > 0 && line[0] == '{' {
		msg, err := model.Decode(line)
		if err != nil {
			return "", err
		}
		return msg.Payload, nil
	}
	return string(line), nil
}

func (s *Session) readLoop() {
	for {
		line, err := s.conn.ReadLine()
		select {
		case s.lines <- inbound{line, err}:
		case <-s.done:
			return
		}
		if err != nil && !errors.Is(err, model.ErrLineTooLong) {
			return
		}
	}
}

func (s *Session) release() {
	close(s.done)
	if s.sub != nil {
		s.sub.Close()
	}
	s.registry.delete(s.id)
	s.conn.Close()
}
