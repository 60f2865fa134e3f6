package model

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a single relayed chat utterance.
type Message struct {
	ID             uuid.UUID `json:"id"`              // Stable per connection, uuid.Nil for system messages
	SenderAddr     string    `json:"sender_addr"`     // ip:port of the sender's connection
	SenderUsername string    `json:"sender_username"` // Display name
	Payload        string    `json:"payload"`         // Never contains a raw line terminator
}

// Credentials is the first line a client sends after connecting.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Protocol holds the constants shared by server and client.
// It is resolved once at startup and handed to every component that needs it.
type Protocol struct {
	DiscoveryPort    int
	DiscoveryMessage []byte
	DiscoveryTimeout time.Duration
	SystemID         uuid.UUID
	SystemName       string
}

const (
	DefaultDiscoveryPort    = 8081
	DefaultDiscoveryMessage = "HOUSE_CHAT_SERVER_DISCOVERY"
	DefaultDiscoveryTimeout = 5 * time.Second
	DefaultSystemName       = "HouseChat"
	DefaultRelayPort        = 8080
)

// DefaultProtocol returns the well-known protocol constants.
func DefaultProtocol() Protocol {
	return Protocol{
		DiscoveryPort:    DefaultDiscoveryPort,
		DiscoveryMessage: []byte(DefaultDiscoveryMessage),
		DiscoveryTimeout: DefaultDiscoveryTimeout,
		SystemID:         uuid.Nil,
		SystemName:       DefaultSystemName,
	}
}

// SystemMessage builds an announcement sent on behalf of the server.
func (p Protocol) SystemMessage(serverAddr, payload string) Message {
	return Message{
		ID:             p.SystemID,
		SenderAddr:     serverAddr,
		SenderUsername: p.SystemName,
		Payload:        payload,
	}
}
