package client

import (
	"context"
	"time"
)

// ConnectionInterface defines the interface for client connections
// This allows for mocking in tests while the real Connection implements all these methods
type ConnectionInterface interface {
	// Connection management
	Connect(ctx context.Context, address string) error
	Disconnect()
	Close()
	State() ConnState
	IsConnected() bool
	IsCurrent(gen uint64) bool
	Address() string

	// Frame sending
	Send(data []byte) bool

	// Ordered frames and state changes
	Events() <-chan ConnectionEvent

	// Traffic counters
	BytesSent() uint64
	BytesReceived() uint64
}

// ActionSender is the part of Client that observers use to act on events
type ActionSender interface {
	JoinChannel(channel string) bool
	SendMessage(channel, text string) bool
	ChangeUserName(newName string) bool
	RequestChannelsInfo() bool
	RequestChannelUsers(channel string) bool
	LocalUser() (UserRef, bool)
	Address() string
}

// StateInterface defines the interface for client state persistence
// This allows for mocking in tests while the real State implements all these methods
type StateInterface interface {
	// Configuration
	GetConfig(key string) (string, error)
	SetConfig(key, value string) error

	// Nickname management
	GetLastNickname() string
	SetLastNickname(nickname string) error

	// Joined channels, in join order
	GetJoinedChannels() ([]string, error)
	AddJoinedChannel(channel string) error
	RemoveJoinedChannel(channel string) error

	// Connection history
	RecordConnection(address string) error
	LastConnection() (address string, at time.Time, err error)

	// First run tracking
	GetFirstRun() bool
	SetFirstRunComplete() error

	// State directory
	GetStateDir() string

	// Close the state
	Close() error
}

var (
	_ ConnectionInterface = (*Connection)(nil)
	_ ActionSender        = (*Client)(nil)
	_ StateInterface      = (*State)(nil)
)
