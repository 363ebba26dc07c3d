package client

import (
	"slices"
	"sync"
	"time"
)

// MockState is an in-memory test implementation of StateInterface
type MockState struct {
	mu sync.RWMutex

	// In-memory storage
	config      map[string]string
	joined      []string
	lastAddress string
	lastAt      time.Time
	dir         string

	// Error injection
	getConfigErr           error
	setConfigErr           error
	joinedErr              error
	recordConnectionErr    error
	setFirstRunCompleteErr error
}

// NewMockState creates a new mock state
func NewMockState() *MockState {
	return &MockState{
		config: make(map[string]string),
		dir:    "/tmp/mock-state",
	}
}

// GetConfig retrieves a configuration value
func (s *MockState) GetConfig(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.getConfigErr != nil {
		return "", s.getConfigErr
	}

	return s.config[key], nil
}

// SetConfig stores a configuration value
func (s *MockState) SetConfig(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setConfigErr != nil {
		return s.setConfigErr
	}

	s.config[key] = value
	return nil
}

// GetLastNickname returns the last used nickname
func (s *MockState) GetLastNickname() string {
	nickname, _ := s.GetConfig("last_nickname")
	return nickname
}

// SetLastNickname stores the last used nickname
func (s *MockState) SetLastNickname(nickname string) error {
	return s.SetConfig("last_nickname", nickname)
}

// GetJoinedChannels returns joined channels in join order
func (s *MockState) GetJoinedChannels() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.joinedErr != nil {
		return nil, s.joinedErr
	}
	return slices.Clone(s.joined), nil
}

// AddJoinedChannel records a joined channel once
func (s *MockState) AddJoinedChannel(channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.joinedErr != nil {
		return s.joinedErr
	}
	if !slices.Contains(s.joined, channel) {
		s.joined = append(s.joined, channel)
	}
	return nil
}

// RemoveJoinedChannel forgets a joined channel
func (s *MockState) RemoveJoinedChannel(channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.joinedErr != nil {
		return s.joinedErr
	}
	s.joined = slices.DeleteFunc(s.joined, func(c string) bool { return c == channel })
	return nil
}

// RecordConnection records a successful connection
func (s *MockState) RecordConnection(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recordConnectionErr != nil {
		return s.recordConnectionErr
	}
	s.lastAddress = address
	s.lastAt = time.Now()
	return nil
}

// LastConnection returns the most recent connection
func (s *MockState) LastConnection() (string, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAddress, s.lastAt, nil
}

// GetFirstRun checks if this is the first time running the client
func (s *MockState) GetFirstRun() bool {
	val, _ := s.GetConfig("first_run_complete")
	return val != "true"
}

// SetFirstRunComplete marks first run as complete
func (s *MockState) SetFirstRunComplete() error {
	if s.setFirstRunCompleteErr != nil {
		return s.setFirstRunCompleteErr
	}
	return s.SetConfig("first_run_complete", "true")
}

// GetStateDir returns the directory where state is stored
func (s *MockState) GetStateDir() string {
	return s.dir
}

// Close closes the mock state (no-op for in-memory)
func (s *MockState) Close() error {
	return nil
}

// Test helpers

// SetGetConfigError sets an error to return from GetConfig()
func (s *MockState) SetGetConfigError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getConfigErr = err
}

// SetSetConfigError sets an error to return from SetConfig()
func (s *MockState) SetSetConfigError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setConfigErr = err
}

// SetJoinedChannelsError sets an error to return from the joined channel methods
func (s *MockState) SetJoinedChannelsError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joinedErr = err
}

// SetRecordConnectionError sets an error to return from RecordConnection()
func (s *MockState) SetRecordConnectionError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordConnectionErr = err
}

// SetFirstRun sets the first run state
func (s *MockState) SetFirstRun(firstRun bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if firstRun {
		delete(s.config, "first_run_complete")
	} else {
		s.config["first_run_complete"] = "true"
	}
}

// GetAllConfig returns all config (for testing)
func (s *MockState) GetAllConfig() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]string)
	for k, v := range s.config {
		result[k] = v
	}
	return result
}

// Clear clears all state (for testing)
func (s *MockState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = make(map[string]string)
	s.joined = nil
	s.lastAddress = ""
	s.lastAt = time.Time{}
}

// Verify that MockState implements StateInterface
var _ StateInterface = (*MockState)(nil)
