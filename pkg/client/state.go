package client

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// State manages client-side persistent preferences. Message history is
// deliberately absent; it lives only in the in-memory Cache.
type State struct {
	db  *sql.DB
	dir string // Directory where state is stored
}

// OpenState opens or creates the client state database
func OpenState(path string, logger zerolog.Logger) (*State, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// Configure for better reliability
	db.SetMaxOpenConns(1) // Client only needs one connection
	db.SetMaxIdleConns(1)

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := migrateState(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}

	return &State{
		db:  db,
		dir: dir,
	}, nil
}

// Close closes the state database
func (s *State) Close() error {
	return s.db.Close()
}

// GetConfig retrieves a configuration value
func (s *State) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM Config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetConfig stores a configuration value
func (s *State) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO Config (key, value) VALUES (?, ?)
	`, key, value)
	return err
}

// GetLastNickname returns the last used nickname
func (s *State) GetLastNickname() string {
	nickname, _ := s.GetConfig("last_nickname")
	return nickname
}

// SetLastNickname stores the last used nickname
func (s *State) SetLastNickname(nickname string) error {
	return s.SetConfig("last_nickname", nickname)
}

// GetJoinedChannels returns persisted channels in the order they were joined
func (s *State) GetJoinedChannels() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM JoinedChannel ORDER BY joined_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		channels = append(channels, name)
	}
	return channels, rows.Err()
}

// AddJoinedChannel records a joined channel. Joining again keeps the
// original position.
func (s *State) AddJoinedChannel(channel string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO JoinedChannel (name, joined_at) VALUES (?, ?)
	`, channel, time.Now().UnixNano())
	return err
}

// RemoveJoinedChannel forgets a joined channel
func (s *State) RemoveJoinedChannel(channel string) error {
	_, err := s.db.Exec(`DELETE FROM JoinedChannel WHERE name = ?`, channel)
	return err
}

// RecordConnection records a successful connection to a server
func (s *State) RecordConnection(address string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO ConnectionHistory (server_address, last_success_at)
		VALUES (?, ?)
	`, address, time.Now().Unix())
	return err
}

// LastConnection returns the most recently connected server. An empty
// address means there is no history.
func (s *State) LastConnection() (string, time.Time, error) {
	var (
		address string
		at      int64
	)
	err := s.db.QueryRow(`
		SELECT server_address, last_success_at
		FROM ConnectionHistory
		ORDER BY last_success_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&address, &at)

	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, nil // No history
	}
	if err != nil {
		return "", time.Time{}, err
	}
	return address, time.Unix(at, 0), nil
}

// GetFirstRun checks if this is the first time running the client
func (s *State) GetFirstRun() bool {
	val, _ := s.GetConfig("first_run_complete")
	return val != "true"
}

// SetFirstRunComplete marks first run as complete
func (s *State) SetFirstRunComplete() error {
	return s.SetConfig("first_run_complete", "true")
}

// GetStateDir returns the directory where state is stored
func (s *State) GetStateDir() string {
	return s.dir
}
