// ABOUTME: Local bbolt store remembering the active conversation per server
// ABOUTME: Lets "say" and "history" continue a chat without repeating its ID

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var activeBucket = []byte("active")

// errNoActive is returned when no conversation has been selected for a server.
var errNoActive = errors.New("no active conversation; run \"mcai new\" or \"mcai use ID\"")

// activeConversation is what the client remembers about the selected chat.
type activeConversation struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	SelectedAt time.Time `json:"selected_at"`
}

// State persists client-side selections in a bbolt file.
type State struct {
	db *bolt.DB
}

// OpenState opens or creates the state file at path.
func OpenState(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening state: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(activeBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing state: %w", err)
	}
	return &State{db: db}, nil
}

// Close releases the state file lock.
func (s *State) Close() error {
	return s.db.Close()
}

// SetActive records conv as the active conversation for server.
func (s *State) SetActive(server string, conv activeConversation) error {
	if conv.SelectedAt.IsZero() {
		conv.SelectedAt = time.Now().UTC()
	}
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encoding active conversation: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(activeBucket).Put([]byte(server), data)
	})
}

// Active returns the active conversation for server, or errNoActive.
func (s *State) Active(server string) (activeConversation, error) {
	var conv activeConversation
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(activeBucket).Get([]byte(server))
		if data == nil {
			return errNoActive
		}
		return json.Unmarshal(data, &conv)
	})
	return conv, err
}

// ClearActive forgets the active conversation for server.
func (s *State) ClearActive(server string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(activeBucket).Delete([]byte(server))
	})
}
