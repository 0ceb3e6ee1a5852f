package tokenstore

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/transitwatch/transitwatch/pkg/utils"
)

type tokenFile struct {
	AccessToken string `json:"access_token"`
}

// FileStore implements file-based token persistence so a token survives
// process restarts, the way a browser profile keeps local storage.
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	token    string
}

// NewFileStore creates a file store and loads any previously persisted token
func NewFileStore(filePath string) (*FileStore, error) {
	fs := &FileStore{filePath: filePath}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var persisted tokenFile
	if err := json.Unmarshal(data, &persisted); err != nil {
		// A corrupt token file means logging in again, not a fatal error
		log.Printf("[TOKENSTORE] Ignoring unreadable token file %s: %v", filePath, err)
		return fs, nil
	}
	fs.token = persisted.AccessToken

	return fs, nil
}

// Get returns the current token and whether one is set
func (fs *FileStore) Get() (string, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.token, fs.token != ""
}

// Set replaces the current token and syncs it to disk
func (fs *FileStore) Set(token string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := utils.WriteJSONFile(fs.filePath, tokenFile{AccessToken: token}, 0600); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	fs.token = token
	return nil
}

// Clear removes the current token and its file
func (fs *FileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.token = ""
	if err := os.Remove(fs.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
