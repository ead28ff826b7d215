package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"fallacypartygo/internal/protocol"
)

// FileStore keeps one JSON file per snapshot under a base directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates the base directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (fs *FileStore) SaveSession(data SessionData) error {
	data.LastAccessedAt = protocol.Now()
	return fs.write(fs.sessionPath(data.Code), data)
}

func (fs *FileStore) LoadSession(code string) (SessionData, error) {
	var data SessionData
	if err := fs.read(fs.sessionPath(code), &data); err != nil {
		return SessionData{}, err
	}
	return data, nil
}

func (fs *FileStore) DeleteSession(code string) error {
	if err := os.Remove(fs.sessionPath(code)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (fs *FileStore) SaveGameState(code, gameID string, snap protocol.GameSnapshot) error {
	return fs.write(fs.gamePath(code, gameID), snap)
}

func (fs *FileStore) LoadGameState(code, gameID string) (protocol.GameSnapshot, error) {
	var snap protocol.GameSnapshot
	if err := fs.read(fs.gamePath(code, gameID), &snap); err != nil {
		return protocol.GameSnapshot{}, err
	}
	return snap, nil
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (fs *FileStore) sessionPath(code string) string {
	return filepath.Join(fs.baseDir, fmt.Sprintf("session-%s.json", code))
}

func (fs *FileStore) gamePath(code, gameID string) string {
	return filepath.Join(fs.baseDir, fmt.Sprintf("session-%s-game-%s.json", code, gameID))
}

// write marshals v and renames a temp file into place, so a crash mid-write
// never leaves a torn snapshot behind.
func (fs *FileStore) write(path string, v any) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return os.Rename(tmp, path)
}

func (fs *FileStore) read(path string, v any) error {
	jsonData, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read snapshot file: %w", err)
	}
	if err := json.Unmarshal(jsonData, v); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return nil
}
