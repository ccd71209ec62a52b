package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	cooldownFile = cooldownRecord + ".json"
	statusFile   = statusRecord + ".json"
)

// FileStore keeps the state records as JSON documents under one directory.
// The status document doubles as the externally consumed artifact.
type FileStore struct {
	dir string
}

// NewFileStore builds a file-backed state store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// LoadCooldowns reads the cooldown document. A missing or corrupt file
// yields an empty state without error.
func (s *FileStore) LoadCooldowns(ctx context.Context) (CooldownState, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, cooldownFile))
	if err != nil {
		return CooldownState{}, nil
	}

	state := CooldownState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return CooldownState{}, nil
	}
	return state, nil
}

// SaveCooldowns overwrites the cooldown document wholesale.
func (s *FileStore) SaveCooldowns(ctx context.Context, state CooldownState) error {
	return s.writeDoc(cooldownFile, state)
}

// PublishStatus overwrites the status document with the latest snapshot.
func (s *FileStore) PublishStatus(ctx context.Context, snapshot StatusSnapshot) error {
	return s.writeDoc(statusFile, snapshot)
}

// LoadStatus returns the latest published snapshot, or nil when none exists.
func (s *FileStore) LoadStatus(ctx context.Context) (*StatusSnapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, statusFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read status snapshot: %w", err)
	}

	var snapshot StatusSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode status snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *FileStore) writeDoc(name string, doc any) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

var _ StateStore = (*FileStore)(nil)
