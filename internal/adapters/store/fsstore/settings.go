package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/hack-pad/hackpadfs"

	"github.com/sceneflow/sceneflow/internal/core/asset"
)

func (s *Store) readSettings() (map[string]string, error) {
	values := make(map[string]string)
	data, err := hackpadfs.ReadFile(s.fs, s.path(settingsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: settings: %w", asset.ErrLoadFailed, err)
	}
	return values, nil
}

func (s *Store) writeSettings(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return s.writeFile(s.path(settingsFile), data)
}

func (s *Store) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values, err := s.readSettings()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", asset.ErrSettingNotFound, key)
	}
	return v, nil
}

func (s *Store) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.readSettings()
	if err != nil {
		return err
	}
	values[key] = value
	return s.writeSettings(values)
}

func (s *Store) DeleteSetting(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.readSettings()
	if err != nil {
		return err
	}
	delete(values, key)
	return s.writeSettings(values)
}

var _ asset.Backend = (*Store)(nil)
