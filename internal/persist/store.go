// Package persist stores small key/value slots on disk, one file per key.
package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"pkt.systems/pslog"
)

// Store persists slots below a state directory, grouped by scope.
type Store struct {
	dir string
	log pslog.Logger
}

type slotRecord struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads a slot. A missing slot is reported with ok=false and no error.
func (s *Store) Load(scope, key string) (string, bool, error) {
	path := s.pathFor(scope, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.debug("slot load miss", "scope", scope, "key", key)
			return "", false, nil
		}
		s.warn("slot load failed", "scope", scope, "key", key, "err", err)
		return "", false, err
	}
	var record slotRecord
	if err := json.Unmarshal(data, &record); err != nil {
		s.warn("slot load failed", "scope", scope, "key", key, "err", err)
		return "", false, err
	}
	s.debug("slot load ok", "scope", scope, "key", key)
	return record.Value, true, nil
}

// Save replaces a slot atomically.
func (s *Store) Save(scope, key, value string) error {
	path := s.pathFor(scope, key)
	data, err := json.MarshalIndent(slotRecord{Key: key, Value: value, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		s.warn("slot save failed", "scope", scope, "key", key, "err", err)
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		s.warn("slot save failed", "scope", scope, "key", key, "err", err)
		return err
	}
	if s.log != nil {
		s.log.Trace("slot save ok", "scope", scope, "key", key)
	}
	return nil
}

// Delete removes a slot. Deleting a missing slot is not an error.
func (s *Store) Delete(scope, key string) error {
	if err := os.Remove(s.pathFor(scope, key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.warn("slot delete failed", "scope", scope, "key", key, "err", err)
		return err
	}
	s.debug("slot delete ok", "scope", scope, "key", key)
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "slot-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) pathFor(scope, key string) string {
	scopeName := sanitize(scope)
	if scopeName == "" {
		scopeName = "default"
	}
	keyName := sanitize(key)
	if keyName == "" {
		keyName = "unknown"
	}
	return filepath.Join(s.dir, scopeName, keyName+".json")
}

func (s *Store) debug(msg string, kv ...any) {
	if s.log != nil {
		s.log.Debug(msg, kv...)
	}
}

func (s *Store) warn(msg string, kv ...any) {
	if s.log != nil {
		s.log.Warn(msg, kv...)
	}
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if strings.Trim(out, ".") == "" {
		return ""
	}
	return out
}
