package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

const sessionExt = ".json"

// SessionStore persists one JSON snapshot file per session.
type SessionStore struct {
	dir string
	mu  sync.RWMutex
}

func NewSessionStore(basePath string) (*SessionStore, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	dir := filepath.Join(basePath, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &SessionStore{dir: dir}, nil
}

func (s *SessionStore) Put(_ context.Context, session *domain.Session) error {
	path, err := s.path(session.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(path, func(f *os.File) error {
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("write session: %w", err)
		}
		return nil
	})
}

func (s *SessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return readSession(path)
}

func (s *SessionStore) GetAll(_ context.Context) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	out := make([]domain.Session, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != sessionExt {
			continue
		}
		session, err := readSession(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, *session)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return domain.WrapError(domain.ErrSessionNotFound, "delete session", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.WrapError(domain.ErrSessionNotFound, "delete session", fmt.Errorf("id=%s", id))
		}
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (s *SessionStore) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(s.dir, id+sessionExt), nil
}

func readSession(path string) (*domain.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			id := strings.TrimSuffix(filepath.Base(path), sessionExt)
			return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", filepath.Base(path), err)
	}
	if session.Bales == nil {
		session.Bales = []domain.Bale{}
	}
	return &session, nil
}
