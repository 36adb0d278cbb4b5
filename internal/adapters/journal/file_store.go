package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/domain/config"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// FileStore keeps one JSON journal per network under <dataDir>/journal
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file backed journal store
func NewFileStore(cfg *config.RuntimeConfig) *FileStore {
	return &FileStore{
		dir: filepath.Join(cfg.DataDir, "journal"),
	}
}

func (s *FileStore) journalPath(network string) string {
	return filepath.Join(s.dir, network+".json")
}

func (s *FileStore) lockPath(network string) string {
	return filepath.Join(s.dir, network+".lock")
}

type fileLock struct {
	path string
	once sync.Once
	err  error
}

func (l *fileLock) Unlock() error {
	l.once.Do(func() {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			l.err = fmt.Errorf("failed to release journal lock: %w", err)
		}
	})
	return l.err
}

// Lock creates <network>.lock exclusively. The file holds the pid of the owner.
func (s *FileStore) Lock(_ context.Context, network string) (usecase.JournalLock, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	path := s.lockPath(network)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			owner, _ := os.ReadFile(path)
			return nil, fmt.Errorf("%w (pid %s); remove %s if no other run is active", domain.ErrJournalLocked, string(owner), path)
		}
		return nil, fmt.Errorf("failed to create journal lock: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write journal lock: %w", err)
	}

	return &fileLock{path: path}, nil
}

// Load reads the journal of a network. Returns an empty journal if none was written yet.
func (s *FileStore) Load(_ context.Context, network string) (*domain.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(network)
}

func (s *FileStore) read(network string) (*domain.Journal, error) {
	data, err := os.ReadFile(s.journalPath(network))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewJournal(network), nil
		}
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	var j domain.Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to parse journal %s: %w", s.journalPath(network), err)
	}
	if j.Network == "" {
		j.Network = network
	}
	if j.Steps == nil {
		j.Steps = make(map[string]*domain.StepResult)
	}
	j.DropEmpty()
	return &j, nil
}

// Persist writes the journal if the stored revision still matches the one it
// was loaded at, and advances the revision. The file is replaced atomically.
func (s *FileStore) Persist(_ context.Context, j *domain.Journal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(j.Network)
	if err != nil {
		return err
	}
	if current.Revision != j.Revision {
		return fmt.Errorf("%w: stored revision %d, loaded %d", domain.ErrJournalConflict, current.Revision, j.Revision)
	}

	next := j.Clone()
	next.Revision++

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	if err := writeFileAtomic(s.journalPath(j.Network), data); err != nil {
		return err
	}

	j.Revision = next.Revision
	return nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp journal: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace journal: %w", err)
	}

	// Persist the rename itself
	if d, err := os.Open(dir); err == nil {
		syncErr := d.Sync()
		d.Close()
		if syncErr != nil && !errors.Is(syncErr, os.ErrInvalid) {
			return fmt.Errorf("failed to sync journal directory: %w", syncErr)
		}
	}
	return nil
}

// Ensure FileStore implements JournalStore
var _ usecase.JournalStore = (*FileStore)(nil)
