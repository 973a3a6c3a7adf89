package persist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

const (
	DefaultDataDir = "./sessions"

	filePrefix = "session"
	fileSuffix = ".dat"
)

// FileBackend keeps one file per session, <dir>/session<id>.dat.
type FileBackend struct {
	fs  afero.Fs
	dir string

	mu     sync.RWMutex
	closed bool
}

// NewFileBackend stores session files in dir on the OS filesystem.
func NewFileBackend(dir string) (*FileBackend, error) {
	return NewFileBackendFs(afero.NewOsFs(), dir)
}

// NewFileBackendFs stores session files in dir on fs, creating dir if needed.
func NewFileBackendFs(fs afero.Fs, dir string) (*FileBackend, error) {
	if dir == "" {
		dir = DefaultDataDir
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &FileBackend{fs: fs, dir: dir}, nil
}

// PathFor returns the file that holds session id.
func (b *FileBackend) PathFor(id int) string {
	return filepath.Join(b.dir, filePrefix+strconv.Itoa(id)+fileSuffix)
}

// Save writes to a temporary file of its own and renames it over the old
// one, so a crash mid-write never leaves a truncated record behind and
// concurrent saves of one id never share a temporary file.
func (b *FileBackend) Save(ctx context.Context, id int, data []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStoreClosed
	}

	f, err := afero.TempFile(b.fs, b.dir, filePrefix+strconv.Itoa(id)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = b.fs.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := b.fs.Chmod(tmp, 0o644); err != nil {
		_ = b.fs.Remove(tmp)
		return fmt.Errorf("chmod %s: %w", tmp, err)
	}

	path := b.PathFor(id)
	if err := b.fs.Rename(tmp, path); err != nil {
		_ = b.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func (b *FileBackend) Load(ctx context.Context, id int) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrStoreClosed
	}

	data, err := afero.ReadFile(b.fs, b.PathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (b *FileBackend) Delete(ctx context.Context, id int) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStoreClosed
	}

	if err := b.fs.Remove(b.PathFor(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List scans the data directory for session files. Other files are ignored.
func (b *FileBackend) List(ctx context.Context) ([]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrStoreClosed
	}

	entries, err := afero.ReadDir(b.fs, b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := parseFileName(entry.Name()); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func parseFileName(name string) (int, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0, false
	}
	id, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return id, true
}
