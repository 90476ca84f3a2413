package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileExt is appended to every cache file name.
const FileExt = ".jsbc"

// Path separators become underscores. Underscores, percent signs and the
// other unsafe bytes are percent-escaped, so distinct ids never share a file.
var fileNamer = strings.NewReplacer(
	"%", "%25",
	"_", "%5F",
	"/", "_",
	"\\", "%5C",
	":", "%3A",
)

// FileName maps a module id onto a flat, filesystem-safe file name. The
// mapping is injective.
func FileName(id ModuleID) string {
	return fileNamer.Replace(id) + FileExt
}

// Disk keeps an in-memory layer and writes every insert through to one file
// per module under dir. Entries written by earlier processes are read back
// on first Get.
type Disk struct {
	dir    string
	mem    *Memory
	logger *zap.Logger

	once    sync.Once
	initErr error
}

// DiskOption configures a Disk cache.
type DiskOption func(*Disk)

// WithLogger sets the logger used to report write failures.
func WithLogger(l *zap.Logger) DiskOption {
	return func(d *Disk) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDisk creates a disk cache rooted at dir. The directory is created on
// first use.
func NewDisk(dir string, opts ...DiskOption) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("disk cache: empty directory")
	}
	d := &Disk{
		dir:    dir,
		mem:    NewMemory(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dir returns the storage directory.
func (d *Disk) Dir() string {
	return d.dir
}

// Get implements Cache.
func (d *Disk) Get(id ModuleID) ([]byte, bool) {
	if data, ok := d.mem.Get(id); ok {
		return data, true
	}

	data, err := os.ReadFile(d.path(id))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("Failed to read cache entry", zap.String("module", id), zap.Error(err))
		}
		return nil, false
	}
	d.mem.Insert(id, data)
	return data, true
}

// Insert implements Cache. The value returned is the previous entry from
// memory or, failing that, from disk.
func (d *Disk) Insert(id ModuleID, data []byte) ([]byte, bool) {
	prev, ok := d.Get(id)
	d.mem.Insert(id, data)
	if err := d.write(id, data); err != nil {
		d.logger.Warn("Failed to persist cache entry", zap.String("module", id), zap.Error(err))
	}
	return prev, ok
}

func (d *Disk) write(id ModuleID, data []byte) error {
	d.once.Do(func() {
		d.initErr = os.MkdirAll(d.dir, 0o755)
	})
	if d.initErr != nil {
		return fmt.Errorf("create cache dir: %w", d.initErr)
	}
	return os.WriteFile(d.path(id), data, 0o644)
}

func (d *Disk) path(id ModuleID) string {
	return filepath.Join(d.dir, FileName(id))
}
