package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StagingDirName    = ".staging"
	batchTimeLayout   = "20060102150405"
	batchSuffixLength = 8
)

// Staging is the write-ahead area archive entries are extracted into before
// the database commit. Each ingestion owns one batch directory.
type Staging struct {
	root string
}

func NewStaging(uploadDir string) (*Staging, error) {
	root := filepath.Join(uploadDir, StagingDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &Staging{root: root}, nil
}

type Batch struct {
	dir string
}

// NewBatch creates <root>/<yyyyMMddHHmmss>_<random8>.
func (s *Staging) NewBatch(now time.Time) (*Batch, error) {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:batchSuffixLength]
	dir := filepath.Join(s.root, now.UTC().Format(batchTimeLayout)+"_"+suffix)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging batch: %w", err)
	}
	return &Batch{dir: dir}, nil
}

func (b *Batch) Dir() string { return b.dir }

// Create opens a new file in the batch. name must be a bare file name.
func (b *Batch) Create(name string) (*os.File, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid staged file name %q", name)
	}
	return os.OpenFile(filepath.Join(b.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
}

func (b *Batch) Open(name string) (*os.File, error) {
	return os.Open(filepath.Join(b.dir, name))
}

func (b *Batch) Discard() error {
	return os.RemoveAll(b.dir)
}

// Sweep removes batches created before cutoff, which belong to ingestions
// that never finished. It returns how many were removed.
func (s *Staging) Sweep(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read staging directory: %w", err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		created, ok := batchTime(entry)
		if !ok || !created.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func batchTime(entry fs.DirEntry) (time.Time, bool) {
	stamp, _, found := strings.Cut(entry.Name(), "_")
	if found {
		if t, err := time.Parse(batchTimeLayout, stamp); err == nil {
			return t, true
		}
	}
	info, err := entry.Info()
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
