// Package snapshot persists captured images. Every write lands via a
// temp file and an atomic rename so a concurrent reader of the
// well-known latest image never sees a partial file.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// LatestFilename is the well-known name the dashboard serves
const LatestFilename = "last.jpg"

const mirrorTimeout = 10 * time.Second

// Stored describes one persisted capture
type Stored struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Mirror uploads a copy of each capture to remote object storage.
// Mirroring is best-effort: a failed upload is logged, never treated
// as a capture failure.
type Mirror interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Store owns the snapshot directory: the timestamped archive files
// and the atomically maintained latest image.
type Store struct {
	mu      sync.Mutex
	dir     string
	retain  bool
	count   int
	counted bool
	latest  *Stored
	mirror  Mirror
	logger  interface {
		Debug(string, ...any)
		Info(string, ...any)
		Error(string, error, ...any)
	}
}

// NewStore creates a store rooted at dir, creating it if needed.
// The directory must be writable; failing that is fatal to the
// caller, not something to discover at the first capture.
func NewStore(dir string, retain bool, mirror Mirror, logger interface {
	Debug(string, ...any)
	Info(string, ...any)
	Error(string, error, ...any)
}) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("snapshot dir not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return &Store{dir: dir, retain: retain, mirror: mirror, logger: logger}, nil
}

// Dir returns the snapshot directory
func (s *Store) Dir() string {
	return s.dir
}

// LatestPath returns the path of the well-known latest image
func (s *Store) LatestPath() string {
	return filepath.Join(s.dir, LatestFilename)
}

// Save writes the image. The latest file is always replaced; a
// timestamped archive copy is written when retention is on. Filenames
// carry second resolution, collision-free at interval >= 1s.
func (s *Store) Save(img []byte, ts time.Time) (Stored, error) {
	filename := fmt.Sprintf("snapshot_%s.jpg", ts.Format("20060102_150405"))

	stored := Stored{
		Filename:  filename,
		Path:      filepath.Join(s.dir, filename),
		Timestamp: ts,
	}

	if s.retain {
		if err := s.writeAtomic(stored.Path, img); err != nil {
			return Stored{}, fmt.Errorf("write archive snapshot: %w", err)
		}
	} else {
		stored.Path = s.LatestPath()
	}

	if err := s.writeAtomic(s.LatestPath(), img); err != nil {
		return Stored{}, fmt.Errorf("write latest snapshot: %w", err)
	}

	s.mu.Lock()
	if s.retain {
		if s.counted {
			s.count++
		}
	}
	s.latest = &stored
	s.mu.Unlock()

	if s.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		if err := s.mirror.Upload(ctx, filename, img, "image/jpeg"); err != nil {
			s.logger.Error("snapshot mirror upload failed", err, "key", filename)
		}
		cancel()
	}

	s.logger.Debug("snapshot saved", "filename", filename, "bytes", len(img))
	return stored, nil
}

// writeAtomic writes data to a temp file in the target directory and
// renames it into place
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Count returns the number of archived snapshots. The first call
// after startup reconciles against the directory so the count
// survives restarts without a persisted counter.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.counted {
		s.count = len(s.archiveFilesLocked())
		s.counted = true
	}
	return s.count
}

// Latest returns metadata for the most recent capture. After a
// restart it is reconstructed from the newest archive file on disk.
func (s *Store) Latest() (Stored, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest != nil {
		return *s.latest, true
	}

	files := s.archiveFilesLocked()
	if len(files) == 0 {
		return Stored{}, false
	}

	newest := files[0]
	newestInfo, err := os.Stat(filepath.Join(s.dir, newest))
	if err != nil {
		return Stored{}, false
	}
	for _, name := range files[1:] {
		info, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		if info.ModTime().After(newestInfo.ModTime()) {
			newest = name
			newestInfo = info
		}
	}

	stored := Stored{
		Filename:  newest,
		Path:      filepath.Join(s.dir, newest),
		Timestamp: newestInfo.ModTime(),
	}
	s.latest = &stored
	return stored, true
}

// RestoreLatest copies the newest archive image to the well-known
// latest file so the dashboard has a preview right after startup.
func (s *Store) RestoreLatest() error {
	stored, ok := s.Latest()
	if !ok {
		s.logger.Info("no existing snapshot to restore")
		return nil
	}
	if stored.Path == s.LatestPath() {
		return nil
	}

	data, err := os.ReadFile(stored.Path)
	if err != nil {
		return fmt.Errorf("read newest snapshot: %w", err)
	}
	if err := s.writeAtomic(s.LatestPath(), data); err != nil {
		return fmt.Errorf("restore latest snapshot: %w", err)
	}

	s.logger.Info("latest image restored", "filename", stored.Filename)
	return nil
}

// Search lists archive filenames, newest first, optionally filtered
// by a fuzzy query. limit <= 0 means no limit.
func (s *Store) Search(query string, limit int) []string {
	s.mu.Lock()
	files := s.archiveFilesLocked()
	s.mu.Unlock()

	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	if query != "" {
		ranked := fuzzy.RankFindFold(query, files)
		sort.Sort(ranked)
		files = files[:0]
		for _, r := range ranked {
			files = append(files, r.Target)
		}
	}

	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files
}

// archiveFilesLocked lists archived snapshot filenames. Temp files
// and the latest file do not count.
func (s *Store) archiveFilesLocked() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == LatestFilename || strings.HasPrefix(name, ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, name)
		}
	}
	return files
}
