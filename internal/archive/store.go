package archive

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Store is the durable per-tag versioned cache of .tar.gz artifacts on
// disk: discovery, naming, and cleanup. The in-memory index is a
// copy-on-write snapshot published through xsync.Map so readers never take
// a lock.
type Store struct {
	dataDir string
	index   *xsync.Map[string, Version]
}

// NewStore constructs a Store rooted at dataDir. Call Discover once at
// startup before using GetLatest.
func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		index:   xsync.NewMap[string, Version](),
	}
}

// DataDir returns the root directory this store manages.
func (s *Store) DataDir() string { return s.dataDir }

// Discover scans the data directory, populates the in-memory index, and
// enforces the one-current-per-tag invariant: on a tag collision the older
// version is cleaned up immediately.
func (s *Store) Discover() error {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("archive: read data dir %s: %w", s.dataDir, err)
	}

	var losers []Version
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		tag, mtime, ok := ParseFilename(ent.Name())
		if !ok {
			continue
		}
		v := Version{
			Tag:         tag,
			MTime:       mtime,
			ArchivePath: filepath.Join(s.dataDir, ent.Name()),
		}
		v.UTime = s.readSidecar(tag, mtime)

		if existing, found := s.index.Load(tag); found {
			if v.MTime.After(existing.MTime) {
				losers = append(losers, existing)
				s.index.Store(tag, v)
			} else {
				losers = append(losers, v)
			}
			continue
		}
		s.index.Store(tag, v)
	}

	for _, loser := range losers {
		s.Cleanup(loser)
	}
	return nil
}

// GetLatest returns the current version for tag, if any.
func (s *Store) GetLatest(tag string) (Version, bool) {
	return s.index.Load(tag)
}

// Publish installs v as the current version for its tag, superseding
// whatever was previously current (the caller is responsible for scheduling
// deferred cleanup of the superseded version once it is no longer
// referenced).
func (s *Store) Publish(v Version) (previous Version, hadPrevious bool) {
	previous, hadPrevious = s.index.Load(v.Tag)
	s.index.Store(v.Tag, v)
	return previous, hadPrevious
}

// BumpUTime records a successful-but-unchanged upstream check (a 304): the
// sidecar and index utime move forward, archive_path and mtime do not.
func (s *Store) BumpUTime(tag string, utime time.Time) (Version, bool) {
	v, ok := s.index.Load(tag)
	if !ok {
		return Version{}, false
	}
	v.UTime = utime
	if err := s.writeSidecar(tag, utime); err != nil {
		log.Printf("archive: write timestamp sidecar for %s: %v", tag, err)
	}
	s.index.Store(tag, v)
	return v, true
}

// Cleanup removes the archive file and any sibling files sharing its
// "<tag>-<mtime>" prefix (e.g. an extracted .mmdb). Best-effort: errors are
// logged, never propagated.
func (s *Store) Cleanup(v Version) {
	prefix := strings.TrimSuffix(filepath.Base(v.ArchivePath), ".tar.gz")
	entries, err := os.ReadDir(filepath.Dir(v.ArchivePath))
	if err != nil {
		log.Printf("archive: cleanup %s: list dir: %v", v.Tag, err)
		return
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasPrefix(ent.Name(), prefix) {
			continue
		}
		p := filepath.Join(filepath.Dir(v.ArchivePath), ent.Name())
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("archive: cleanup %s: remove %s: %v", v.Tag, p, err)
		}
	}
}

func (s *Store) sidecarPath(tag string) string {
	return filepath.Join(s.dataDir, tag+".timestamp")
}

func (s *Store) readSidecar(tag string, fallback time.Time) time.Time {
	data, err := os.ReadFile(s.sidecarPath(tag))
	if err != nil {
		return fallback
	}
	t, err := time.Parse(sidecarTimeLayout, strings.TrimSpace(string(data)))
	if err != nil {
		return fallback
	}
	return t.UTC()
}

func (s *Store) writeSidecar(tag string, utime time.Time) error {
	tmp, err := os.CreateTemp(s.dataDir, ".tmp-"+tag+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(utime.UTC().Format(sidecarTimeLayout)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.sidecarPath(tag))
}
