// Package geodb implements the per-edition memory-mapped reader pool:
// extraction from archives, atomic hot-swap, and deferred cleanup of
// superseded readers.
package geodb

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oschwald/maxminddb-golang"

	"github.com/ashgrove/geolocated/internal/archive"
)

// ReaderHandle pins one memory-mapped reader and the archive version it was
// extracted from. Lookups hold a counted reference for the duration of the
// query; the handle is only unmapped and its files deleted once that count
// returns to zero after a hot-swap supersedes it.
type ReaderHandle struct {
	ArchivePath     string
	MMDBPath        string
	FileSize        int64
	ArchiveFileSize int64
	Version         archive.Version

	reader *maxminddb.Reader
	refs   atomic.Int64
}

// DatabaseType returns the mmdb metadata's database_type field, e.g.
// "GeoLite2-ASN" or "GeoLite2-Enterprise".
func (h *ReaderHandle) DatabaseType() string {
	return h.reader.Metadata.DatabaseType
}

// Languages returns the locales present in the mmdb metadata.
func (h *ReaderHandle) Languages() []string {
	return h.reader.Metadata.Languages
}

// BuildEpoch returns the mmdb metadata's build_epoch as the instant the
// database was built, per the upstream distributor's own build timestamp
// rather than the archive's Last-Modified date.
func (h *ReaderHandle) BuildEpoch() time.Time {
	return time.Unix(int64(h.reader.Metadata.BuildEpoch), 0).UTC()
}

func (h *ReaderHandle) acquire() *ReaderHandle {
	h.refs.Add(1)
	return h
}

// Release must be called exactly once for every handle obtained from
// Pool.Current.
func (h *ReaderHandle) Release() {
	h.refs.Add(-1)
}

func (h *ReaderHandle) outstanding() int64 {
	return h.refs.Load()
}

func (h *ReaderHandle) close() error {
	if h.reader == nil {
		return nil
	}
	return h.reader.Close()
}

// loadFromArchive opens (extracting if necessary) the mmdb backing v and
// returns a fresh, zero-referenced ReaderHandle.
func loadFromArchive(v archive.Version) (*ReaderHandle, error) {
	mmdbPath := v.MMDBPath()
	if _, err := os.Stat(mmdbPath); os.IsNotExist(err) {
		if err := extractMMDB(v.ArchivePath, mmdbPath); err != nil {
			return nil, fmt.Errorf("geodb: extract %s: %w", v.ArchivePath, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("geodb: stat %s: %w", mmdbPath, err)
	}

	reader, err := maxminddb.Open(mmdbPath)
	if err != nil {
		// Corrupt download: the bad mmdb must not poison the slot.
		os.Remove(mmdbPath)
		return nil, fmt.Errorf("geodb: open mmap %s: %w", mmdbPath, err)
	}

	archiveInfo, archErr := os.Stat(v.ArchivePath)
	mmdbInfo, mmdbErr := os.Stat(mmdbPath)
	if archErr != nil || mmdbErr != nil {
		reader.Close()
		return nil, fmt.Errorf("geodb: stat sizes for %s: archive=%v mmdb=%v", v.ArchivePath, archErr, mmdbErr)
	}

	return &ReaderHandle{
		ArchivePath:     v.ArchivePath,
		MMDBPath:        mmdbPath,
		FileSize:        mmdbInfo.Size(),
		ArchiveFileSize: archiveInfo.Size(),
		Version:         v,
		reader:          reader,
	}, nil
}

// extractMMDB gunzips and untars archivePath, extracting the first member
// whose filename extension is mmdb to destPath via a temp-file-and-rename.
func extractMMDB(archivePath, destPath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gunzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("no .mmdb member found in %s", archivePath)
		}
		if err != nil {
			return fmt.Errorf("tar read: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || strings.ToLower(filepath.Ext(hdr.Name)) != ".mmdb" {
			continue
		}
		return installExtracted(tr, destPath)
	}
}

func installExtracted(r io.Reader, destPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-extract-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, destPath)
}
