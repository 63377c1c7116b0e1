package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestStoreDiscoverDeduplicatesOlderVersion(t *testing.T) {
	dir := t.TempDir()
	older := FormatFilename("GeoLite2-City", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := FormatFilename("GeoLite2-City", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	writeFile(t, filepath.Join(dir, older), "old")
	writeFile(t, filepath.Join(dir, newer), "new")

	s := NewStore(dir)
	if err := s.Discover(); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	v, ok := s.GetLatest("GeoLite2-City")
	if !ok {
		t.Fatal("expected a current version")
	}
	if filepath.Base(v.ArchivePath) != newer {
		t.Fatalf("current version = %s, want %s", filepath.Base(v.ArchivePath), newer)
	}
	if _, err := os.Stat(filepath.Join(dir, older)); !os.IsNotExist(err) {
		t.Fatalf("older archive should have been cleaned up, stat err = %v", err)
	}
}

func TestStoreDiscoverDefaultsUTimeToMTime(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writeFile(t, filepath.Join(dir, FormatFilename("tzdata", mtime)), "x")

	s := NewStore(dir)
	if err := s.Discover(); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	v, ok := s.GetLatest("tzdata")
	if !ok {
		t.Fatal("expected a current version")
	}
	if !v.UTime.Equal(mtime) {
		t.Fatalf("UTime = %v, want %v (defaulted from MTime)", v.UTime, mtime)
	}
}

func TestStoreCleanupRemovesSiblings(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	archiveName := FormatFilename("GeoLite2-City", mtime)
	archivePath := filepath.Join(dir, archiveName)
	writeFile(t, archivePath, "archive")
	mmdbPath := filepath.Join(dir, "GeoLite2-City-20240101000000.mmdb")
	writeFile(t, mmdbPath, "mmdb")

	s := NewStore(dir)
	s.Cleanup(Version{Tag: "GeoLite2-City", MTime: mtime, ArchivePath: archivePath})

	if _, err := os.Stat(archivePath); !os.IsNotExist(err) {
		t.Fatalf("archive not removed: %v", err)
	}
	if _, err := os.Stat(mmdbPath); !os.IsNotExist(err) {
		t.Fatalf("sibling mmdb not removed: %v", err)
	}
}

func TestStoreBumpUTimeRewritesSidecarOnly(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	archivePath := filepath.Join(dir, FormatFilename("GeoLite2-City", mtime))
	writeFile(t, archivePath, "archive-bytes")

	s := NewStore(dir)
	s.Publish(Version{Tag: "GeoLite2-City", MTime: mtime, ArchivePath: archivePath, UTime: mtime})

	before, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}

	bumped := mtime.Add(2 * time.Hour)
	v, ok := s.BumpUTime("GeoLite2-City", bumped)
	if !ok {
		t.Fatal("expected BumpUTime to find the current version")
	}
	if !v.UTime.Equal(bumped) {
		t.Fatalf("UTime = %v, want %v", v.UTime, bumped)
	}
	if !v.MTime.Equal(mtime) {
		t.Fatalf("MTime changed: %v, want %v", v.MTime, mtime)
	}

	after, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("archive bytes changed on a utime-only bump")
	}
}
