// Package archive implements the content-addressed on-disk archive cache
// and the conditional downloader that keeps it fresh.
package archive

import (
	"fmt"
	"regexp"
	"time"
)

const timestampLayout = "20060102150405"

// sidecarTimeLayout is RFC 2822 as emitted by time.RFC1123Z; the .timestamp
// side-files use it verbatim.
const sidecarTimeLayout = time.RFC1123Z

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
var archiveNamePattern = regexp.MustCompile(`^([A-Za-z0-9-]+)-([0-9]{14})\.tar\.gz$`)

// ValidTag reports whether s matches the Tag grammar ([A-Za-z0-9-]+).
func ValidTag(s string) bool {
	return s != "" && tagPattern.MatchString(s)
}

// Version is an immutable snapshot of one archive on disk: the tuple
// (tag, mtime, archive_path, utime) from the data model.
type Version struct {
	Tag         string
	MTime       time.Time // UTC, embedded in the filename
	ArchivePath string
	UTime       time.Time // UTC, last successful upstream check (200 or 304)
}

// FormatFilename renders the canonical archive filename for tag/mtime.
func FormatFilename(tag string, mtime time.Time) string {
	return fmt.Sprintf("%s-%s.tar.gz", tag, mtime.UTC().Format(timestampLayout))
}

// ParseFilename extracts (tag, mtime) from a canonical archive filename. It
// is the left inverse of FormatFilename: for a valid tag t and an mtime m
// with whole-second precision, ParseFilename(FormatFilename(t, m)) returns
// (t, m, true). Sub-second parts of m are dropped by FormatFilename.
func ParseFilename(name string) (tag string, mtime time.Time, ok bool) {
	m := archiveNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", time.Time{}, false
	}
	t, err := time.Parse(timestampLayout, m[2])
	if err != nil {
		return "", time.Time{}, false
	}
	return m[1], t.UTC(), true
}

// MMDBPath is the canonical extraction target for a version's archive: the
// same stem with the .tar.gz suffix replaced by .mmdb.
func (v Version) MMDBPath() string {
	return trimTarGz(v.ArchivePath) + ".mmdb"
}

func trimTarGz(path string) string {
	const suffix = ".tar.gz"
	if len(path) >= len(suffix) && path[len(path)-len(suffix):] == suffix {
		return path[:len(path)-len(suffix)]
	}
	return path
}
