// Package tzdb builds and serves the zone-id to POSIX TZ string table: a
// system zoneinfo scan, and a self-built table compiled from a downloaded
// tzdb source archive via the zic compiler that supersedes the scan.
package tzdb

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Table is the read-mostly zone-id -> POSIX TZ string map. It is published
// as an immutable snapshot through an atomic pointer so lookups never take
// a lock.
type Table struct {
	m atomic.Pointer[map[string]string]
}

// NewTable returns an empty Table.
func NewTable() *Table {
	t := &Table{}
	empty := map[string]string{}
	t.m.Store(&empty)
	return t
}

// Lookup returns the POSIX TZ string for zoneID, if known.
func (t *Table) Lookup(zoneID string) (string, bool) {
	m := t.m.Load()
	if m == nil {
		return "", false
	}
	v, ok := (*m)[zoneID]
	return v, ok
}

// All returns a snapshot of the whole table.
func (t *Table) All() map[string]string {
	m := t.m.Load()
	if m == nil {
		return map[string]string{}
	}
	return *m
}

// Size reports how many zones the table currently knows about.
func (t *Table) Size() int {
	return len(t.All())
}

func (t *Table) publish(m map[string]string) {
	t.m.Store(&m)
}

// LoadFromSystem walks root (typically /usr/share/zoneinfo) and publishes
// the resulting table. It is the first of the two load strategies; a
// self-built table from tzdb source supersedes it when available.
func (t *Table) LoadFromSystem(root string) error {
	m, err := scanZoneinfo(root)
	if err != nil {
		return err
	}
	t.publish(m)
	return nil
}

// scanZoneinfo recursively scans root for TZif files and extracts each
// one's trailing POSIX TZ string.
func scanZoneinfo(root string) (map[string]string, error) {
	result := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort: skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		zoneID := filepath.ToSlash(rel)

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if suffix, ok := posixTZSuffix(data); ok {
			result[zoneID] = suffix
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// posixTZSuffix implements the extraction rule: a TZif file's first four
// bytes are the magic "TZif"; strip one trailing newline, find the last
// remaining newline, and the bytes after it are the POSIX TZ string.
func posixTZSuffix(data []byte) (string, bool) {
	if len(data) < 4 || string(data[:4]) != "TZif" {
		return "", false
	}
	data = bytes.TrimSuffix(data, []byte("\n"))
	idx := bytes.LastIndexByte(data, '\n')
	if idx < 0 {
		return "", false
	}
	suffix := strings.TrimSpace(string(data[idx+1:]))
	if suffix == "" {
		return "", false
	}
	return suffix, true
}
