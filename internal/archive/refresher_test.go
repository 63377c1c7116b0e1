package archive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestRefresherFastSkip(t *testing.T) {
	dir := t.TempDir()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	s := NewStore(dir)
	mtime := time.Now().UTC().Add(-time.Hour)
	archivePath := filepath.Join(dir, FormatFilename("GeoLite2-City", mtime))
	if err := os.WriteFile(archivePath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s.Publish(Version{Tag: "GeoLite2-City", MTime: mtime, ArchivePath: archivePath, UTime: time.Now().UTC()})

	r := NewRefresher(s, srv.Client())
	v, err := r.Refresh(context.Background(), "GeoLite2-City", srv.URL, Auth{}, time.Hour)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if v != nil {
		t.Fatalf("expected fast-skip to return nil version, got %+v", v)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("expected zero network calls on fast skip, got %d", got)
	}
}

func Test304BumpsUTimeOnly(t *testing.T) {
	dir := t.TempDir()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("If-Modified-Since") == "" {
			t.Error("expected If-Modified-Since header")
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	s := NewStore(dir)
	mtime := time.Now().UTC().Add(-48 * time.Hour)
	archivePath := filepath.Join(dir, FormatFilename("GeoLite2-City", mtime))
	if err := os.WriteFile(archivePath, []byte("archive-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	oldUTime := time.Now().UTC().Add(-2 * time.Hour)
	s.Publish(Version{Tag: "GeoLite2-City", MTime: mtime, ArchivePath: archivePath, UTime: oldUTime})

	r := NewRefresher(s, srv.Client())
	v, err := r.Refresh(context.Background(), "GeoLite2-City", srv.URL, Auth{}, time.Hour)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if v != nil {
		t.Fatalf("304 should report no new version, got %+v", v)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one network call, got %d", got)
	}

	current, ok := s.GetLatest("GeoLite2-City")
	if !ok {
		t.Fatal("expected current version to still exist")
	}
	if !current.UTime.After(oldUTime) {
		t.Fatalf("UTime did not advance: %v", current.UTime)
	}
	if !current.MTime.Equal(mtime) {
		t.Fatalf("MTime changed on 304: %v, want %v", current.MTime, mtime)
	}
}

func TestRefresherHappyPathInstallsNewVersion(t *testing.T) {
	dir := t.TempDir()
	lastModified := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", lastModified.Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("new-archive-bytes"))
	}))
	defer srv.Close()

	s := NewStore(dir)
	r := NewRefresher(s, srv.Client())
	v, err := r.Refresh(context.Background(), "GeoLite2-City", srv.URL, Auth{}, time.Hour)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if v == nil {
		t.Fatal("expected a new version")
	}
	if !v.MTime.Equal(lastModified) {
		t.Fatalf("MTime = %v, want %v", v.MTime, lastModified)
	}
	wantName := FormatFilename("GeoLite2-City", lastModified)
	if filepath.Base(v.ArchivePath) != wantName {
		t.Fatalf("archive path = %s, want basename %s", v.ArchivePath, wantName)
	}
	data, err := os.ReadFile(v.ArchivePath)
	if err != nil {
		t.Fatalf("read installed archive: %v", err)
	}
	if string(data) != "new-archive-bytes" {
		t.Fatalf("installed archive contents = %q", data)
	}
}

func TestRefresherHTTPStatusError(t *testing.T) {
	dir := t.TempDir()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewStore(dir)
	r := NewRefresher(s, srv.Client())
	_, err := r.Refresh(context.Background(), "GeoLite2-City", srv.URL, Auth{}, time.Hour)
	if err == nil {
		t.Fatal("expected an error")
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *HTTPStatusError, got %T: %v", err, err)
	}
	if statusErr.Status != http.StatusInternalServerError {
		t.Fatalf("Status = %d, want 500", statusErr.Status)
	}
}
