package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// AuthMethod selects how the Refresher authenticates to the upstream.
type AuthMethod int

const (
	AuthNone AuthMethod = iota
	AuthBearer
	AuthBasic
)

// Auth carries the credential for one of the supported AuthMethods.
type Auth struct {
	Method   AuthMethod
	Token    string // AuthBearer
	User     string // AuthBasic
	Password string // AuthBasic, optional
}

func (a Auth) apply(req *http.Request) {
	switch a.Method {
	case AuthBearer:
		if a.Token != "" {
			req.Header.Set("Authorization", "Bearer "+a.Token)
		}
	case AuthBasic:
		if a.User != "" {
			req.SetBasicAuth(a.User, a.Password)
		}
	}
}

// HTTPStatusError reports a non-2xx, non-304 upstream response.
type HTTPStatusError struct {
	Status int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("archive: unexpected http status %d", e.Status)
}

// ErrHTTPStatus is the sentinel errors.Is target for HTTPStatusError.
var ErrHTTPStatus = errors.New("archive: http status")

func (e *HTTPStatusError) Is(target error) bool { return target == ErrHTTPStatus }

// Refresher fetches an upstream archive conditionally and installs it
// atomically. At most one Refresh call per tag is expected to run at a
// time; the Updater Loop serializes calls per tag with its own per-tag
// mutex, and no lock is held here.
type Refresher struct {
	store  *Store
	client *http.Client
}

// NewRefresher builds a Refresher over store using client for upstream
// requests.
func NewRefresher(store *Store, client *http.Client) *Refresher {
	return &Refresher{store: store, client: client}
}

// Refresh fetches tag's archive from url if it is plausibly newer than what
// is already cached, installs it atomically, and returns the new Version.
// Returns (nil, nil) when the refresh was skipped (fast-skip or 304).
func (r *Refresher) Refresh(ctx context.Context, tag, url string, auth Auth, minInterval time.Duration) (*Version, error) {
	current, hasCurrent := r.store.GetLatest(tag)
	if hasCurrent && time.Since(current.UTime) < minInterval {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("archive: build request for %s: %w", tag, err)
	}
	if hasCurrent {
		req.Header.Set("If-Modified-Since", current.MTime.UTC().Format(http.TimeFormat))
	}
	auth.apply(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive: fetch %s: %w", tag, err)
	}
	defer resp.Body.Close()

	now := time.Now().UTC()

	if resp.StatusCode == http.StatusNotModified {
		r.store.BumpUTime(tag, now)
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("archive: refresh %s: %w", tag, &HTTPStatusError{Status: resp.StatusCode})
	}

	mtime := now
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if parsed, err := http.ParseTime(lm); err == nil {
			mtime = parsed.UTC()
		}
	}

	archivePath := filepath.Join(r.store.DataDir(), FormatFilename(tag, mtime))
	if err := r.installBody(resp.Body, archivePath); err != nil {
		return nil, fmt.Errorf("archive: install %s: %w", tag, err)
	}

	if err := r.store.writeSidecar(tag, now); err != nil {
		log.Printf("archive: write timestamp sidecar for %s: %v", tag, err)
	}

	v := Version{Tag: tag, MTime: mtime, ArchivePath: archivePath, UTime: now}
	r.store.Publish(v)
	return &v, nil
}

// installBody streams body to a temp file inside the data dir and
// installs it at archivePath by rename, so the canonical path is never
// partially written.
func (r *Refresher) installBody(body io.Reader, archivePath string) error {
	tmp, err := os.CreateTemp(r.store.DataDir(), ".tmp-download-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, archivePath)
}
