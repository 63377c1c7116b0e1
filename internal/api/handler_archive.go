package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ashgrove/geolocated/internal/archive"
	"github.com/ashgrove/geolocated/internal/geodb"
)

// HandleArchiveDownload returns a handler for
// GET /v1/editions/{tag}/archive: streams the edition's current .tar.gz
// with Last-Modified/Content-Length/Content-Type and honors
// If-Modified-Since with a 304. It pins the Reader Handle for the stream's
// duration so a concurrent hot-swap cannot unlink the file mid-download;
// if no reader is loaded yet it falls back to the raw Archive Version.
func HandleArchiveDownload(store *archive.Store, pool *geodb.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := PathParam(r, "tag")
		if !pool.HasEdition(tag) {
			WriteError(w, http.StatusNotFound, "UNKNOWN_EDITION", fmt.Sprintf("unknown edition %q", tag))
			return
		}

		if h, ok := pool.Current(tag); ok {
			defer h.Release()
			serveArchiveFile(w, r, h.ArchivePath, h.Version)
			return
		}

		v, ok := store.GetLatest(tag)
		if !ok {
			WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", fmt.Sprintf("no archive available for edition %q", tag))
			return
		}
		serveArchiveFile(w, r, v.ArchivePath, v)
	}
}

func serveArchiveFile(w http.ResponseWriter, r *http.Request, path string, v archive.Version) {
	f, err := os.Open(path)
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "archive file is not currently available")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeContent(w, r, filepath.Base(path), v.MTime, f)
}
