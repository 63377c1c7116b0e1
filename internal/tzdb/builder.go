package tzdb

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/zeebo/xxh3"

	"github.com/ashgrove/geolocated/internal/archive"
)

// tzdbSourceFiles are the zic input files that together make up the IANA
// tzdb, in the order the zic invocation expects them.
var tzdbSourceFiles = []string{
	"africa", "antarctica", "asia", "australasia",
	"etcetera", "europe", "northamerica", "southamerica", "backward",
}

// ErrNoArchive is returned when no current tzdata archive is cached yet.
var ErrNoArchive = errors.New("tzdb: no tzdata archive available")

// ZicError reports a non-zero exit from the zic compiler.
type ZicError struct {
	Err error
}

func (e *ZicError) Error() string { return fmt.Sprintf("tzdb: zic failed: %v", e.Err) }
func (e *ZicError) Unwrap() error { return e.Err }

// Builder compiles a self-built zoneinfo tree from a cached tzdb source
// archive and publishes the result into a Table.
type Builder struct {
	table   *Table
	store   *archive.Store
	zicPath string
}

// NewBuilder constructs a Builder. zicPath may be empty, in which case zic
// is discovered on PATH at build time.
func NewBuilder(table *Table, store *archive.Store, zicPath string) *Builder {
	return &Builder{table: table, store: store, zicPath: zicPath}
}

// resolveZic returns the configured zic path, or the first one found on
// PATH.
func (b *Builder) resolveZic() (string, error) {
	if b.zicPath != "" {
		if _, err := os.Stat(b.zicPath); err != nil {
			return "", fmt.Errorf("tzdb: configured zic path %s: %w", b.zicPath, err)
		}
		return b.zicPath, nil
	}
	return exec.LookPath("zic")
}

// Build decompresses tag's current archive (skipping if already
// decompressed), invokes zic, walks the compiled output, and — on success —
// publishes the result into the Table, superseding whatever the system scan
// produced.
func (b *Builder) Build(tag string) error {
	zicPath, err := b.resolveZic()
	if err != nil {
		return fmt.Errorf("tzdb: zic not available: %w", err)
	}

	v, ok := b.store.GetLatest(tag)
	if !ok {
		return ErrNoArchive
	}

	srcDir := sourceCacheDir(v.ArchivePath)
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		if err := decompressTar(v.ArchivePath, srcDir); err != nil {
			return fmt.Errorf("tzdb: decompress %s: %w", v.ArchivePath, err)
		}
	}

	// zic runs with cmd.Dir = srcDir, so the output dir must be absolute for
	// zic and the scan below to agree on one location.
	outDir, err := filepath.Abs(filepath.Join(srcDir, "zoneinfo"))
	if err != nil {
		return fmt.Errorf("tzdb: resolve output dir: %w", err)
	}
	args := append([]string{"-d", outDir, "-L", "leapseconds"}, tzdbSourceFiles...)
	cmd := exec.Command(zicPath, args...)
	cmd.Dir = srcDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return &ZicError{Err: fmt.Errorf("%w: %s", err, out)}
	}

	m, err := scanZoneinfo(outDir)
	if err != nil {
		return fmt.Errorf("tzdb: scan compiled zoneinfo: %w", err)
	}
	b.table.publish(m)
	return nil
}

// sourceCacheDir names the decompressed-source sibling directory from a
// cache-key hash of the archive's absolute path, so repeated refreshes of
// the same archive reuse one decompressed tree instead of recompiling.
func sourceCacheDir(archivePath string) string {
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		abs = archivePath
	}
	h := xxh3.HashString(abs)
	return filepath.Join(filepath.Dir(archivePath), fmt.Sprintf(".tzsrc-%016x", h))
}

// decompressTar gunzips and untars archivePath into destDir.
func decompressTar(archivePath, destDir string) error {
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

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar read: %w", err)
		}
		target := filepath.Join(destDir, filepath.Clean(hdr.Name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}
