package geolookup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashgrove/geolocated/internal/archive"
	"github.com/ashgrove/geolocated/internal/geodb"
	"github.com/ashgrove/geolocated/internal/tzdb"
)

// writeTestArchive builds a minimal tar.gz wrapping a real test mmdb
// fixture, mirroring the geodb package's own test helper so the Reader Pool
// can open an actual memory-mapped database.
func writeTestArchive(t *testing.T, dir, tag string, mtime time.Time, mmdbBytes []byte) archive.Version {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	hdr := &tar.Header{Name: tag + ".mmdb", Mode: 0o644, Size: int64(len(mmdbBytes))}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(mmdbBytes); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	archivePath := filepath.Join(dir, archive.FormatFilename(tag, mtime))
	if err := os.WriteFile(archivePath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return archive.Version{Tag: tag, MTime: mtime, ArchivePath: archivePath, UTime: mtime}
}

func testMMDBBytes(t *testing.T) []byte {
	t.Helper()
	candidates := []string{
		"../../_examples/Resinat-Resin/internal/geoip/testdata/GeoIP2-Country-Test.mmdb",
	}
	for _, c := range candidates {
		if data, err := os.ReadFile(c); err == nil {
			return data
		}
	}
	t.Skip("no mmdb fixture available in this environment")
	return nil
}

func newTestFacade(t *testing.T, tag string) (*Facade, *geodb.Pool) {
	t.Helper()
	mmdb := testMMDBBytes(t)
	dir := t.TempDir()

	store := archive.NewStore(dir)
	v := writeTestArchive(t, dir, tag, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), mmdb)
	store.Publish(v)

	pool := geodb.NewPool(store, []string{tag}, 10*time.Millisecond)
	pool.LoadStartup()

	tz := tzdb.NewTable()
	f := New(pool, store, tz, 64)
	return f, pool
}

func TestLookupUnknownEditionIsServiceError(t *testing.T) {
	f, _ := newTestFacade(t, "GeoLite2-City")
	_, err := f.Lookup(net.ParseIP("1.1.1.1"), "en", "NotConfigured")
	if err == nil {
		t.Fatal("expected an error for an unconfigured edition")
	}
	se, ok := err.(*ServiceError)
	if !ok {
		t.Fatalf("expected a *ServiceError, got %T", err)
	}
	if se.Code != CodeUnknownEdition {
		t.Fatalf("Code = %v, want CodeUnknownEdition", se.Code)
	}
}

func TestLookupDefaultsEditionWhenEmpty(t *testing.T) {
	f, _ := newTestFacade(t, "GeoLite2-City")
	res, err := f.Lookup(net.ParseIP("81.2.69.142"), "en", "")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.Edition != "GeoLite2-City" {
		t.Fatalf("Edition = %q, want default edition", res.Edition)
	}
}

func TestLookupCachesAndInvalidatesOnGenerationBump(t *testing.T) {
	f, pool := newTestFacade(t, "GeoLite2-City")
	ip := net.ParseIP("81.2.69.142")

	first, err := f.Lookup(ip, "en", "")
	if err != nil {
		t.Fatalf("first Lookup: %v", err)
	}

	// A second lookup for the same key must hit the cache and return the
	// same *Record pointer rather than re-querying the reader.
	second, err := f.Lookup(ip, "en", "")
	if err != nil {
		t.Fatalf("second Lookup: %v", err)
	}
	if first.Info != second.Info {
		t.Fatal("expected the second lookup to be served from the cache (same *Record pointer)")
	}

	mmdb := testMMDBBytes(t)
	// Force a hot-swap so the generation counter bumps; the previously
	// cached key must no longer be reachable under the new generation.
	tmpDir := t.TempDir()
	v2 := writeTestArchive(t, tmpDir, "GeoLite2-City", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), mmdb)
	if err := pool.HotSwap("GeoLite2-City", v2); err != nil {
		t.Fatalf("HotSwap: %v", err)
	}

	third, err := f.Lookup(ip, "en", "")
	if err != nil {
		t.Fatalf("third Lookup: %v", err)
	}
	if first.Info == third.Info {
		t.Fatal("expected a cache miss after generation bump, but got the stale cached record")
	}
}

func TestLocalizedNameMatchesLocaleExactlyWithNoFallback(t *testing.T) {
	names := map[string]string{
		"en":    "United Kingdom",
		"de":    "Vereinigtes Königreich",
		"zh-CN": "英国",
	}
	if got := localizedNameMap(names, "fr"); got != "" {
		t.Fatalf("localizedNameMap(fr) = %q, want empty (no substitute-locale fallback)", got)
	}
	if got := localizedNameMap(names, "de"); got != "Vereinigtes Königreich" {
		t.Fatalf("localizedNameMap(de) = %q, want German name", got)
	}
	if got := localizedNameMap(names, "zh-CN"); got != "英国" {
		t.Fatalf("localizedNameMap(zh-CN) = %q, want exact mixed-case key match", got)
	}
	if got := localizedNameMap(names, "zh-cn"); got != "" {
		t.Fatalf("localizedNameMap(zh-cn) = %q, want empty (locale keys are case-sensitive)", got)
	}
	if got := localizedNameMap(nil, "en"); got != "" {
		t.Fatalf("localizedNameMap(nil) = %q, want empty string", got)
	}
}

func TestParseIPRejectsGarbage(t *testing.T) {
	if _, err := ParseIP("not-an-ip"); err == nil {
		t.Fatal("expected an error for a malformed IP string")
	}
	ip, err := ParseIP(" 127.0.0.1 ")
	if err != nil {
		t.Fatalf("ParseIP: %v", err)
	}
	if !ip.Equal(net.ParseIP("127.0.0.1")) {
		t.Fatalf("ParseIP = %v, want 127.0.0.1", ip)
	}
}
