package geolookup

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/maypok86/otter"

	"github.com/ashgrove/geolocated/internal/archive"
	"github.com/ashgrove/geolocated/internal/geodb"
	"github.com/ashgrove/geolocated/internal/tzdb"
)

// cacheKey bundles the generation counter into the cache key so a hot-swap
// invalidates prior answers for that edition without an explicit purge:
// once Generation bumps, the old key is simply never looked up again and
// ages out of the bounded cache on its own.
type cacheKey struct {
	edition    string
	generation uint64
	locale     string
	ip         string
}

// Facade implements the Status/Lookup operations on top of a Reader Pool,
// Archive Store, and Timezone Table.
type Facade struct {
	pool  *geodb.Pool
	store *archive.Store
	tz    *tzdb.Table
	cache otter.Cache[cacheKey, *Record]
}

// New builds a Facade with a bounded lookup cache sized to maxCacheEntries.
func New(pool *geodb.Pool, store *archive.Store, tz *tzdb.Table, maxCacheEntries int) *Facade {
	cache, err := otter.MustBuilder[cacheKey, *Record](maxCacheEntries).
		Cost(func(_ cacheKey, _ *Record) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("geolookup: failed to create lookup cache: " + err.Error())
	}
	return &Facade{pool: pool, store: store, tz: tz, cache: cache}
}

// Status reports health for every configured edition.
func (f *Facade) Status(editions []string) Status {
	out := Status{Databases: make([]DatabaseStatus, 0, len(editions))}
	for _, tag := range editions {
		out.Databases = append(out.Databases, f.editionStatus(tag))
	}
	return out
}

func (f *Facade) editionStatus(tag string) DatabaseStatus {
	ds := DatabaseStatus{Edition: tag}

	if msg, hasErr := f.pool.Error(tag); hasErr {
		ds.Error = &msg
	}

	if v, hasVersion := f.store.GetLatest(tag); hasVersion {
		utime := v.UTime
		ds.LastUpdateCheck = &utime
	}

	h, ok := f.pool.Current(tag)
	if !ok {
		return ds
	}
	defer h.Release()

	ts := h.BuildEpoch()
	ds.Timestamp = &ts
	ds.Locales = h.Languages()
	fs := h.FileSize
	ds.FileSize = &fs
	afs := h.ArchiveFileSize
	ds.ArchiveFileSize = &afs
	return ds
}

// Lookup resolves edition (falling back to the pool's default), loads the
// current reader, dispatches on database_type, and returns a nil Info when
// the query matched nothing.
func (f *Facade) Lookup(ip net.IP, locale, edition string) (*LookupResult, error) {
	start := time.Now()

	tag := edition
	if tag == "" {
		tag = f.pool.DefaultEdition()
	}
	if !f.pool.HasEdition(tag) {
		return nil, errUnknownEdition(tag)
	}

	gen := f.pool.Generation(tag)
	key := cacheKey{edition: tag, generation: gen, locale: locale, ip: ip.String()}
	if rec, hit := f.cache.Get(key); hit {
		return &LookupResult{
			Edition:   tag,
			IP:        ip.String(),
			Info:      rec,
			ElapsedMS: time.Since(start).Seconds() * 1000,
		}, nil
	}

	h, ok := f.pool.Current(tag)
	if !ok {
		return nil, errMissingDatabase(tag)
	}
	defer h.Release()

	var rec *Record
	var err error
	if h.DatabaseType() == geodb.AsnDatabaseType {
		rec, err = f.lookupASN(h, ip)
	} else {
		rec, err = f.lookupEnterprise(h, ip, locale)
	}
	if err != nil {
		return nil, errInternal(fmt.Sprintf("lookup %s in %s", ip, tag), err)
	}

	f.cache.Set(key, rec)
	return &LookupResult{
		Edition:   tag,
		IP:        ip.String(),
		Info:      rec,
		ElapsedMS: time.Since(start).Seconds() * 1000,
	}, nil
}

func (f *Facade) lookupASN(h *geodb.ReaderHandle, ip net.IP) (*Record, error) {
	rec, found, err := h.LookupASN(ip)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &Record{
		AutonomousSystemNumber:       rec.AutonomousSystemNumber,
		AutonomousSystemOrganization: rec.AutonomousSystemOrganization,
	}, nil
}

func (f *Facade) lookupEnterprise(h *geodb.ReaderHandle, ip net.IP, locale string) (*Record, error) {
	rec, found, err := h.LookupEnterprise(ip)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	out := &Record{
		ContinentID:                  rec.Continent.GeoNameID,
		ContinentCode:                rec.Continent.Code,
		ContinentName:                localizedName(rec.Continent.Names, locale),
		CountryID:                    rec.Country.GeoNameID,
		CountryCode:                  rec.Country.IsoCode,
		CountryName:                  localizedName(rec.Country.Names, locale),
		IsInEU:                       rec.Country.IsInEuropeanUnion,
		CityID:                       rec.City.GeoNameID,
		CityName:                     localizedName(rec.City.Names, locale),
		Latitude:                     rec.Location.Latitude,
		Longitude:                    rec.Location.Longitude,
		AccuracyKM:                   rec.Location.AccuracyRadius,
		MetroCode:                    rec.Location.MetroCode,
		TimeZone:                     rec.Location.TimeZone,
		PostalCode:                   rec.Postal.Code,
		IsAnonymousProxy:             rec.Traits.IsAnonymousProxy,
		IsAnycast:                    rec.Traits.IsAnycast,
		IsSatelliteProvider:          rec.Traits.IsSatelliteProvider,
		AutonomousSystemNumber:       rec.Traits.AutonomousSystemNumber,
		AutonomousSystemOrganization: rec.Traits.AutonomousSystemOrganization,
	}

	if rec.Location.TimeZone != "" {
		if posix, ok := f.tz.Lookup(rec.Location.TimeZone); ok {
			out.PosixTimeZone = posix
		}
	}

	for _, sub := range rec.Subdivisions {
		out.Subdivisions = append(out.Subdivisions, Subdivision{
			GeoNameID: sub.GeoNameID,
			IsoCode:   sub.IsoCode,
			Name:      localizedNameMap(sub.Names, locale),
		})
	}
	return out, nil
}

// localizedName looks up locale verbatim in a names map typed as
// map[string]string on the embedded anonymous structs. Some supported
// locales (zh-CN, pt-BR) are mixed-case keys, so locale is matched exactly
// as given, with no case-folding and no substitute-locale fallback: a
// locale absent from the map yields an empty name, same as the upstream
// database driver does.
func localizedName(names map[string]string, locale string) string {
	return localizedNameMap(names, locale)
}

func localizedNameMap(names map[string]string, locale string) string {
	if names == nil {
		return ""
	}
	return names[locale]
}

// ParseIP validates and parses a request-supplied address string.
func ParseIP(s string) (net.IP, error) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return nil, errInvalidArgument("invalid IP address " + strconv.Quote(s))
	}
	return ip, nil
}
