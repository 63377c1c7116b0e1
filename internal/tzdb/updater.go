package tzdb

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ashgrove/geolocated/internal/archive"
)

// SystemZoneinfoDir is the conventional location of the platform's own
// compiled zoneinfo tree.
const SystemZoneinfoDir = "/usr/share/zoneinfo"

// Tag is the archive tag under which the tzdb source tarball is cached,
// alongside the GeoIP editions in the same data directory.
const Tag = "tzdata"

// Initialize runs the two ordered load strategies from the component
// design: a system zoneinfo scan, then — if zic is available and a current
// tzdata archive already exists — a self-built table that supersedes it.
func Initialize(table *Table, store *archive.Store, zicPath string) {
	if err := table.LoadFromSystem(SystemZoneinfoDir); err != nil {
		log.Printf("tzdb: system zoneinfo scan failed: %v", err)
	} else {
		log.Printf("tzdb: loaded %d zones from %s", table.Size(), SystemZoneinfoDir)
	}

	builder := NewBuilder(table, store, zicPath)
	if err := builder.Build(Tag); err != nil {
		log.Printf("tzdb: self-built table unavailable, keeping system scan: %v", err)
		return
	}
	log.Printf("tzdb: self-built table replaced system scan (%d zones)", table.Size())
}

// Updater drives the periodic tzdata refresh: the same conditional-download
// discipline as the GeoIP editions, followed by a rebuild on success.
type Updater struct {
	cron        *cron.Cron
	refresher   *archive.Refresher
	builder     *Builder
	urlTemplate string
	auth        archive.Auth
	minInterval time.Duration
}

// NewUpdater builds an Updater for the tzdata tag using interval as
// both the cron period and the Refresher's min_interval.
func NewUpdater(refresher *archive.Refresher, builder *Builder, urlTemplate string, auth archive.Auth, interval time.Duration) *Updater {
	return &Updater{
		cron:        cron.New(),
		refresher:   refresher,
		builder:     builder,
		urlTemplate: urlTemplate,
		auth:        auth,
		minInterval: interval,
	}
}

// Start schedules the periodic refresh. Missed ticks coalesce because the
// cron engine always schedules from now rather than accumulating backlog.
func (u *Updater) Start() {
	spec := "@every " + u.minInterval.String()
	if _, err := u.cron.AddFunc(spec, u.tick); err != nil {
		log.Printf("tzdb: invalid schedule %q: %v", spec, err)
		return
	}
	u.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight tick to finish.
func (u *Updater) Stop() {
	<-u.cron.Stop().Done()
}

func (u *Updater) tick() {
	url := strings.ReplaceAll(u.urlTemplate, "{edition}", Tag)
	ctx, cancel := context.WithTimeout(context.Background(), u.minInterval)
	defer cancel()

	v, err := u.refresher.Refresh(ctx, Tag, url, u.auth, u.minInterval)
	if err != nil {
		log.Printf("tzdb: refresh failed: %v", err)
		return
	}
	if v == nil {
		return // fast-skip or 304, nothing to rebuild
	}
	if err := u.builder.Build(Tag); err != nil {
		log.Printf("tzdb: rebuild after refresh failed: %v", err)
	}
}
