// Package updater drives the periodic, per-edition refresh tick: Refresher
// then Reader Pool hot-swap, with per-edition isolation and a manual
// out-of-band trigger for the same per-tag path the scheduled tick uses.
package updater

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ashgrove/geolocated/internal/archive"
	"github.com/ashgrove/geolocated/internal/geodb"
)

// EditionConfig is one edition's refresh parameters.
type EditionConfig struct {
	Tag         string
	URLTemplate string
	Auth        archive.Auth
	MinInterval time.Duration
}

// Loop drives a cron-scheduled tick over every configured edition in
// order, each tick refreshing then hot-swapping. A per-tag mutex keeps a
// manual trigger (POST .../update-now) from interleaving with a scheduled
// tick for the same edition, matching the "one Refresher call per tag at a
// time" rule without a global lock.
type Loop struct {
	cron      *cron.Cron
	refresher *archive.Refresher
	pool      *geodb.Pool
	editions  []EditionConfig

	tagLocks sync.Map // tag -> *sync.Mutex
}

// NewLoop builds a Loop. Call Start to schedule it.
func NewLoop(refresher *archive.Refresher, pool *geodb.Pool, editions []EditionConfig) *Loop {
	return &Loop{
		cron:      cron.New(),
		refresher: refresher,
		pool:      pool,
		editions:  editions,
	}
}

// Start schedules one cron entry per edition at its own interval so a slow
// edition never delays another's schedule.
func (l *Loop) Start() {
	for _, ec := range l.editions {
		ec := ec
		spec := "@every " + ec.MinInterval.String()
		if _, err := l.cron.AddFunc(spec, func() { l.tick(ec) }); err != nil {
			log.Printf("updater: invalid schedule %q for %s: %v", spec, ec.Tag, err)
		}
	}
	l.cron.Start()
}

// Stop halts the scheduler and waits for any in-flight tick to finish.
func (l *Loop) Stop() {
	<-l.cron.Stop().Done()
}

func (l *Loop) lockFor(tag string) *sync.Mutex {
	v, _ := l.tagLocks.LoadOrStore(tag, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (l *Loop) tick(ec EditionConfig) {
	mu := l.lockFor(ec.Tag)
	mu.Lock()
	defer mu.Unlock()

	url := strings.ReplaceAll(ec.URLTemplate, "{edition}", ec.Tag)
	ctx, cancel := context.WithTimeout(context.Background(), ec.MinInterval)
	defer cancel()

	v, err := l.refresher.Refresh(ctx, ec.Tag, url, ec.Auth, ec.MinInterval)
	if err != nil {
		l.pool.RecordError(ec.Tag, err)
		log.Printf("updater: refresh %s failed: %v", ec.Tag, err)
		return
	}
	if v == nil {
		l.pool.ClearError(ec.Tag)
		return
	}
	if err := l.pool.HotSwap(ec.Tag, *v); err != nil {
		log.Printf("updater: hot-swap %s failed: %v", ec.Tag, err)
		return
	}
	l.pool.ClearError(ec.Tag)
}

// UpdateNow triggers an out-of-band refresh for one edition, bypassing the
// min_interval fast-skip but not the per-tag serialization the scheduled
// tick uses: a tick already in flight for tag is waited out, never
// interleaved.
func (l *Loop) UpdateNow(ctx context.Context, tag string) error {
	var ec EditionConfig
	found := false
	for _, e := range l.editions {
		if e.Tag == tag {
			ec, found = e, true
			break
		}
	}
	if !found {
		return fmt.Errorf("updater: edition %q is not configured", tag)
	}

	mu := l.lockFor(tag)
	mu.Lock()
	defer mu.Unlock()

	url := strings.ReplaceAll(ec.URLTemplate, "{edition}", ec.Tag)
	v, err := l.refresher.Refresh(ctx, ec.Tag, url, ec.Auth, 0)
	if err != nil {
		l.pool.RecordError(ec.Tag, err)
		return fmt.Errorf("updater: manual refresh %s: %w", tag, err)
	}
	if v == nil {
		l.pool.ClearError(ec.Tag)
		return nil
	}
	if err := l.pool.HotSwap(ec.Tag, *v); err != nil {
		return fmt.Errorf("updater: manual hot-swap %s: %w", tag, err)
	}
	l.pool.ClearError(ec.Tag)
	return nil
}
