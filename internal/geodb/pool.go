package geodb

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/ashgrove/geolocated/internal/archive"
)

// slot is a per-edition container: exactly one Reader Slot and one Error
// Slot, both possibly empty, created at startup for every configured tag.
type slot struct {
	handle     atomic.Pointer[ReaderHandle]
	generation atomic.Uint64
	err        atomic.Pointer[string]
}

// Pool holds one slot per configured edition, loads the best-available
// archive at startup, and atomically replaces a reader after a successful
// refresh while deferring deletion of superseded backing files until every
// in-flight reference has dropped.
type Pool struct {
	store          *archive.Store
	slots          *xsync.Map[string, *slot]
	defaultEdition string
	gcPollInterval time.Duration
}

// NewPool constructs a Pool with one (empty) slot per edition. The first
// edition in the supplied order is the default edition.
func NewPool(store *archive.Store, editions []string, gcPollInterval time.Duration) *Pool {
	p := &Pool{
		store:          store,
		slots:          xsync.NewMap[string, *slot](),
		gcPollInterval: gcPollInterval,
	}
	if len(editions) > 0 {
		p.defaultEdition = editions[0]
	}
	for _, ed := range editions {
		p.slots.Store(ed, &slot{})
	}
	return p
}

// DefaultEdition is the first edition in configured order.
func (p *Pool) DefaultEdition() string { return p.defaultEdition }

// HasEdition reports whether tag was configured (has a slot).
func (p *Pool) HasEdition(tag string) bool {
	_, ok := p.slots.Load(tag)
	return ok
}

// LoadStartup loads the best-available archive for every configured
// edition. Per-edition failures are isolated: the edition's Error Slot
// records the message, the broken on-disk archive is cleaned up, and the
// service still starts.
func (p *Pool) LoadStartup() {
	p.slots.Range(func(tag string, s *slot) bool {
		v, ok := p.store.GetLatest(tag)
		if !ok {
			return true
		}
		handle, err := loadFromArchive(v)
		if err != nil {
			s.err.Store(strPtr(err.Error()))
			log.Printf("geodb: startup load %s failed, cleaning up broken archive: %v", tag, err)
			p.store.Cleanup(v)
			return true
		}
		s.handle.Store(handle)
		s.err.Store(nil)
		return true
	})
}

// HotSwap attempts to load v and, on success, atomically replaces the
// edition's current handle, scheduling the prior handle for deferred
// cleanup. On failure the prior reader is left in place and the error is
// recorded.
func (p *Pool) HotSwap(tag string, v archive.Version) error {
	s, ok := p.slots.Load(tag)
	if !ok {
		return fmt.Errorf("geodb: hot-swap: edition %q is not configured", tag)
	}

	newHandle, err := loadFromArchive(v)
	if err != nil {
		s.err.Store(strPtr(err.Error()))
		return fmt.Errorf("geodb: hot-swap %s: %w", tag, err)
	}

	prev := s.handle.Swap(newHandle)
	s.generation.Add(1)
	s.err.Store(nil)

	if prev != nil {
		p.deferredCleanup(prev)
	}
	return nil
}

// deferredCleanup converts the previous handle into a polled weak
// observer: once its outstanding reference count reaches zero, the backing
// mmap is closed and the archive store reclaims the on-disk artifacts.
func (p *Pool) deferredCleanup(h *ReaderHandle) {
	go func() {
		for h.outstanding() > 0 {
			time.Sleep(p.gcPollInterval)
		}
		if err := h.close(); err != nil {
			log.Printf("geodb: close superseded reader for %s: %v", h.Version.Tag, err)
		}
		p.store.Cleanup(h.Version)
	}()
}

// Current returns a pinned reference to the edition's current reader, if
// any. The caller must call Release on the returned handle exactly once.
func (p *Pool) Current(tag string) (*ReaderHandle, bool) {
	s, ok := p.slots.Load(tag)
	if !ok {
		return nil, false
	}
	h := s.handle.Load()
	if h == nil {
		return nil, false
	}
	return h.acquire(), true
}

// Generation returns a monotonically increasing counter bumped on every
// successful hot-swap of tag's reader; used to invalidate caches keyed on
// (edition, ...) without an explicit purge.
func (p *Pool) Generation(tag string) uint64 {
	s, ok := p.slots.Load(tag)
	if !ok {
		return 0
	}
	return s.generation.Load()
}

// Error returns the most recent error string recorded for tag, if any.
func (p *Pool) Error(tag string) (string, bool) {
	s, ok := p.slots.Load(tag)
	if !ok {
		return "", false
	}
	e := s.err.Load()
	if e == nil {
		return "", false
	}
	return *e, true
}

// RecordError records a refresh-time error (e.g. a transport failure) that
// occurred before any new archive was produced, so no hot-swap happened.
func (p *Pool) RecordError(tag string, err error) {
	s, ok := p.slots.Load(tag)
	if !ok {
		return
	}
	s.err.Store(strPtr(err.Error()))
}

// ClearError clears tag's Error Slot after a successful tick.
func (p *Pool) ClearError(tag string) {
	s, ok := p.slots.Load(tag)
	if !ok {
		return
	}
	s.err.Store(nil)
}

func strPtr(s string) *string { return &s }
