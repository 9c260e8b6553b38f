package lifecycle

import (
	"container/heap"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
	"github.com/robfig/cron/v3"
)

const (
	// Prefix is shared by every scratch directory and temp archive.
	Prefix    = "pwabuilder-cloudapk-"
	ZipSuffix = ".zip"

	defaultTick = 15 * time.Second
)

// Scratch is the set of paths owned by one packaging run.
type Scratch struct {
	ID      string
	Dir     string
	ZipPath string
}

// Manager allocates per-run scratch space and deletes it after a delay.
// Deletion is best-effort: failures are logged and never returned.
type Manager struct {
	root          string
	delay         time.Duration
	orphanAge     time.Duration
	sweepSchedule string
	tick          time.Duration
	now           func() time.Time

	mu      sync.Mutex
	pending deletionHeap

	cron    *cron.Cron
	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

type Option func(*Manager)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSweep enables the orphan sweeper: on every cron tick, prefixed entries
// in root older than orphanAge are removed.
func WithSweep(schedule string, orphanAge time.Duration) Option {
	return func(m *Manager) {
		m.sweepSchedule = schedule
		m.orphanAge = orphanAge
	}
}

// WithTick sets how often Start checks for due deletions.
func WithTick(d time.Duration) Option {
	return func(m *Manager) { m.tick = d }
}

func New(root string, delay time.Duration, opts ...Option) *Manager {
	m := &Manager{
		root:  root,
		delay: delay,
		tick:  defaultTick,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	heap.Init(&m.pending)
	return m
}

// NewFromConfig builds a Manager from the CLEANUP_* environment.
func NewFromConfig() (*Manager, error) {
	cfg, err := config.GetCleanupConfig()
	if err != nil {
		return nil, err
	}
	if err := util.EnsureDirExist(cfg.ROOT); err != nil {
		return nil, err
	}
	return New(cfg.ROOT, cfg.DELAY, WithSweep(cfg.SWEEP_CRON, cfg.ORPHAN_AGE)), nil
}

// Allocate creates a fresh scratch directory. The archive path shares its
// random name but is not created.
func (m *Manager) Allocate() (*Scratch, error) {
	id := uuid.NewString()
	s := &Scratch{
		ID:      id,
		Dir:     filepath.Join(m.root, Prefix+id),
		ZipPath: filepath.Join(m.root, Prefix+id+ZipSuffix),
	}
	if err := os.Mkdir(s.Dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return s, nil
}

// Release schedules both paths of s for deletion after the configured delay.
func (m *Manager) Release(s *Scratch) {
	if s == nil {
		return
	}
	m.Schedule(s.Dir)
	m.Schedule(s.ZipPath)
}

// Schedule queues path for recursive deletion after the configured delay.
func (m *Manager) Schedule(path string) {
	if path == "" {
		return
	}
	due := m.now().Add(m.delay)
	m.mu.Lock()
	heap.Push(&m.pending, deletion{path: path, due: due})
	m.mu.Unlock()
	logger.Log.Debug().Str("path", path).Time("due", due).Msg("scheduled cleanup")
}

// Pending returns the number of deletions not yet run.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.Len()
}

// RunDue deletes everything due at or before now and returns how many
// entries were processed.
func (m *Manager) RunDue(now time.Time) int {
	m.mu.Lock()
	due := m.pending.popDue(now)
	m.mu.Unlock()

	for _, d := range due {
		remove(d.path)
	}
	return len(due)
}

// Flush deletes every pending entry regardless of due time.
func (m *Manager) Flush() int {
	m.mu.Lock()
	due := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, d := range due {
		remove(d.path)
	}
	return len(due)
}

// SweepOrphans removes prefixed entries in root last modified more than the
// orphan age before now. It returns the number removed.
func (m *Manager) SweepOrphans(now time.Time) int {
	if m.orphanAge <= 0 {
		return 0
	}
	entries, err := os.ReadDir(m.root)
	if err != nil {
		logger.Log.Warn().Err(err).Str("root", m.root).Msg("orphan sweep failed to read root")
		return 0
	}
	removed := 0
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), Prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < m.orphanAge {
			continue
		}
		if remove(filepath.Join(m.root, e.Name())) {
			removed++
		}
	}
	if removed > 0 {
		logger.Log.Info().Int("removed", removed).Msg("orphaned scratch entries swept")
	}
	return removed
}

// Start runs due deletions on a ticker and, if configured, the orphan
// sweeper. It returns once the background work is scheduled.
func (m *Manager) Start(ctx context.Context) error {
	if m.sweepSchedule != "" {
		m.cron = cron.New()
		if _, err := m.cron.AddFunc(m.sweepSchedule, func() { m.SweepOrphans(m.now()) }); err != nil {
			return fmt.Errorf("invalid cleanup sweep schedule %q: %w", m.sweepSchedule, err)
		}
		m.cron.Start()
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		t := time.NewTicker(m.tick)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-t.C:
				m.RunDue(m.now())
			}
		}
	}()
	return nil
}

// ShutDown stops the background loops. Pending deletions are kept; the
// orphan sweeper of the next process removes what is left.
func (m *Manager) ShutDown(ctx context.Context) {
	m.stopped.Do(func() { close(m.stop) })
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
	m.wg.Wait()
}

// remove deletes path recursively. Separators are normalized first so the
// same path string works on every host.
func remove(path string) bool {
	p := filepath.FromSlash(util.NormalizeSlashes(path))
	if err := os.RemoveAll(p); err != nil {
		logger.Log.Warn().Err(err).Str("path", p).Msg("unable to clean up, it will be swept later")
		return false
	}
	logger.Log.Debug().Str("path", p).Msg("cleaned up")
	return true
}
