// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package manager is the orchestration core: lifecycle, cross-replica
// Control synchronization, the cron scheduler, the per-firing execution
// pipeline, and the deadlock watchdog, fronted by a public job-definition
// API.
package manager

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ludari/ludari/cache"
	"github.com/ludari/ludari/cache/inmemory"
	"github.com/ludari/ludari/crypto"
	"github.com/ludari/ludari/lens"
	"github.com/ludari/ludari/storage"
)

// Logger is the minimal, level-gated logging contract the Manager consumes.
type Logger interface {
	Error(msg string)
	Warn(msg string)
	Log(msg string)
	Debug(msg string)
}

// Handler is the host-provided method-dispatch contract for `method`-type
// jobs. Implementations must refuse names outside an explicit whitelist and
// reserved identifiers.
type Handler interface {
	ExecuteMethod(ctx context.Context, methodName string, jobContext map[string]any, l *lens.Lens) (any, error)
	HasMethod(name string) bool
}

// InlineFunc is the signature of a function registered in the inline
// handler registry for `inline`-type jobs.
type InlineFunc func(ctx context.Context, jobContext map[string]any, l *lens.Lens) (any, error)

var (
	ErrDestroyed       = errors.New("manager: destroyed")
	ErrNotInitialized  = errors.New("manager: not initialized")
	ErrValidation      = errors.New("manager: validation error")
	ErrMissingStorage  = errors.New("manager: storage is required")
	ErrMissingLogger   = errors.New("manager: logger is required")
	ErrMissingID       = errors.New("manager: id is required")
	ErrSystemReserved  = errors.New("manager: name is reserved for system use")
	ErrMissingHandler  = errors.New("manager: no handler configured for method job")
)

var (
	jobNamePattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)
	replicaIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{8,}$`)
	uuidPattern       = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)
	reservedNamePfx   = []string{"__", "system:", "internal:"}
)

const watchdogInterval = 60 * time.Second

type activeLock struct {
	handle     *cache.Lock
	jobName    string
	acquiredAt time.Time
	ttl        time.Duration
}

// Options configures a new Manager. Storage and Logger are required; every
// other field has the documented default when left zero-valued.
type Options struct {
	Storage                storage.Storage
	Logger                 Logger
	Cache                  cache.Cache
	Handler                Handler
	QuerySecret            string
	ReplicaID              string
	Enabled                bool
	WatchIntervalSeconds   int
	ReleaseLocksOnShutdown *bool
}

// Manager is the orchestration core. Construct with New, then call
// Initialize before any public API method.
type Manager struct {
	storage     storage.Storage
	logger      Logger
	cache       cache.Cache
	handler     Handler
	querySecret string
	replicaID   string
	enabled     bool
	watchInterval time.Duration
	releaseLocksOnShutdown bool

	mu            sync.Mutex
	initialized   bool
	destroyed     bool
	isResetting   bool
	logLevel      string
	cron          *cron.Cron
	entries       map[string]cron.EntryID
	inlineHandlers map[string]InlineFunc
	activeLocks   map[string]*activeLock

	watchdogCancel context.CancelFunc
	watchdogDone   chan struct{}
}

// New constructs a Manager from opts, validating required fields and
// defaulting optional ones. It does not call Initialize.
func New(opts Options) (*Manager, error) {
	if opts.Storage == nil {
		return nil, ErrMissingStorage
	}
	if opts.Logger == nil {
		return nil, ErrMissingLogger
	}
	if opts.QuerySecret != "" {
		if err := crypto.ValidateSecret(opts.QuerySecret); err != nil {
			return nil, fmt.Errorf("manager: invalid query secret: %w", err)
		}
	}

	replicaID := opts.ReplicaID
	if replicaID == "" {
		replicaID = os.Getenv("LUDARI_REPLICA_ID")
	}
	if replicaID == "" {
		replicaID = uuid.NewString()
	}
	if !uuidPattern.MatchString(replicaID) && !replicaIDPattern.MatchString(replicaID) {
		return nil, fmt.Errorf("%w: replica id %q must be a UUID or match [A-Za-z0-9_-]{8,}", ErrValidation, replicaID)
	}

	watchInterval := opts.WatchIntervalSeconds
	if watchInterval == 0 {
		watchInterval = 5
	}
	if watchInterval < 1 {
		watchInterval = 1
	}
	if watchInterval > 5 {
		watchInterval = 5
	}

	releaseOnShutdown := true
	if opts.ReleaseLocksOnShutdown != nil {
		releaseOnShutdown = *opts.ReleaseLocksOnShutdown
	}

	c := opts.Cache
	if c == nil {
		c = inmemory.New()
	}

	return &Manager{
		storage:                opts.Storage,
		logger:                 opts.Logger,
		cache:                  c,
		handler:                opts.Handler,
		querySecret:            opts.QuerySecret,
		replicaID:              replicaID,
		enabled:                opts.Enabled,
		watchInterval:          time.Duration(watchInterval) * time.Second,
		releaseLocksOnShutdown: releaseOnShutdown,
		logLevel:               "info",
		cron:                   cron.New(cron.WithSeconds()),
		entries:                make(map[string]cron.EntryID),
		inlineHandlers:         make(map[string]InlineFunc),
		activeLocks:            make(map[string]*activeLock),
	}, nil
}

// RegisterInline registers fn as the executable body of an inline-type job
// named name.
func (m *Manager) RegisterInline(name string, fn InlineFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inlineHandlers[name] = fn
}

// Initialize is idempotent: it runs prepare, starts the deadlock watchdog,
// and starts the cron runner.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return ErrDestroyed
	}
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.prepare(ctx); err != nil {
		return err
	}

	m.cron.Start()
	m.startWatchdog()

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()

	return nil
}

// ensureInitialized gates every public mutation or listing API.
func (m *Manager) ensureInitialized() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return ErrDestroyed
	}
	if !m.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Destroy is idempotent and best-effort: stops every cron timer, cancels
// the watchdog, releases tracked locks if configured to, clears the inline
// registry, and tears down the cache.
func (m *Manager) Destroy(ctx context.Context) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	cancel := m.watchdogCancel
	done := m.watchdogDone
	locks := make([]*activeLock, 0, len(m.activeLocks))
	if m.releaseLocksOnShutdown {
		for k, l := range m.activeLocks {
			locks = append(locks, l)
			delete(m.activeLocks, k)
		}
	}
	m.inlineHandlers = make(map[string]InlineFunc)
	m.mu.Unlock()

	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
	}

	if cancel != nil {
		cancel()
		if done != nil {
			<-done
		}
	}

	for _, l := range locks {
		if _, err := m.cache.ReleaseLock(ctx, l.handle); err != nil {
			m.logger.Warn(fmt.Sprintf("manager: release lock on shutdown for %s: %v", l.jobName, err))
		}
	}

	switch c := m.cache.(type) {
	case interface{ Close() }:
		c.Close()
	case interface{ Destroy() }:
		c.Destroy()
	case interface{ Cleanup() }:
		c.Cleanup()
	}
}

func isReservedName(name string) bool {
	for _, pfx := range reservedNamePfx {
		if strings.HasPrefix(name, pfx) {
			return true
		}
	}
	return name == storage.WatchJobName
}

func backoffWithJitter(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
	jitter := time.Duration(rand.Int63n(int64(base) / 10))
	return base + jitter
}

func isConflictMessage(err error) bool {
	if err == nil {
		return false
	}
	if storage.IsConflict(err) {
		return true
	}
	msg := err.Error()
	for _, needle := range []string{"version mismatch", "optimistic lock", "concurrent modification"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
