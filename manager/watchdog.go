// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package manager

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// startWatchdog launches the background ticker that scans activeLocks for
// entries held well past their TTL and releases them. The ticker does not
// keep the process alive on its own.
func (m *Manager) startWatchdog() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.watchdogCancel = cancel
	m.watchdogDone = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(watchdogInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.watchdogTick(ctx)
			}
		}
	}()
}

func (m *Manager) watchdogTick(ctx context.Context) {
	m.mu.Lock()
	stale := make(map[string]*activeLock, len(m.activeLocks))
	now := time.Now()
	for key, l := range m.activeLocks {
		if now.Sub(l.acquiredAt) > 2*l.ttl {
			stale[key] = l
		}
	}
	m.mu.Unlock()

	if len(stale) == 0 {
		return
	}

	var summary []string
	for key, l := range stale {
		age := time.Since(l.acquiredAt)
		if _, err := m.cache.ReleaseLock(ctx, l.handle); err != nil {
			m.logger.Warn(fmt.Sprintf("manager: watchdog release %q: %v", key, err))
		}
		m.mu.Lock()
		delete(m.activeLocks, key)
		m.mu.Unlock()
		summary = append(summary, fmt.Sprintf("%s:%d", l.jobName, int(age.Seconds())))
	}

	m.logger.Debug(fmt.Sprintf("manager: watchdog released stale locks: %s", strings.Join(summary, ", ")))
}
