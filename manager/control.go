// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ludari/ludari/storage"
)

// prepare loads or creates Control, prunes dead replicas, ensures the
// reserved watch job exists, and schedules every non-deleted job.
func (m *Manager) prepare(ctx context.Context) error {
	control, err := m.storage.GetControl(ctx)
	if err != nil {
		return fmt.Errorf("manager: load control: %w", err)
	}

	if control == nil {
		control, err = m.storage.CreateControl(ctx, &storage.Control{
			Enabled:  true,
			LogLevel: "info",
			Replicas: []string{m.replicaID},
			Stale:    []string{},
			Version:  uuid.NewString(),
		})
		if err != nil {
			return fmt.Errorf("manager: create control: %w", err)
		}
	}

	pruned := m.pruneReplicas(ctx, control)

	if !sameSet(pruned, control.Replicas) {
		newStale := removeMissing(control.Stale, pruned)
		control, err = m.updateControlWithRetry(ctx, control.ID, storage.ControlPatch{
			ReplicasSet: true,
			Replicas:    pruned,
			StaleSet:    true,
			Stale:       newStale,
		}, 5, true)
		if err != nil {
			return fmt.Errorf("manager: write pruned replica list: %w", err)
		}
	}

	if containsString(control.Stale, m.replicaID) {
		withoutSelf := removeString(control.Stale, m.replicaID)
		control, err = m.updateControlWithRetry(ctx, control.ID, storage.ControlPatch{
			StaleSet: true,
			Stale:    withoutSelf,
		}, 5, true)
		if err != nil {
			m.logger.Debug(fmt.Sprintf("manager: clear self from stale on startup: %v", err))
		}
	}

	m.mu.Lock()
	m.logLevel = control.LogLevel
	m.mu.Unlock()

	if err := m.ensureWatchJob(ctx); err != nil {
		return err
	}

	return m.initializeJobs(ctx)
}

// pruneReplicas returns the replica set that should be persisted: self plus
// every other listed replica that the cache reports alive. A replica whose
// liveness probe returns an error is kept.
func (m *Manager) pruneReplicas(ctx context.Context, control *storage.Control) []string {
	next := []string{}
	for _, r := range control.Replicas {
		if r == m.replicaID {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		alive, err := m.cache.IsReplicaAlive(probeCtx, r)
		cancel()
		if err != nil {
			// Treat a probe error the same as "cannot prove inactivity":
			// keep the replica rather than evict it spuriously.
			next = append(next, r)
			continue
		}
		if alive {
			next = append(next, r)
		}
	}
	next = append(next, m.replicaID)
	return dedupe(next)
}

// updateControlWithRetry retries patch against the current Control under
// optimistic-concurrency conflicts, composing the merged patch with a
// freshly observed version each attempt. exactReplacement controls whether
// patch.Replicas overwrites or unions with the stored set.
func (m *Manager) updateControlWithRetry(ctx context.Context, id string, patch storage.ControlPatch, maxRetries int, exactReplacement bool) (*storage.Control, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		current, err := m.storage.GetControl(ctx)
		if err != nil {
			return nil, fmt.Errorf("manager: refetch control: %w", err)
		}
		if current == nil || current.ID != id {
			return nil, fmt.Errorf("manager: control id mismatch during retry")
		}

		merged := patch
		merged.Version = &current.Version
		next := uuid.NewString()
		merged.NextVersion = &next

		if merged.ReplicasSet && !exactReplacement && len(merged.Replicas) > 0 {
			merged.Replicas = dedupe(append(append([]string{}, current.Replicas...), merged.Replicas...))
		}

		updated, err := m.storage.UpdateControl(ctx, id, merged)
		if err == nil {
			return updated, nil
		}
		lastErr = err
		if !isConflictMessage(err) {
			return nil, err
		}
		time.Sleep(backoffWithJitter(attempt))
	}
	return nil, fmt.Errorf("manager: updateControlWithRetry exhausted %d attempts: %w", maxRetries, lastErr)
}

// triggerReset marks every replica stale and rotates Control's version,
// signaling every replica (including self) to rebuild its scheduler on its
// next watch tick. Conflicts here are tolerated: another replica already
// did the same thing.
func (m *Manager) triggerReset(ctx context.Context) {
	control, err := m.storage.GetControl(ctx)
	if err != nil || control == nil {
		m.logger.Debug(fmt.Sprintf("manager: triggerReset could not load control: %v", err))
		return
	}

	stale := dedupe(append([]string{}, control.Replicas...))
	_, err = m.storage.UpdateControl(ctx, control.ID, storage.ControlPatch{
		Version:     &control.Version,
		NextVersion: strPtr(uuid.NewString()),
		StaleSet:    true,
		Stale:       stale,
	})
	if err != nil {
		m.logger.Debug(fmt.Sprintf("manager: triggerReset conflict (tolerated): %v", err))
	}
}

// resetJobs is invoked when this replica observes itself in Control.stale.
// It is reentrancy-guarded, stops every scheduled timer, rebuilds the
// scheduler, and removes self from stale.
func (m *Manager) resetJobs(ctx context.Context, control *storage.Control) {
	m.mu.Lock()
	if m.isResetting {
		m.mu.Unlock()
		return
	}
	m.isResetting = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.isResetting = false
		m.mu.Unlock()
	}()

	m.mu.Lock()
	for name, id := range m.entries {
		m.cron.Remove(id)
		delete(m.entries, name)
	}
	m.mu.Unlock()

	if err := m.initializeJobs(ctx); err != nil {
		m.logger.Warn(fmt.Sprintf("manager: resetJobs initializeJobs: %v", err))
	}

	refreshed, err := m.storage.GetControl(ctx)
	if err != nil || refreshed == nil {
		return
	}
	withoutSelf := removeString(refreshed.Stale, m.replicaID)
	_, err = m.updateControlWithRetry(ctx, refreshed.ID, storage.ControlPatch{
		StaleSet: true,
		Stale:    withoutSelf,
	}, 5, true)
	if err != nil {
		m.logger.Debug(fmt.Sprintf("manager: resetJobs remove self from stale: %v", err))
	}
}

func (m *Manager) ensureWatchJob(ctx context.Context) error {
	existing, err := m.storage.FindJobByName(ctx, storage.WatchJobName)
	if err != nil {
		return fmt.Errorf("manager: find watch job: %w", err)
	}
	if existing != nil {
		return nil
	}

	watchInterval := int(m.watchInterval / time.Second)
	_, err = m.storage.CreateJob(ctx, &storage.Job{
		Name:    storage.WatchJobName,
		Type:    storage.JobTypeQuery,
		Enabled: true,
		Cron:    watchCronExpr(watchInterval),
		Persist: false,
		Silent:  true,
	})
	if err != nil {
		return fmt.Errorf("manager: create watch job: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			return false
		}
	}
	return true
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func containsString(in []string, v string) bool {
	for _, s := range in {
		if s == v {
			return true
		}
	}
	return false
}

func removeString(in []string, v string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func removeMissing(stale, replicas []string) []string {
	allowed := make(map[string]bool, len(replicas))
	for _, r := range replicas {
		allowed[r] = true
	}
	out := make([]string, 0, len(stale))
	for _, s := range stale {
		if allowed[s] {
			out = append(out, s)
		}
	}
	return out
}
