// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package manager

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/ludari/ludari/cronspec"
	"github.com/ludari/ludari/lens"
	"github.com/ludari/ludari/storage"
)

func watchCronExpr(intervalSeconds int) string {
	if intervalSeconds < 1 {
		intervalSeconds = 1
	}
	if intervalSeconds > 5 {
		intervalSeconds = 5
	}
	return cronspec.WatchExpr(intervalSeconds)
}

// initializeJobs schedules every enabled, non-deleted job. It fast-returns
// if the fleet or this Manager instance is disabled.
func (m *Manager) initializeJobs(ctx context.Context) error {
	control, err := m.storage.GetControl(ctx)
	if err != nil {
		return fmt.Errorf("manager: initializeJobs load control: %w", err)
	}
	m.mu.Lock()
	localEnabled := m.enabled
	m.mu.Unlock()
	if control == nil || !control.Enabled || !localEnabled {
		return nil
	}

	page := 1
	for {
		result, err := m.storage.FindJobs(ctx, storage.JobFilter{Page: page, PageSize: 200, Deleted: storage.DeletedExcluded})
		if err != nil {
			return fmt.Errorf("manager: initializeJobs find jobs: %w", err)
		}
		for i := range result.Data {
			m.scheduleJob(&result.Data[i])
		}
		if page >= result.LastPage {
			break
		}
		page++
	}
	return nil
}

// scheduleJob (re)binds job's cron expression to executeJob, replacing any
// existing timer for the same job name.
func (m *Manager) scheduleJob(job *storage.Job) {
	m.mu.Lock()
	if id, ok := m.entries[job.Name]; ok {
		m.cron.Remove(id)
		delete(m.entries, job.Name)
	}
	m.mu.Unlock()

	if !job.Enabled || job.Cron == "" || job.Deleted != nil {
		return
	}
	if job.Type == storage.JobTypeQuery && job.Query == "" && job.Name != storage.WatchJobName {
		return
	}
	if job.Type == storage.JobTypeMethod {
		m.mu.Lock()
		hasHandler := m.handler != nil
		m.mu.Unlock()
		if !hasHandler {
			m.logger.Warn(fmt.Sprintf("manager: job %q is type method but no handler is configured, skipping", job.Name))
			return
		}
	}

	schedule, err := cronspec.Parse(job.Cron)
	if err != nil {
		m.logger.Warn(fmt.Sprintf("manager: job %q has invalid cron %q: %v", job.Name, job.Cron, err))
		return
	}

	name := job.Name
	entryID := m.cron.Schedule(schedule, cron.FuncJob(func() {
		m.executeJob(context.Background(), name)
	}))

	m.mu.Lock()
	m.entries[name] = entryID
	m.mu.Unlock()
}

// executeJob is the cron-bound entry point for a single firing: it checks
// for a pending reset, suppresses the watch job itself, builds the bound
// execution closure for the job's type, and delegates to handleJob.
func (m *Manager) executeJob(ctx context.Context, name string) {
	control, err := m.storage.GetControl(ctx)
	if err == nil && control != nil {
		m.mu.Lock()
		m.logLevel = control.LogLevel
		m.mu.Unlock()
		if containsString(control.Stale, m.replicaID) {
			m.resetJobs(ctx, control)
		}
	}

	if name == storage.WatchJobName {
		return
	}

	job, err := m.storage.FindJobByName(ctx, name)
	if err != nil || job == nil {
		return
	}

	execution := m.buildExecution(job)
	m.handleJob(ctx, name, execution)
}

// execution is the bound closure a firing runs: it receives the merged
// job context and a fresh Lens, and returns whatever the underlying
// binding produced.
type execution func(ctx context.Context, jobContext map[string]any, l *lens.Lens) (any, error)

func (m *Manager) buildExecution(job *storage.Job) execution {
	switch job.Type {
	case storage.JobTypeQuery:
		return func(ctx context.Context, jobContext map[string]any, l *lens.Lens) (any, error) {
			return m.runQueryJob(ctx, job)
		}
	case storage.JobTypeMethod:
		return func(ctx context.Context, jobContext map[string]any, l *lens.Lens) (any, error) {
			m.mu.Lock()
			h := m.handler
			m.mu.Unlock()
			if h == nil {
				_ = l.CaptureWarn("no handler configured", "Job execution skipped")
				return nil, nil
			}
			return h.ExecuteMethod(ctx, job.Name, jobContext, l)
		}
	default: // inline
		return func(ctx context.Context, jobContext map[string]any, l *lens.Lens) (any, error) {
			m.mu.Lock()
			fn, ok := m.inlineHandlers[job.Name]
			m.mu.Unlock()
			if !ok {
				m.logger.Warn(fmt.Sprintf("manager: no inline handler registered for job %q", job.Name))
				return nil, nil
			}
			return fn(ctx, jobContext, l)
		}
	}
}

func (m *Manager) runQueryJob(ctx context.Context, job *storage.Job) (any, error) {
	query := job.Query
	m.mu.Lock()
	secret := m.querySecret
	m.mu.Unlock()
	if secret != "" && query != "" {
		decrypted, err := decryptQuery(secret, query)
		if err != nil {
			return nil, err
		}
		query = decrypted
	}
	sanitized, err := sanitizeQuery(query)
	if err != nil {
		return nil, err
	}
	return m.storage.ExecuteQuery(ctx, sanitized)
}
