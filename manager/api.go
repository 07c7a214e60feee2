// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package manager

import (
	"context"
	"fmt"

	"github.com/ludari/ludari/cronspec"
	"github.com/ludari/ludari/crypto"
	"github.com/ludari/ludari/storage"
)

// CreateJob validates and persists a new job, encrypting its query when a
// secret is configured, and triggers a fleet-wide reset when the job is of
// a schedulable type with a cron expression.
func (m *Manager) CreateJob(ctx context.Context, in CreateJobInput) (*storage.Job, error) {
	if err := m.ensureInitialized(); err != nil {
		return nil, err
	}
	if err := m.validateCreate(in); err != nil {
		return nil, err
	}

	query := in.Query
	m.mu.Lock()
	secret := m.querySecret
	m.mu.Unlock()
	if query != "" && secret != "" {
		encrypted, err := crypto.Encrypt(secret, query)
		if err != nil {
			return nil, fmt.Errorf("manager: encrypt query: %w", err)
		}
		query = encrypted
	}

	job, err := m.storage.CreateJob(ctx, &storage.Job{
		Name:    in.Name,
		Type:    in.Type,
		Enabled: in.Enabled,
		Cron:    in.Cron,
		Query:   query,
		Context: in.Context,
		Persist: in.Persist,
		Silent:  in.Silent,
	})
	if err != nil {
		return nil, err
	}

	m.scheduleJob(job)
	if (in.Type == storage.JobTypeQuery || in.Type == storage.JobTypeMethod) && in.Cron != "" {
		m.triggerReset(ctx)
	}

	return job, nil
}

// UpdateJob applies patch to the job identified by id.
func (m *Manager) UpdateJob(ctx context.Context, id string, in UpdateJobInput) (*storage.Job, error) {
	if err := m.ensureInitialized(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrMissingID
	}

	current, err := m.storage.FindJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, storage.NotFound("job", id)
	}
	if isReservedName(current.Name) {
		return nil, fmt.Errorf("%w: job %q is system-reserved", ErrSystemReserved, current.Name)
	}
	if in.Name != nil {
		if err := m.validateName(*in.Name); err != nil {
			return nil, err
		}
		if isReservedName(*in.Name) {
			return nil, fmt.Errorf("%w: cannot rename to reserved name %q", ErrSystemReserved, *in.Name)
		}
	}
	if in.CronSet && in.Cron != nil && *in.Cron != "" {
		if _, err := cronspec.Parse(*in.Cron); err != nil {
			return nil, fmt.Errorf("%w: invalid cron expression: %v", ErrValidation, err)
		}
	}
	if err := m.validateUpdate(current, in); err != nil {
		return nil, err
	}

	patch := storage.JobPatch{
		Name:       in.Name,
		Type:       in.Type,
		Enabled:    in.Enabled,
		CronSet:    in.CronSet,
		Cron:       in.Cron,
		ContextSet: in.ContextSet,
		Context:    in.Context,
		Persist:    in.Persist,
		Silent:     in.Silent,
	}

	if in.Query != nil {
		query := *in.Query
		m.mu.Lock()
		secret := m.querySecret
		m.mu.Unlock()
		if query != "" && secret != "" {
			encrypted, err := crypto.Encrypt(secret, query)
			if err != nil {
				return nil, fmt.Errorf("manager: encrypt query: %w", err)
			}
			query = encrypted
		}
		patch.Query = &query
	}

	if in.ContextSet {
		if err := m.cache.SetJobContext(ctx, current.Name, in.Context, 0); err != nil {
			m.logger.Warn(fmt.Sprintf("manager: push dynamic context for %q: %v", current.Name, err))
		}
	}

	updated, err := m.storage.UpdateJob(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	m.scheduleJob(updated)
	if updated.Type == storage.JobTypeQuery || updated.Type == storage.JobTypeMethod {
		m.triggerReset(ctx)
	}

	return updated, nil
}

// ToggleJob flips a job's enabled flag.
func (m *Manager) ToggleJob(ctx context.Context, id string) (*storage.Job, error) {
	job, err := m.jobForToggle(ctx, id)
	if err != nil {
		return nil, err
	}
	enabled := !job.Enabled
	return m.UpdateJob(ctx, id, UpdateJobInput{Enabled: &enabled})
}

// EnableJob enables a job, short-circuiting if already enabled.
func (m *Manager) EnableJob(ctx context.Context, id string) (*storage.Job, error) {
	job, err := m.jobForToggle(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Enabled {
		return job, nil
	}
	enabled := true
	return m.UpdateJob(ctx, id, UpdateJobInput{Enabled: &enabled})
}

// DisableJob disables a job, short-circuiting if already disabled.
func (m *Manager) DisableJob(ctx context.Context, id string) (*storage.Job, error) {
	job, err := m.jobForToggle(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Enabled {
		return job, nil
	}
	enabled := false
	return m.UpdateJob(ctx, id, UpdateJobInput{Enabled: &enabled})
}

func (m *Manager) jobForToggle(ctx context.Context, id string) (*storage.Job, error) {
	if err := m.ensureInitialized(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrMissingID
	}
	job, err := m.storage.FindJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, storage.NotFound("job", id)
	}
	if isReservedName(job.Name) {
		return nil, fmt.Errorf("%w: job %q is system-reserved", ErrSystemReserved, job.Name)
	}
	return job, nil
}

// GetJob returns a job by id, hiding the reserved watch job.
func (m *Manager) GetJob(ctx context.Context, id string) (*storage.Job, error) {
	if err := m.ensureInitialized(); err != nil {
		return nil, err
	}
	job, err := m.storage.FindJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil || job.Name == storage.WatchJobName {
		return nil, nil
	}
	return job, nil
}

// DeleteJob soft-deletes a job and stops its timer if running.
func (m *Manager) DeleteJob(ctx context.Context, id string) error {
	if err := m.ensureInitialized(); err != nil {
		return err
	}
	if id == "" {
		return ErrMissingID
	}
	job, err := m.storage.FindJob(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return storage.NotFound("job", id)
	}
	if isReservedName(job.Name) {
		return fmt.Errorf("%w: job %q is system-reserved", ErrSystemReserved, job.Name)
	}

	m.mu.Lock()
	if entryID, ok := m.entries[job.Name]; ok {
		m.cron.Remove(entryID)
		delete(m.entries, job.Name)
	}
	m.mu.Unlock()

	return m.storage.DeleteJob(ctx, id)
}

// ListJobs returns a filtered, paginated page of jobs, guarding against the
// reserved watch job slipping through.
func (m *Manager) ListJobs(ctx context.Context, filter storage.JobFilter) (storage.PaginatedResponse[storage.Job], error) {
	if err := m.ensureInitialized(); err != nil {
		return storage.PaginatedResponse[storage.Job]{}, err
	}
	page, err := m.storage.FindJobs(ctx, filter)
	if err != nil {
		return storage.PaginatedResponse[storage.Job]{}, err
	}
	filtered := page.Data[:0]
	for _, j := range page.Data {
		if j.Name != storage.WatchJobName {
			filtered = append(filtered, j)
		}
	}
	page.Data = filtered
	return page, nil
}

// ListJobRuns returns a filtered, paginated page of job runs.
func (m *Manager) ListJobRuns(ctx context.Context, filter storage.JobRunFilter) (storage.PaginatedResponse[storage.JobRun], error) {
	if err := m.ensureInitialized(); err != nil {
		return storage.PaginatedResponse[storage.JobRun]{}, err
	}
	return m.storage.FindJobRuns(ctx, filter)
}

// GetControl returns the singleton Control record.
func (m *Manager) GetControl(ctx context.Context) (*storage.Control, error) {
	if err := m.ensureInitialized(); err != nil {
		return nil, err
	}
	return m.storage.GetControl(ctx)
}

// ToggleControl flips the fleet-wide enabled flag without a version check.
func (m *Manager) ToggleControl(ctx context.Context) (*storage.Control, error) {
	if err := m.ensureInitialized(); err != nil {
		return nil, err
	}
	control, err := m.storage.GetControl(ctx)
	if err != nil {
		return nil, err
	}
	if control == nil {
		return nil, storage.NotFound("control", "")
	}
	enabled := !control.Enabled
	return m.storage.UpdateControl(ctx, control.ID, storage.ControlPatch{Enabled: &enabled})
}

// PurgeControl resets the fleet's replica bookkeeping and re-registers self.
func (m *Manager) PurgeControl(ctx context.Context) error {
	if err := m.ensureInitialized(); err != nil {
		return err
	}
	control, err := m.storage.GetControl(ctx)
	if err != nil {
		return err
	}
	if control == nil {
		return storage.NotFound("control", "")
	}
	if _, err := m.updateControlWithRetry(ctx, control.ID, storage.ControlPatch{
		ReplicasSet: true,
		Replicas:    []string{},
		StaleSet:    true,
		Stale:       []string{},
	}, 5, true); err != nil {
		return fmt.Errorf("manager: purgeControl: %w", err)
	}
	return m.prepare(ctx)
}
