// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/ludari/ludari/crypto"
	"github.com/ludari/ludari/lens"
	"github.com/ludari/ludari/storage"
)

func decryptQuery(secret, envelope string) (string, error) {
	return crypto.Decrypt(secret, envelope)
}

func sanitizeQuery(query string) (string, error) {
	return crypto.Sanitize(query)
}

// handleJob is the per-firing execution pipeline shared by every job type:
// load, allocate a Lens, optionally persist a JobRun, resolve merged
// context, optionally acquire a distributed lock, run the bound execution,
// and record the outcome.
func (m *Manager) handleJob(ctx context.Context, name string, exec execution) {
	m.mu.Lock()
	destroyed := m.destroyed
	m.mu.Unlock()
	if destroyed {
		return
	}
	if name == "" {
		m.logger.Warn("manager: handleJob called with empty name")
		return
	}

	job, err := m.storage.FindJobByName(ctx, name)
	if err != nil {
		m.logger.Warn(fmt.Sprintf("manager: handleJob load %q: %v", name, err))
		return
	}
	if job == nil || !job.Enabled || job.Deleted != nil {
		return
	}

	l := lens.New()

	var run *storage.JobRun
	if job.Persist {
		created, err := m.storage.CreateJobRun(ctx, &storage.JobRun{JobID: job.ID, Started: time.Now().UTC()})
		if err != nil {
			m.logger.Warn(fmt.Sprintf("manager: create job run for %q: %v", name, err))
		} else {
			run = created
		}
	}

	jobContext := map[string]any{}
	for k, v := range job.Context {
		jobContext[k] = v
	}

	distributed, _ := jobContext["distributed"].(bool)
	if distributed {
		dynamic, err := m.cache.GetJobContext(ctx, name)
		if err == nil {
			for k, v := range dynamic {
				jobContext[k] = v
			}
		}
	}

	var acquired *activeLock
	if distributed {
		ttlSeconds := 30.0
		if v, ok := jobContext["ttl"].(float64); ok {
			ttlSeconds = v
		}
		ttl := time.Duration(ttlSeconds * float64(time.Second))

		lockKey := "job:" + name
		handle, err := m.cache.AcquireLock(ctx, lockKey, ttl)
		if err != nil {
			m.logger.Warn(fmt.Sprintf("manager: acquire lock for %q: %v", name, err))
			return
		}
		if handle == nil {
			m.logger.Debug(fmt.Sprintf("manager: lock %q already held, skipping this firing", lockKey))
			return
		}
		acquired = &activeLock{handle: handle, jobName: name, acquiredAt: time.Now(), ttl: ttl}
		m.mu.Lock()
		m.activeLocks[lockKey] = acquired
		m.mu.Unlock()
	}

	defer m.releaseIfAcquired(ctx, name, acquired)

	if !job.Silent {
		m.logger.Log(fmt.Sprintf("Job started: %s", name))
	}

	result, execErr := exec(ctx, jobContext, l)

	if runOnce, _ := jobContext["runOnce"].(bool); runOnce {
		disabled := false
		if _, err := m.storage.UpdateJob(ctx, job.ID, storage.JobPatch{Enabled: &disabled}); err != nil {
			m.logger.Warn(fmt.Sprintf("manager: disable runOnce job %q: %v", name, err))
		}
	}

	if execErr != nil {
		_ = l.CaptureError("Job execution failed", execErr)
		if run != nil {
			failedAt := time.Now().UTC()
			_, _ = m.storage.UpdateJobRun(ctx, run.ID, storage.JobRunPatch{
				Failed:    &failedAt,
				ResultSet: true,
				Result:    l.GetFrameArray(),
			})
		}
		m.logger.Warn(fmt.Sprintf("manager: job %q failed: %v", name, execErr))
		return
	}

	if run != nil {
		completedAt := time.Now().UTC()
		_, _ = m.storage.UpdateJobRun(ctx, run.ID, storage.JobRunPatch{
			Completed: &completedAt,
			ResultSet: true,
			Result:    serializeResult(result, l),
		})
	}

	if !job.Silent {
		m.logger.Log(fmt.Sprintf("Job completed: %s", name))
	}
}

// serializeResult implements the serializer laws: a Lens result yields its
// frame array; a falsy result with captured frames falls back to them;
// otherwise the value is returned unchanged.
func serializeResult(result any, l *lens.Lens) any {
	if asLens, ok := result.(*lens.Lens); ok {
		return asLens.GetFrameArray()
	}
	if isFalsy(result) && !l.IsEmpty() {
		return l.GetFrameArray()
	}
	return result
}

func isFalsy(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case bool:
		return !t
	case string:
		return t == ""
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	}
	return false
}

func (m *Manager) releaseIfAcquired(ctx context.Context, name string, l *activeLock) {
	if l == nil {
		return
	}
	lockKey := "job:" + name
	if _, err := m.cache.ReleaseLock(ctx, l.handle); err != nil {
		m.logger.Warn(fmt.Sprintf("manager: release lock %q: %v", lockKey, err))
	}
	m.mu.Lock()
	delete(m.activeLocks, lockKey)
	m.mu.Unlock()
}
