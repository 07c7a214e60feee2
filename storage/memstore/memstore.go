// Package memstore is an in-process, map-backed implementation of
// storage.Storage, serializing all access through a single sync.RWMutex.
// It doubles as the default single-replica backend and as the fixture used
// by the manager package's tests, mirroring golly/chrono's
// InMemoryStorage.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ludari/ludari/storage"
)

type memStore struct {
	mu sync.RWMutex

	control *storage.Control

	jobs     map[string]*storage.Job
	jobsByName map[string]string // name -> id, live jobs only

	runs map[string]*storage.JobRun
}

// New creates an empty in-memory Storage.
func New() storage.Storage {
	return &memStore{
		jobs:       make(map[string]*storage.Job),
		jobsByName: make(map[string]string),
		runs:       make(map[string]*storage.JobRun),
	}
}

func (m *memStore) GetControl(_ context.Context) (*storage.Control, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.control.Clone(), nil
}

func (m *memStore) CreateControl(_ context.Context, c *storage.Control) (*storage.Control, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.control != nil {
		return nil, storage.Conflict("control already exists")
	}

	cp := c.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.control = cp
	return m.control.Clone(), nil
}

func (m *memStore) UpdateControl(_ context.Context, id string, patch storage.ControlPatch) (*storage.Control, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.control == nil || m.control.ID != id {
		return nil, storage.NotFound("control", id)
	}
	if patch.Version != nil && *patch.Version != m.control.Version {
		return nil, storage.Conflict("version mismatch")
	}

	if patch.Enabled != nil {
		m.control.Enabled = *patch.Enabled
	}
	if patch.LogLevel != nil {
		m.control.LogLevel = *patch.LogLevel
	}
	if patch.ReplicasSet {
		m.control.Replicas = append([]string(nil), patch.Replicas...)
	}
	if patch.StaleSet {
		m.control.Stale = append([]string(nil), patch.Stale...)
	}
	if patch.NextVersion != nil {
		m.control.Version = *patch.NextVersion
	}
	m.control.UpdatedAt = time.Now().UTC()

	return m.control.Clone(), nil
}

func (m *memStore) FindJobs(_ context.Context, filter storage.JobFilter) (storage.PaginatedResponse[storage.Job], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]*storage.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.Name == storage.WatchJobName {
			continue
		}
		if !matchesJobFilter(j, filter) {
			continue
		}
		matches = append(matches, j)
	}

	return paginateJobs(matches, filter.Page, filter.PageSize), nil
}

func matchesJobFilter(j *storage.Job, filter storage.JobFilter) bool {
	switch filter.Deleted {
	case storage.DeletedExcluded:
		if j.Deleted != nil {
			return false
		}
	case storage.DeletedOnly:
		if j.Deleted == nil {
			return false
		}
	}
	if filter.Name != "" && j.Name != filter.Name {
		return false
	}
	if filter.Type != "" && j.Type != filter.Type {
		return false
	}
	if filter.Enabled != nil && j.Enabled != *filter.Enabled {
		return false
	}
	return true
}

func paginateJobs(matches []*storage.Job, page, pageSize int) storage.PaginatedResponse[storage.Job] {
	if pageSize <= 0 {
		pageSize = len(matches)
		if pageSize == 0 {
			pageSize = 1
		}
	}
	lastPage := (len(matches) + pageSize - 1) / pageSize
	if lastPage < 1 {
		lastPage = 1
	}
	if page < 1 {
		page = 1
	}
	if page > lastPage {
		page = lastPage
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(matches) {
		start = len(matches)
	}
	if end > len(matches) {
		end = len(matches)
	}

	data := make([]storage.Job, 0, end-start)
	for _, j := range matches[start:end] {
		data = append(data, *j.Clone())
	}

	return storage.PaginatedResponse[storage.Job]{
		Data:     data,
		Page:     page,
		PageSize: pageSize,
		Total:    int64(len(matches)),
		LastPage: lastPage,
	}
}

func (m *memStore) FindJob(_ context.Context, id string) (*storage.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok || j.Deleted != nil {
		return nil, nil
	}
	return j.Clone(), nil
}

func (m *memStore) FindJobByName(_ context.Context, name string) (*storage.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.jobsByName[name]
	if !ok {
		return nil, nil
	}
	j := m.jobs[id]
	if j == nil || j.Deleted != nil {
		return nil, nil
	}
	return j.Clone(), nil
}

func (m *memStore) CreateJob(_ context.Context, j *storage.Job) (*storage.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobsByName[j.Name]; exists {
		return nil, storage.Conflict("job name already exists: " + j.Name)
	}

	cp := j.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now

	m.jobs[cp.ID] = cp
	m.jobsByName[cp.Name] = cp.ID

	return cp.Clone(), nil
}

func (m *memStore) UpdateJob(_ context.Context, id string, patch storage.JobPatch) (*storage.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, storage.NotFound("job", id)
	}

	if patch.Name != nil && *patch.Name != j.Name {
		if otherID, exists := m.jobsByName[*patch.Name]; exists && otherID != id {
			return nil, storage.Conflict("job name already exists: " + *patch.Name)
		}
		delete(m.jobsByName, j.Name)
		j.Name = *patch.Name
		m.jobsByName[j.Name] = id
	}
	if patch.Type != nil {
		j.Type = *patch.Type
	}
	if patch.Enabled != nil {
		j.Enabled = *patch.Enabled
	}
	if patch.CronSet {
		j.Cron = *patch.Cron
	}
	if patch.Query != nil {
		j.Query = *patch.Query
	}
	if patch.ContextSet {
		j.Context = patch.Context
	}
	if patch.Persist != nil {
		j.Persist = *patch.Persist
	}
	if patch.Silent != nil {
		j.Silent = *patch.Silent
	}
	j.UpdatedAt = time.Now().UTC()

	return j.Clone(), nil
}

func (m *memStore) DeleteJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return storage.NotFound("job", id)
	}
	now := time.Now().UTC()
	j.Deleted = &now
	j.UpdatedAt = now
	delete(m.jobsByName, j.Name)
	return nil
}

func (m *memStore) CreateJobRun(_ context.Context, r *storage.JobRun) (*storage.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[r.JobID]; !ok {
		return nil, storage.NewError("job_id does not reference an existing job", storage.CodeInvalidReference)
	}

	cp := r.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now

	m.runs[cp.ID] = cp
	return cp.Clone(), nil
}

func (m *memStore) UpdateJobRun(_ context.Context, id string, patch storage.JobRunPatch) (*storage.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[id]
	if !ok {
		return nil, storage.NotFound("job_run", id)
	}

	if patch.Completed != nil {
		r.Completed = patch.Completed
	}
	if patch.Failed != nil {
		r.Failed = patch.Failed
	}
	if patch.ResultSet {
		r.Result = patch.Result
	}
	r.UpdatedAt = time.Now().UTC()

	return r.Clone(), nil
}

func (m *memStore) FindJobRuns(_ context.Context, filter storage.JobRunFilter) (storage.PaginatedResponse[storage.JobRun], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]*storage.JobRun, 0, len(m.runs))
	for _, r := range m.runs {
		if filter.JobID != "" && r.JobID != filter.JobID {
			continue
		}
		if filter.StartedAfter != nil && !r.Started.After(*filter.StartedAfter) {
			continue
		}
		if filter.StartedBefore != nil && !r.Started.Before(*filter.StartedBefore) {
			continue
		}
		if filter.Status != "" && runStatus(r) != filter.Status {
			continue
		}
		matches = append(matches, r)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = len(matches)
		if pageSize == 0 {
			pageSize = 1
		}
	}
	lastPage := (len(matches) + pageSize - 1) / pageSize
	if lastPage < 1 {
		lastPage = 1
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	if page > lastPage {
		page = lastPage
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(matches) {
		start = len(matches)
	}
	if end > len(matches) {
		end = len(matches)
	}

	data := make([]storage.JobRun, 0, end-start)
	for _, r := range matches[start:end] {
		data = append(data, *r.Clone())
	}

	return storage.PaginatedResponse[storage.JobRun]{
		Data:     data,
		Page:     page,
		PageSize: pageSize,
		Total:    int64(len(matches)),
		LastPage: lastPage,
	}, nil
}

func runStatus(r *storage.JobRun) storage.RunStatus {
	switch {
	case r.Failed != nil:
		return storage.RunStatusFailed
	case r.Completed != nil:
		return storage.RunStatusCompleted
	default:
		return storage.RunStatusRunning
	}
}

func (m *memStore) ExecuteQuery(_ context.Context, _ string) (any, error) {
	return nil, storage.NewError("memstore does not support raw query execution", storage.CodeNotSupported)
}
