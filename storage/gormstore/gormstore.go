// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package gormstore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/ludari/ludari/storage"
	"github.com/ludari/ludari/storage/model"
)

// Store is a GORM-backed storage.Storage. It is safe for concurrent use; all
// concurrency control is delegated to the underlying database.
type Store struct {
	db *gorm.DB
}

// New wraps an already-opened GORM connection. Callers are responsible for
// running AutoMigrate (or equivalent DDL) against model.Control, model.Job,
// and model.JobRun before first use.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the backing tables for all models.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&model.Control{}, &model.Job{}, &model.JobRun{})
}

func (s *Store) GetControl(ctx context.Context) (*storage.Control, error) {
	var row model.Control
	err := s.db.WithContext(ctx).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: get control")
	}
	return fromControlRow(&row)
}

func (s *Store) CreateControl(ctx context.Context, c *storage.Control) (*storage.Control, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Control{}).Count(&count).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: count control")
	}
	if count > 0 {
		return nil, storage.Conflict("control already exists")
	}

	cp := *c
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	row, err := toControlRow(&cp)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: create control")
	}
	return fromControlRow(row)
}

func (s *Store) UpdateControl(ctx context.Context, id string, patch storage.ControlPatch) (*storage.Control, error) {
	var row model.Control
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.NotFound("control", id)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: find control")
	}

	current, err := fromControlRow(&row)
	if err != nil {
		return nil, err
	}
	if patch.Enabled != nil {
		current.Enabled = *patch.Enabled
	}
	if patch.LogLevel != nil {
		current.LogLevel = *patch.LogLevel
	}
	if patch.ReplicasSet {
		current.Replicas = patch.Replicas
	}
	if patch.StaleSet {
		current.Stale = patch.Stale
	}
	if patch.NextVersion != nil {
		current.Version = *patch.NextVersion
	}

	next, err := toControlRow(current)
	if err != nil {
		return nil, err
	}

	// The version check and the write must be a single atomic statement:
	// reading row.Version above and writing separately would let two
	// concurrent callers both pass the check and both write, the second
	// silently clobbering the first. Folding "version = ?" into the WHERE
	// clause makes the compare-and-swap happen inside one round-trip, and
	// RowsAffected == 0 means someone else won the race.
	q := s.db.WithContext(ctx).Model(&model.Control{}).Where("id = ?", id)
	if patch.Version != nil {
		q = q.Where("version = ?", *patch.Version)
	}
	result := q.Updates(map[string]any{
		"enabled":   next.Enabled,
		"log_level": next.LogLevel,
		"replicas":  next.Replicas,
		"stale":     next.Stale,
		"version":   next.Version,
	})
	if result.Error != nil {
		return nil, pkgerrors.Wrap(result.Error, "gormstore: update control")
	}
	if patch.Version != nil && result.RowsAffected == 0 {
		return nil, storage.Conflict("version mismatch")
	}

	return s.GetControl(ctx)
}

func (s *Store) FindJobs(ctx context.Context, filter storage.JobFilter) (storage.PaginatedResponse[storage.Job], error) {
	q := s.db.WithContext(ctx).Model(&model.Job{}).Where("name <> ?", storage.WatchJobName)
	q = applyJobFilter(q, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return storage.PaginatedResponse[storage.Job]{}, pkgerrors.Wrap(err, "gormstore: count jobs")
	}

	page, pageSize, lastPage := clampPage(filter.Page, filter.PageSize, total)

	var rows []model.Job
	if err := q.Order("created_at desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return storage.PaginatedResponse[storage.Job]{}, pkgerrors.Wrap(err, "gormstore: find jobs")
	}

	data := make([]storage.Job, 0, len(rows))
	for i := range rows {
		j, err := fromJobRow(&rows[i])
		if err != nil {
			return storage.PaginatedResponse[storage.Job]{}, err
		}
		data = append(data, *j)
	}

	return storage.PaginatedResponse[storage.Job]{
		Data:     data,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		LastPage: lastPage,
	}, nil
}

func applyJobFilter(q *gorm.DB, filter storage.JobFilter) *gorm.DB {
	switch filter.Deleted {
	case storage.DeletedExcluded:
		q = q.Where("deleted IS NULL")
	case storage.DeletedOnly:
		q = q.Where("deleted IS NOT NULL")
	}
	if filter.Name != "" {
		q = q.Where("name = ?", filter.Name)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", string(filter.Type))
	}
	if filter.Enabled != nil {
		q = q.Where("enabled = ?", *filter.Enabled)
	}
	return q
}

func (s *Store) FindJob(ctx context.Context, id string) (*storage.Job, error) {
	var row model.Job
	err := s.db.WithContext(ctx).Where("id = ? AND deleted IS NULL", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: find job")
	}
	return fromJobRow(&row)
}

func (s *Store) FindJobByName(ctx context.Context, name string) (*storage.Job, error) {
	var row model.Job
	err := s.db.WithContext(ctx).Where("name = ? AND deleted IS NULL", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: find job by name")
	}
	return fromJobRow(&row)
}

func (s *Store) CreateJob(ctx context.Context, j *storage.Job) (*storage.Job, error) {
	// The name column carries no DB-level unique constraint: uniqueness is
	// scoped to non-deleted rows, which a plain unique index can't express
	// portably across sqlite and mysql. Pre-check against the same
	// deleted-IS-NULL lookup FindJobByName uses, so a name freed by a soft
	// delete can be reused.
	existing, err := s.FindJobByName(ctx, j.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, storage.Conflict("job name already exists: " + j.Name)
	}

	cp := *j
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	row, err := toJobRow(&cp)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, storage.Conflict("job name already exists: " + j.Name)
		}
		return nil, pkgerrors.Wrap(err, "gormstore: create job")
	}
	return fromJobRow(row)
}

func (s *Store) UpdateJob(ctx context.Context, id string, patch storage.JobPatch) (*storage.Job, error) {
	var row model.Job
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.NotFound("job", id)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: find job for update")
	}

	current, err := fromJobRow(&row)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil && *patch.Name != current.Name {
		existing, err := s.FindJobByName(ctx, *patch.Name)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, storage.Conflict("job name already exists: " + *patch.Name)
		}
		current.Name = *patch.Name
	}
	if patch.Type != nil {
		current.Type = *patch.Type
	}
	if patch.Enabled != nil {
		current.Enabled = *patch.Enabled
	}
	if patch.CronSet {
		current.Cron = *patch.Cron
	}
	if patch.Query != nil {
		current.Query = *patch.Query
	}
	if patch.ContextSet {
		current.Context = patch.Context
	}
	if patch.Persist != nil {
		current.Persist = *patch.Persist
	}
	if patch.Silent != nil {
		current.Silent = *patch.Silent
	}

	next, err := toJobRow(current)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&model.Job{}).Where("id = ?", id).Updates(map[string]any{
		"name":    next.Name,
		"type":    next.Type,
		"enabled": next.Enabled,
		"cron":    next.Cron,
		"query":   next.Query,
		"context": next.Context,
		"persist": next.Persist,
		"silent":  next.Silent,
	}).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, storage.Conflict("job name already exists: " + current.Name)
		}
		return nil, pkgerrors.Wrap(err, "gormstore: update job")
	}

	return s.FindJob(ctx, id)
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&model.Job{}).Where("id = ?", id).Update("deleted", gorm.Expr("CURRENT_TIMESTAMP"))
	if res.Error != nil {
		return pkgerrors.Wrap(res.Error, "gormstore: delete job")
	}
	if res.RowsAffected == 0 {
		return storage.NotFound("job", id)
	}
	return nil
}

func (s *Store) CreateJobRun(ctx context.Context, r *storage.JobRun) (*storage.JobRun, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Job{}).Where("id = ?", r.JobID).Count(&count).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: verify job reference")
	}
	if count == 0 {
		return nil, storage.NewError("job_id does not reference an existing job", storage.CodeInvalidReference)
	}

	cp := *r
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	row, err := toJobRunRow(&cp)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: create job run")
	}
	return fromJobRunRow(row)
}

func (s *Store) UpdateJobRun(ctx context.Context, id string, patch storage.JobRunPatch) (*storage.JobRun, error) {
	var row model.JobRun
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.NotFound("job_run", id)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: find job run for update")
	}

	current, err := fromJobRunRow(&row)
	if err != nil {
		return nil, err
	}
	if patch.Completed != nil {
		current.Completed = patch.Completed
	}
	if patch.Failed != nil {
		current.Failed = patch.Failed
	}
	if patch.ResultSet {
		current.Result = patch.Result
	}

	next, err := toJobRunRow(current)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&model.JobRun{}).Where("id = ?", id).Updates(map[string]any{
		"completed": next.Completed,
		"failed":    next.Failed,
		"result":    next.Result,
	}).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: update job run")
	}

	var updated model.JobRun
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&updated).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: reload job run")
	}
	return fromJobRunRow(&updated)
}

func (s *Store) FindJobRuns(ctx context.Context, filter storage.JobRunFilter) (storage.PaginatedResponse[storage.JobRun], error) {
	q := s.db.WithContext(ctx).Model(&model.JobRun{})
	if filter.JobID != "" {
		q = q.Where("job_id = ?", filter.JobID)
	}
	if filter.StartedAfter != nil {
		q = q.Where("started > ?", *filter.StartedAfter)
	}
	if filter.StartedBefore != nil {
		q = q.Where("started < ?", *filter.StartedBefore)
	}
	switch filter.Status {
	case storage.RunStatusCompleted:
		q = q.Where("completed IS NOT NULL")
	case storage.RunStatusFailed:
		q = q.Where("failed IS NOT NULL")
	case storage.RunStatusRunning:
		q = q.Where("completed IS NULL AND failed IS NULL")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return storage.PaginatedResponse[storage.JobRun]{}, pkgerrors.Wrap(err, "gormstore: count job runs")
	}

	page, pageSize, lastPage := clampPage(filter.Page, filter.PageSize, total)

	var rows []model.JobRun
	if err := q.Order("started desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return storage.PaginatedResponse[storage.JobRun]{}, pkgerrors.Wrap(err, "gormstore: find job runs")
	}

	data := make([]storage.JobRun, 0, len(rows))
	for i := range rows {
		r, err := fromJobRunRow(&rows[i])
		if err != nil {
			return storage.PaginatedResponse[storage.JobRun]{}, err
		}
		data = append(data, *r)
	}

	return storage.PaginatedResponse[storage.JobRun]{
		Data:     data,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		LastPage: lastPage,
	}, nil
}

// ExecuteQuery runs a raw SELECT against the underlying database. Callers
// are expected to have sanitized sql via the crypto package's Sanitize
// before reaching this layer.
func (s *Store) ExecuteQuery(ctx context.Context, sqlQuery string) (any, error) {
	rows, err := s.db.WithContext(ctx).Raw(sqlQuery).Rows()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: execute query")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "gormstore: read columns")
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, pkgerrors.Wrap(err, "gormstore: scan row")
		}
		record := make(map[string]any, len(cols))
		for i, col := range cols {
			record[col] = values[i]
		}
		results = append(results, record)
	}

	return results, nil
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

var _ storage.Storage = (*Store)(nil)
