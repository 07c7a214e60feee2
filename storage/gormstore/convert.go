// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package gormstore is a GORM-backed implementation of storage.Storage,
// supporting both MySQL and SQLite through gorm.io/driver/mysql and
// gorm.io/driver/sqlite.
package gormstore

import (
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/datatypes"

	"github.com/ludari/ludari/storage"
	"github.com/ludari/ludari/storage/model"
)

func toControlRow(c *storage.Control) (*model.Control, error) {
	replicas, err := json.Marshal(c.Replicas)
	if err != nil {
		return nil, errors.Wrap(err, "marshal replicas")
	}
	stale, err := json.Marshal(c.Stale)
	if err != nil {
		return nil, errors.Wrap(err, "marshal stale")
	}
	return &model.Control{
		ID:        c.ID,
		Enabled:   c.Enabled,
		LogLevel:  c.LogLevel,
		Replicas:  datatypes.JSON(replicas),
		Stale:     datatypes.JSON(stale),
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}, nil
}

func fromControlRow(row *model.Control) (*storage.Control, error) {
	c := &storage.Control{
		ID:        row.ID,
		Enabled:   row.Enabled,
		LogLevel:  row.LogLevel,
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.Replicas) > 0 {
		if err := json.Unmarshal(row.Replicas, &c.Replicas); err != nil {
			return nil, errors.Wrap(err, "unmarshal replicas")
		}
	}
	if len(row.Stale) > 0 {
		if err := json.Unmarshal(row.Stale, &c.Stale); err != nil {
			return nil, errors.Wrap(err, "unmarshal stale")
		}
	}
	return c, nil
}

func toJobRow(j *storage.Job) (*model.Job, error) {
	ctxJSON, err := json.Marshal(j.Context)
	if err != nil {
		return nil, errors.Wrap(err, "marshal context")
	}
	row := &model.Job{
		ID:        j.ID,
		Name:      j.Name,
		Type:      string(j.Type),
		Enabled:   j.Enabled,
		Cron:      j.Cron,
		Query:     j.Query,
		Context:   datatypes.JSON(ctxJSON),
		Persist:   j.Persist,
		Silent:    j.Silent,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.Deleted != nil {
		row.Deleted = sql.NullTime{Time: *j.Deleted, Valid: true}
	}
	return row, nil
}

func fromJobRow(row *model.Job) (*storage.Job, error) {
	j := &storage.Job{
		ID:        row.ID,
		Name:      row.Name,
		Type:      storage.JobType(row.Type),
		Enabled:   row.Enabled,
		Cron:      row.Cron,
		Query:     row.Query,
		Persist:   row.Persist,
		Silent:    row.Silent,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.Context) > 0 {
		if err := json.Unmarshal(row.Context, &j.Context); err != nil {
			return nil, errors.Wrap(err, "unmarshal context")
		}
	}
	if row.Deleted.Valid {
		t := row.Deleted.Time
		j.Deleted = &t
	}
	return j, nil
}

func toJobRunRow(r *storage.JobRun) (*model.JobRun, error) {
	resultJSON, err := json.Marshal(r.Result)
	if err != nil {
		return nil, errors.Wrap(err, "marshal result")
	}
	row := &model.JobRun{
		ID:        r.ID,
		JobID:     r.JobID,
		Started:   r.Started,
		Result:    datatypes.JSON(resultJSON),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Completed != nil {
		row.Completed = sql.NullTime{Time: *r.Completed, Valid: true}
	}
	if r.Failed != nil {
		row.Failed = sql.NullTime{Time: *r.Failed, Valid: true}
	}
	return row, nil
}

func fromJobRunRow(row *model.JobRun) (*storage.JobRun, error) {
	r := &storage.JobRun{
		ID:        row.ID,
		JobID:     row.JobID,
		Started:   row.Started,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.Result) > 0 && string(row.Result) != "null" {
		var v any
		if err := json.Unmarshal(row.Result, &v); err != nil {
			return nil, errors.Wrap(err, "unmarshal result")
		}
		r.Result = v
	}
	if row.Completed.Valid {
		t := row.Completed.Time
		r.Completed = &t
	}
	if row.Failed.Valid {
		t := row.Failed.Time
		r.Failed = &t
	}
	return r, nil
}

func runStatus(row *model.JobRun) storage.RunStatus {
	switch {
	case row.Failed.Valid:
		return storage.RunStatusFailed
	case row.Completed.Valid:
		return storage.RunStatusCompleted
	default:
		return storage.RunStatusRunning
	}
}

func clampPage(page, pageSize int, total int64) (int, int, int) {
	if pageSize <= 0 {
		pageSize = 20
	}
	lastPage := int((total + int64(pageSize) - 1) / int64(pageSize))
	if lastPage < 1 {
		lastPage = 1
	}
	if page < 1 {
		page = 1
	}
	if page > lastPage {
		page = lastPage
	}
	return page, pageSize, lastPage
}
