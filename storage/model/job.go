// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

// Job is the GORM row for a scheduled or ad-hoc job definition.
type Job struct {
	ID        string         `gorm:"primaryKey;column:id" json:"id"`
	Name      string         `gorm:"column:name;index:idx_job_name" json:"name"`
	Type      string         `gorm:"column:type" json:"type"`
	Enabled   bool           `gorm:"column:enabled" json:"enabled"`
	Cron      string         `gorm:"column:cron" json:"cron"`
	Query     string         `gorm:"column:query" json:"query"`
	Context   datatypes.JSON `gorm:"column:context" json:"context"`
	Persist   bool           `gorm:"column:persist" json:"persist"`
	Silent    bool           `gorm:"column:silent" json:"silent"`
	Deleted   sql.NullTime   `gorm:"column:deleted" json:"deleted"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string {
	return "ludari_job"
}
