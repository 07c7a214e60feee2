// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

// JobRun is the GORM row for one persisted execution record.
type JobRun struct {
	ID        string         `gorm:"primaryKey;column:id" json:"id"`
	JobID     string         `gorm:"column:job_id;index:idx_job_run_job_id" json:"job_id"`
	Started   time.Time      `gorm:"column:started" json:"started"`
	Completed sql.NullTime   `gorm:"column:completed" json:"completed"`
	Failed    sql.NullTime   `gorm:"column:failed" json:"failed"`
	Result    datatypes.JSON `gorm:"column:result" json:"result"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

// TableName returns the database table name for JobRun.
func (JobRun) TableName() string {
	return "ludari_job_run"
}
