// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package model defines the GORM persistence models backing storage/gormstore.
package model

import (
	"time"

	"gorm.io/datatypes"
)

// Control is the GORM row for the singleton fleet-coordination record.
type Control struct {
	ID        string         `gorm:"primaryKey;column:id" json:"id"`
	Enabled   bool           `gorm:"column:enabled" json:"enabled"`
	LogLevel  string         `gorm:"column:log_level" json:"log_level"`
	Replicas  datatypes.JSON `gorm:"column:replicas" json:"replicas"`
	Stale     datatypes.JSON `gorm:"column:stale" json:"stale"`
	Version   string         `gorm:"column:version" json:"version"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

// TableName returns the database table name for Control.
func (Control) TableName() string {
	return "ludari_control"
}
