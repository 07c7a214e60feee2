// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package manager

import (
	"fmt"

	"github.com/ludari/ludari/cronspec"
	"github.com/ludari/ludari/storage"
)

// CreateJobInput is the argument to CreateJob.
type CreateJobInput struct {
	Name    string
	Type    storage.JobType
	Enabled bool
	Cron    string
	Query   string
	Context map[string]any
	Persist bool
	Silent  bool
}

// UpdateJobInput is the argument to UpdateJob; nil fields are left
// unchanged.
type UpdateJobInput struct {
	Name      *string
	Type      *storage.JobType
	Enabled   *bool
	Cron      *string
	CronSet   bool
	Query     *string
	Context   map[string]any
	ContextSet bool
	Persist   *bool
	Silent    *bool
}

func (m *Manager) validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !jobNamePattern.MatchString(name) {
		return fmt.Errorf("%w: name %q must match [A-Za-z0-9_-]{1,100}", ErrValidation, name)
	}
	return nil
}

// validateUpdate applies the same scheduled-job invariant validateCreate
// enforces, but against the merged view of current and the patch in: a
// job that will end up enabled, cron-scheduled, and of type query/method
// must still carry a non-empty query or a configured handler respectively.
func (m *Manager) validateUpdate(current *storage.Job, in UpdateJobInput) error {
	jobType := current.Type
	if in.Type != nil {
		jobType = *in.Type
	}
	enabled := current.Enabled
	if in.Enabled != nil {
		enabled = *in.Enabled
	}
	cron := current.Cron
	if in.CronSet {
		if in.Cron != nil {
			cron = *in.Cron
		} else {
			cron = ""
		}
	}
	query := current.Query
	if in.Query != nil {
		query = *in.Query
	}

	scheduled := enabled && cron != ""
	if scheduled && jobType == storage.JobTypeQuery && query == "" {
		return fmt.Errorf("%w: query jobs that are enabled and scheduled require a non-empty query", ErrValidation)
	}
	if scheduled && jobType == storage.JobTypeMethod && m.handler == nil {
		return fmt.Errorf("%w: method jobs that are enabled and scheduled require a configured handler", ErrMissingHandler)
	}
	return nil
}

func (m *Manager) validateCreate(in CreateJobInput) error {
	if err := m.validateName(in.Name); err != nil {
		return err
	}
	if isReservedName(in.Name) {
		return fmt.Errorf("%w: name %q is reserved", ErrSystemReserved, in.Name)
	}
	if in.Type == "" {
		return fmt.Errorf("%w: type is required", ErrValidation)
	}
	if in.Cron != "" {
		if _, err := cronspec.Parse(in.Cron); err != nil {
			return fmt.Errorf("%w: invalid cron expression: %v", ErrValidation, err)
		}
	}
	scheduled := in.Enabled && in.Cron != ""
	if scheduled && in.Type == storage.JobTypeQuery && in.Query == "" {
		return fmt.Errorf("%w: query jobs that are enabled and scheduled require a non-empty query", ErrValidation)
	}
	if scheduled && in.Type == storage.JobTypeMethod && m.handler == nil {
		return fmt.Errorf("%w: method jobs that are enabled and scheduled require a configured handler", ErrMissingHandler)
	}
	return nil
}
