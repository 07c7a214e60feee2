// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package ludconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ludari/ludari/manager"
	"github.com/ludari/ludari/storage"
)

// JobDefinition is the YAML shape of one bulk-imported job.
type JobDefinition struct {
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Enabled bool           `yaml:"enabled"`
	Cron    string         `yaml:"cron"`
	Query   string         `yaml:"query"`
	Context map[string]any `yaml:"context"`
	Persist bool           `yaml:"persist"`
	Silent  bool           `yaml:"silent"`
}

// JobsFile is the top-level shape of a bulk job-definition YAML file.
type JobsFile struct {
	Jobs []JobDefinition `yaml:"jobs"`
}

// LoadJobsFile reads and parses a YAML file of job definitions.
func LoadJobsFile(path string) (*JobsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ludconfig: read jobs file %s: %w", path, err)
	}

	var f JobsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ludconfig: parse jobs file %s: %w", path, err)
	}
	return &f, nil
}

// ToCreateJobInput converts a parsed JobDefinition into the shape the
// manager's public API expects.
func (d JobDefinition) ToCreateJobInput() manager.CreateJobInput {
	return manager.CreateJobInput{
		Name:    d.Name,
		Type:    storage.JobType(d.Type),
		Enabled: d.Enabled,
		Cron:    d.Cron,
		Query:   d.Query,
		Context: d.Context,
		Persist: d.Persist,
		Silent:  d.Silent,
	}
}
