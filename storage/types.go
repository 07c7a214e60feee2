// Package storage defines the persistence contract consumed by the
// orchestration core: typed CRUD over Control, Job, and JobRun, filtered and
// paginated reads, optimistic versioning on Control, and an optional raw
// query pass-through for query-type jobs.
package storage

import "time"

// JobType enumerates the three execution bindings a Job may use.
type JobType string

const (
	JobTypeInline JobType = "inline"
	JobTypeMethod JobType = "method"
	JobTypeQuery  JobType = "query"
)

// WatchJobName is the reserved, system-owned job whose sole purpose is to
// provide a periodic tick for stale-replica reset detection.
const WatchJobName = "__watch__"

// Control is the singleton fleet-coordination record.
type Control struct {
	ID        string
	Enabled   bool
	LogLevel  string
	Replicas  []string
	Stale     []string
	Version   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers cannot mutate persisted state through
// a reference obtained via a read.
func (c *Control) Clone() *Control {
	if c == nil {
		return nil
	}
	out := *c
	out.Replicas = append([]string(nil), c.Replicas...)
	out.Stale = append([]string(nil), c.Stale...)
	return &out
}

// Job is a scheduled or ad-hoc job definition.
type Job struct {
	ID        string
	Name      string
	Type      JobType
	Enabled   bool
	Cron      string
	Query     string
	Context   map[string]any
	Persist   bool
	Silent    bool
	Deleted   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the Job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.Context != nil {
		out.Context = make(map[string]any, len(j.Context))
		for k, v := range j.Context {
			out.Context[k] = v
		}
	}
	if j.Deleted != nil {
		d := *j.Deleted
		out.Deleted = &d
	}
	return &out
}

// JobRun is one persisted execution record.
type JobRun struct {
	ID        string
	JobID     string
	Started   time.Time
	Completed *time.Time
	Failed    *time.Time
	Result    any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the JobRun.
func (r *JobRun) Clone() *JobRun {
	if r == nil {
		return nil
	}
	out := *r
	if r.Completed != nil {
		t := *r.Completed
		out.Completed = &t
	}
	if r.Failed != nil {
		t := *r.Failed
		out.Failed = &t
	}
	return &out
}

// DeletedFilter selects the tombstone state of a Job query.
type DeletedFilter int

const (
	// DeletedUnspecified returns all jobs regardless of tombstone state.
	DeletedUnspecified DeletedFilter = iota
	// DeletedExcluded returns only non-deleted jobs.
	DeletedExcluded
	// DeletedOnly returns only tombstoned jobs.
	DeletedOnly
)

// JobFilter narrows a findJobs query.
type JobFilter struct {
	Name     string
	Type     JobType
	Enabled  *bool
	Deleted  DeletedFilter
	Page     int
	PageSize int
}

// RunStatus filters JobRun queries.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusRunning   RunStatus = "running"
)

// JobRunFilter narrows a findJobRuns query.
type JobRunFilter struct {
	JobID         string
	StartedAfter  *time.Time
	StartedBefore *time.Time
	Status        RunStatus
	Page          int
	PageSize      int
}

// PaginatedResponse wraps a page of results with pagination metadata.
type PaginatedResponse[T any] struct {
	Data     []T
	Page     int
	PageSize int
	Total    int64
	LastPage int
}

// ControlPatch is a partial update to Control. Nil fields are left
// unchanged; Version, when non-nil, is checked against the stored version
// for optimistic concurrency.
type ControlPatch struct {
	Enabled     *bool
	LogLevel    *string
	Replicas    []string
	ReplicasSet bool
	Stale       []string
	StaleSet    bool
	Version     *string
	NextVersion *string
}

// JobPatch is a partial update to a Job.
type JobPatch struct {
	Name      *string
	Type      *JobType
	Enabled   *bool
	Cron      *string
	CronSet   bool
	Query     *string
	Context   map[string]any
	ContextSet bool
	Persist   *bool
	Silent    *bool
}

// JobRunPatch is a partial update to a JobRun.
type JobRunPatch struct {
	Completed *time.Time
	Failed    *time.Time
	Result    any
	ResultSet bool
}
