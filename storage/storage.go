package storage

import "context"

// Storage is the persistence contract the Manager consumes for Control,
// Job, and JobRun. Every read returns a deep copy of persisted state so a
// caller cannot mutate storage through a reference obtained via a read.
type Storage interface {
	// GetControl returns the singleton Control record, or nil if absent.
	GetControl(ctx context.Context) (*Control, error)

	// CreateControl creates the singleton Control record. Fails with a
	// ConflictError if one already exists.
	CreateControl(ctx context.Context, c *Control) (*Control, error)

	// UpdateControl applies patch to the Control record identified by id.
	// If patch.Version is set and does not match the stored version, fails
	// with a ConflictError.
	UpdateControl(ctx context.Context, id string, patch ControlPatch) (*Control, error)

	// FindJobs returns a filtered, paginated page of jobs. The reserved
	// watch job is always excluded.
	FindJobs(ctx context.Context, filter JobFilter) (PaginatedResponse[Job], error)

	// FindJob returns a job by id, or nil if absent or tombstoned.
	FindJob(ctx context.Context, id string) (*Job, error)

	// FindJobByName returns a job by name, or nil if absent or tombstoned.
	FindJobByName(ctx context.Context, name string) (*Job, error)

	// CreateJob creates a job. Fails with a ConflictError on duplicate name.
	CreateJob(ctx context.Context, j *Job) (*Job, error)

	// UpdateJob applies patch to the job identified by id. Fails with a
	// NotFoundError if absent, or a ConflictError on a colliding rename.
	UpdateJob(ctx context.Context, id string, patch JobPatch) (*Job, error)

	// DeleteJob soft-deletes the job identified by id. Fails with a
	// NotFoundError if absent.
	DeleteJob(ctx context.Context, id string) error

	// CreateJobRun creates a JobRun. Fails with a coded Error
	// (CodeInvalidReference) if JobID does not reference an existing job.
	CreateJobRun(ctx context.Context, r *JobRun) (*JobRun, error)

	// UpdateJobRun applies patch to the run identified by id. Fails with a
	// NotFoundError if absent.
	UpdateJobRun(ctx context.Context, id string, patch JobRunPatch) (*JobRun, error)

	// FindJobRuns returns a filtered, paginated page of job runs.
	FindJobRuns(ctx context.Context, filter JobRunFilter) (PaginatedResponse[JobRun], error)

	// ExecuteQuery runs a raw query against the storage back end. Returns a
	// coded Error (CodeNotSupported) when the back end does not support
	// query-type jobs.
	ExecuteQuery(ctx context.Context, sql string) (any, error)
}
