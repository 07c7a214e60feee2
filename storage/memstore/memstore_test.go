package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/ludari/ludari/storage"
)

func TestControlCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()

	if got, err := s.GetControl(ctx); err != nil || got != nil {
		t.Fatalf("expected no control yet, got %+v err %v", got, err)
	}

	c, err := s.CreateControl(ctx, &storage.Control{Enabled: true, LogLevel: "info", Version: "v1"})
	if err != nil {
		t.Fatalf("CreateControl: %v", err)
	}
	if c.ID == "" {
		t.Fatal("expected generated ID")
	}

	if _, err := s.CreateControl(ctx, &storage.Control{}); !storage.IsConflict(err) {
		t.Fatalf("expected conflict creating a second control, got %v", err)
	}

	nextVersion := "v2"
	updated, err := s.UpdateControl(ctx, c.ID, storage.ControlPatch{
		Version:     &c.Version,
		NextVersion: &nextVersion,
		StaleSet:    true,
		Stale:       []string{"replica-a"},
	})
	if err != nil {
		t.Fatalf("UpdateControl: %v", err)
	}
	if updated.Version != "v2" || len(updated.Stale) != 1 || updated.Stale[0] != "replica-a" {
		t.Fatalf("unexpected control after update: %+v", updated)
	}

	staleVersion := "v1"
	if _, err := s.UpdateControl(ctx, c.ID, storage.ControlPatch{Version: &staleVersion}); !storage.IsConflict(err) {
		t.Fatalf("expected version mismatch conflict, got %v", err)
	}
}

func TestControlCloneIsDefensive(t *testing.T) {
	ctx := context.Background()
	s := New()
	c, _ := s.CreateControl(ctx, &storage.Control{Replicas: []string{"r1"}})

	c.Replicas[0] = "mutated"

	got, _ := s.GetControl(ctx)
	if got.Replicas[0] != "r1" {
		t.Fatalf("mutation of returned clone leaked into storage: %+v", got)
	}
}

func TestJobCreateUniqueName(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.CreateJob(ctx, &storage.Job{Name: "sync-accounts", Type: storage.JobTypeInline, Cron: "@daily"}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := s.CreateJob(ctx, &storage.Job{Name: "sync-accounts", Type: storage.JobTypeInline}); !storage.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate name, got %v", err)
	}
}

func TestJobUpdateDeleteAndFind(t *testing.T) {
	ctx := context.Background()
	s := New()

	j, err := s.CreateJob(ctx, &storage.Job{Name: "reindex", Type: storage.JobTypeMethod, Enabled: true, Cron: "@hourly"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	newCron := "@every 5m"
	updated, err := s.UpdateJob(ctx, j.ID, storage.JobPatch{CronSet: true, Cron: &newCron})
	if err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if updated.Cron != "@every 5m" {
		t.Fatalf("expected cron to be updated, got %q", updated.Cron)
	}

	if err := s.DeleteJob(ctx, j.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}

	if got, _ := s.FindJob(ctx, j.ID); got != nil {
		t.Fatalf("expected deleted job to not be findable by default, got %+v", got)
	}

	page, err := s.FindJobs(ctx, storage.JobFilter{Deleted: storage.DeletedOnly})
	if err != nil {
		t.Fatalf("FindJobs: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected one tombstoned job, got %d", page.Total)
	}
}

func TestFindJobsExcludesWatchJob(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.CreateJob(ctx, &storage.Job{Name: storage.WatchJobName, Type: storage.JobTypeInline}); err != nil {
		t.Fatalf("CreateJob watch: %v", err)
	}
	if _, err := s.CreateJob(ctx, &storage.Job{Name: "regular-job", Type: storage.JobTypeInline}); err != nil {
		t.Fatalf("CreateJob regular: %v", err)
	}

	page, err := s.FindJobs(ctx, storage.JobFilter{})
	if err != nil {
		t.Fatalf("FindJobs: %v", err)
	}
	if page.Total != 1 || page.Data[0].Name != "regular-job" {
		t.Fatalf("expected watch job excluded, got %+v", page)
	}
}

func TestFindJobsPagination(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 5; i++ {
		name := "job-" + string(rune('a'+i))
		if _, err := s.CreateJob(ctx, &storage.Job{Name: name, Type: storage.JobTypeInline}); err != nil {
			t.Fatalf("CreateJob %s: %v", name, err)
		}
	}

	page, err := s.FindJobs(ctx, storage.JobFilter{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("FindJobs: %v", err)
	}
	if page.Total != 5 || page.LastPage != 3 || len(page.Data) != 2 {
		t.Fatalf("unexpected pagination result: %+v", page)
	}
}

func TestJobRunRequiresExistingJob(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.CreateJobRun(ctx, &storage.JobRun{JobID: "does-not-exist"})
	var storageErr *storage.Error
	if !errors.As(err, &storageErr) || storageErr.Code != storage.CodeInvalidReference {
		t.Fatalf("expected INVALID_REFERENCE error, got %v", err)
	}
}

func TestJobRunLifecycleAndFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	j, err := s.CreateJob(ctx, &storage.Job{Name: "batch-import", Type: storage.JobTypeInline})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	run, err := s.CreateJobRun(ctx, &storage.JobRun{JobID: j.ID})
	if err != nil {
		t.Fatalf("CreateJobRun: %v", err)
	}

	result := map[string]any{"rows": 10}
	updated, err := s.UpdateJobRun(ctx, run.ID, storage.JobRunPatch{ResultSet: true, Result: result})
	if err != nil {
		t.Fatalf("UpdateJobRun: %v", err)
	}
	if updated.Result == nil {
		t.Fatal("expected result to be set")
	}

	page, err := s.FindJobRuns(ctx, storage.JobRunFilter{JobID: j.ID, Status: storage.RunStatusRunning})
	if err != nil {
		t.Fatalf("FindJobRuns: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected one running run, got %d", page.Total)
	}
}

func TestExecuteQueryNotSupported(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.ExecuteQuery(ctx, "select 1")
	var storageErr *storage.Error
	if !errors.As(err, &storageErr) || storageErr.Code != storage.CodeNotSupported {
		t.Fatalf("expected NOT_SUPPORTED error, got %v", err)
	}
}
