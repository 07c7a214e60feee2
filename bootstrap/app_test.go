// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ludari/ludari/ludconfig"
	"github.com/ludari/ludari/storage"
)

func writeJobsFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write jobs fixture: %v", err)
	}
	return path
}

func newTestApp(t *testing.T, jobsFilePath string) *App {
	t.Helper()
	cfg := &ludconfig.Config{
		System: ludconfig.SysConfig{
			ReplicaID:    "bootstrap-test-replica-1",
			Enabled:      true,
			JobsFilePath: jobsFilePath,
		},
	}
	a, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { a.Manager.Destroy(context.Background()) })
	return a
}

func TestStartReconcilesDeclaredJobsFile(t *testing.T) {
	path := writeJobsFixture(t, `
jobs:
  - name: nightly-report
    type: query
    enabled: true
    cron: "0 0 3 * * *"
    query: "select 1"
    persist: true
`)
	a := newTestApp(t, path)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	page, err := a.Manager.ListJobs(context.Background(), storage.JobFilter{Name: "nightly-report"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(page.Data) != 1 {
		t.Fatalf("expected the declared job to be created, got %d matches", len(page.Data))
	}
	if page.Data[0].Query != "select 1" {
		t.Fatalf("expected the declared query to round-trip, got %q", page.Data[0].Query)
	}
}

func TestStartReconcileIsIdempotentOnSecondPass(t *testing.T) {
	path := writeJobsFixture(t, `
jobs:
  - name: cleanup
    type: inline
    enabled: false
`)
	a := newTestApp(t, path)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := a.reconcileJobsFile(context.Background()); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}

	page, err := a.Manager.ListJobs(context.Background(), storage.JobFilter{Name: "cleanup"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(page.Data) != 1 {
		t.Fatalf("expected exactly one job named cleanup after reconciling twice, got %d", len(page.Data))
	}
}

func TestStartWithoutJobsFilePathSkipsReconcile(t *testing.T) {
	a := newTestApp(t, "")
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}
