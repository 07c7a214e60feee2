// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package ludconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFixture(t *testing.T, env, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "bin", "configs"), 0o755); err != nil {
		t.Fatalf("mkdir bin/configs: %v", err)
	}
	path := filepath.Join(dir, "bin", "configs", env+".json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return dir
}

func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}

func TestLoadReadsRunEnvFile(t *testing.T) {
	dir := writeConfigFixture(t, "testenv", `{
		"system": {"name": "ludari-test", "replica_id": "replica-0001"},
		"storage": {"driver": "memory"},
		"cache": {"driver": "memory"}
	}`)
	chdirForTest(t, dir)
	t.Setenv("RUN_ENV", "testenv")
	t.Setenv("APP_NAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.System.Name != "ludari-test" {
		t.Fatalf("expected name %q, got %q", "ludari-test", cfg.System.Name)
	}
	if cfg.System.Env != "testenv" {
		t.Fatalf("expected env %q, got %q", "testenv", cfg.System.Env)
	}
}

func TestLoadDefaultsMissingDrivers(t *testing.T) {
	dir := writeConfigFixture(t, "local", `{"system": {"name": "ludari"}}`)
	chdirForTest(t, dir)
	t.Setenv("RUN_ENV", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("expected default storage driver %q, got %q", "memory", cfg.Storage.Driver)
	}
	if cfg.Cache.Driver != "memory" {
		t.Fatalf("expected default cache driver %q, got %q", "memory", cfg.Cache.Driver)
	}
}

func TestLoadRejectsAdminEnabledWithoutSecret(t *testing.T) {
	dir := writeConfigFixture(t, "local", `{"admin": {"enable": true}}`)
	chdirForTest(t, dir)
	t.Setenv("RUN_ENV", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected Load to reject admin.enable without a jwt_secret")
	}
}

func TestLoadAppNameEnvOverride(t *testing.T) {
	dir := writeConfigFixture(t, "local", `{"system": {"name": "from-file"}}`)
	chdirForTest(t, dir)
	t.Setenv("RUN_ENV", "")
	t.Setenv("APP_NAME", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.System.Name != "from-env" {
		t.Fatalf("expected APP_NAME to override the config file, got %q", cfg.System.Name)
	}
}
