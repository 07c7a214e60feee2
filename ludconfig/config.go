// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package ludconfig defines the root configuration model and the loader
// that reads it from a JSON file, following the same environment-keyed
// layout convention as the rest of this project's ambient stack.
package ludconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	envKey  = "RUN_ENV"
	nameKey = "APP_NAME"
)

type (
	// Config is the root configuration model loaded from bin/configs/*.json.
	Config struct {
		System  SysConfig  `json:"system"`
		Log     LogConfig  `json:"log"`
		Storage Storage    `json:"storage"`
		Cache   CacheConf  `json:"cache"`
		Admin   AdminConf  `json:"admin"`
	}

	// SysConfig stores basic runtime properties for the manager process.
	SysConfig struct {
		Name         string `json:"name"`
		ReplicaID    string `json:"replica_id"`
		Env          string `json:"env"`
		RootPath     string `json:"root_path"`
		DebugMode    bool   `json:"debug_mode"`
		QuerySecret  string `json:"query_secret"`
		Enabled      bool   `json:"enabled"`
		JobsFilePath string `json:"jobs_file_path"`
	}

	// LogConfig controls logger driver and severity level.
	LogConfig struct {
		Driver  string `json:"driver"`
		Level   string `json:"level"`
		LogPath string `json:"path"`
	}

	// Storage selects and configures the persistence backend.
	Storage struct {
		Driver                 string        `json:"driver"` // "memory" or "gorm"
		DSN                    string        `json:"dsn"`
		DbType                 string        `json:"db_type"` // "mysql" or "sqlite"
		MaxIdleConn            int           `json:"max_idle_conn"`
		MaxOpenConn            int           `json:"max_open_conn"`
		ConnMaxLifetime        time.Duration `json:"conn_max_lifetime"`
		ConnectRetryCount      int           `json:"connect_retry_count"`
		ConnectRetryIntervalS  int           `json:"connect_retry_interval_seconds"`
	}

	// CacheConf selects and configures the cache/lock backend.
	CacheConf struct {
		Driver  string `json:"driver"` // "memory" or "redis"
		Address string `json:"address"`
		Auth    string `json:"auth"`
		DB      int    `json:"db"`
		Prefix  string `json:"prefix"`
	}

	// AdminConf configures the administrative HTTP surface.
	AdminConf struct {
		Enable       bool          `json:"enable"`
		HTTPPort     string        `json:"http_port"`
		JwtSecret    string        `json:"jwt_secret"`
		TokenExpire  time.Duration `json:"token_expire"`
		ReadTimeout  time.Duration `json:"read_timeout"`
		WriteTimeout time.Duration `json:"write_timeout"`
	}
)

// Load reads configuration from bin/configs/<RUN_ENV>.json.
func Load() (*Config, error) {
	runEnv := os.Getenv(envKey)
	if runEnv == "" {
		runEnv = "local"
	}

	rootPath, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("ludconfig: getwd: %w", err)
	}

	path := filepath.Join(rootPath, "bin", "configs", fmt.Sprintf("%s.json", runEnv))
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ludconfig: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("ludconfig: parse %s: %w", path, err)
	}

	if name := os.Getenv(nameKey); name != "" {
		cfg.System.Name = name
	}
	cfg.System.Env = runEnv
	cfg.System.RootPath = rootPath

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Admin.Enable && cfg.Admin.JwtSecret == "" {
		return fmt.Errorf("ludconfig: admin.jwt_secret is required when admin is enabled")
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "memory"
	}
	return nil
}
