// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package bootstrap initializes service dependencies and starts the
// orchestration engine and its administrative HTTP surface.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ludari/ludari/apiauth"
	"github.com/ludari/ludari/cache"
	"github.com/ludari/ludari/cache/inmemory"
	"github.com/ludari/ludari/cache/redisstore"
	"github.com/ludari/ludari/httpapi"
	"github.com/ludari/ludari/ludconfig"
	"github.com/ludari/ludari/ludlog"
	"github.com/ludari/ludari/ludtrace"
	"github.com/ludari/ludari/manager"
	"github.com/ludari/ludari/storage"
	"github.com/ludari/ludari/storage/gormstore"
	"github.com/ludari/ludari/storage/memstore"

	goredis "github.com/redis/go-redis/v9"
)

// App bundles every initialized dependency the running process needs.
type App struct {
	Config  *ludconfig.Config
	Logger  *ludlog.Logger
	TraceID *ludtrace.ID
	Storage storage.Storage
	Cache   cache.Cache
	Manager *manager.Manager
	Mux     *gin.Engine
	server  *http.Server
}

// NewApp creates a fully initialized application container.
func NewApp(cfg *ludconfig.Config) (*App, error) {
	a := &App{Config: cfg}

	a.loadTrace()

	if err := a.loadLogger(); err != nil {
		return nil, err
	}

	if err := a.loadStorage(); err != nil {
		return nil, err
	}

	if err := a.loadCache(); err != nil {
		return nil, err
	}

	if err := a.loadManager(); err != nil {
		return nil, err
	}

	if a.Config.Admin.Enable {
		a.loadMux()
	}

	return a, nil
}

func (a *App) loadTrace() {
	a.TraceID = ludtrace.New()
}

func (a *App) loadLogger() error {
	l, err := ludlog.New(
		ludlog.WithLevel(a.Config.Log.Level),
		ludlog.WithDriver(a.Config.Log.Driver),
		ludlog.WithLogPath(a.Config.Log.LogPath),
	)
	if err != nil {
		return fmt.Errorf("bootstrap: load logger: %w", err)
	}
	a.Logger = l
	a.Logger.Log("logger loaded successfully")
	return nil
}

func (a *App) loadStorage() error {
	switch a.Config.Storage.Driver {
	case "gorm":
		db, err := a.newGormDBWithRetry()
		if err != nil {
			return fmt.Errorf("bootstrap: load storage: %w", err)
		}
		store := gormstore.New(db)
		if err := store.AutoMigrate(); err != nil {
			return fmt.Errorf("bootstrap: automigrate: %w", err)
		}
		a.Storage = store
	default:
		a.Storage = memstore.New()
	}
	a.Logger.Log("storage loaded successfully")
	return nil
}

func (a *App) newGormDBWithRetry() (*gorm.DB, error) {
	retryCount := a.Config.Storage.ConnectRetryCount
	if retryCount <= 0 {
		retryCount = 3
	}
	retryInterval := a.Config.Storage.ConnectRetryIntervalS
	if retryInterval <= 0 {
		retryInterval = 3
	}

	var (
		db  *gorm.DB
		err error
	)
	for attempt := 1; attempt <= retryCount; attempt++ {
		switch a.Config.Storage.DbType {
		case "sqlite":
			db, err = gorm.Open(sqlite.Open(a.Config.Storage.DSN), &gorm.Config{})
		default:
			db, err = gorm.Open(mysql.Open(a.Config.Storage.DSN), &gorm.Config{})
		}
		if err == nil {
			if sqlDB, sqlErr := db.DB(); sqlErr == nil {
				sqlDB.SetMaxIdleConns(a.Config.Storage.MaxIdleConn)
				sqlDB.SetMaxOpenConns(a.Config.Storage.MaxOpenConn)
				sqlDB.SetConnMaxLifetime(a.Config.Storage.ConnMaxLifetime * time.Hour)
			}
			return db, nil
		}

		if attempt == retryCount {
			break
		}
		a.Logger.Warn(fmt.Sprintf("bootstrap: database connection failed, retrying (%d/%d): %v", attempt, retryCount, err))
		time.Sleep(time.Duration(retryInterval) * time.Second)
	}
	return nil, err
}

func (a *App) loadCache() error {
	switch a.Config.Cache.Driver {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     a.Config.Cache.Address,
			Password: a.Config.Cache.Auth,
			DB:       a.Config.Cache.DB,
		})
		a.Cache = redisstore.New(client)
	default:
		a.Cache = inmemory.New()
	}
	a.Logger.Log("cache loaded successfully")
	return nil
}

func (a *App) loadManager() error {
	m, err := manager.New(manager.Options{
		Storage:     a.Storage,
		Logger:      a.Logger,
		Cache:       a.Cache,
		QuerySecret: a.Config.System.QuerySecret,
		ReplicaID:   a.Config.System.ReplicaID,
		Enabled:     a.Config.System.Enabled,
	})
	if err != nil {
		return fmt.Errorf("bootstrap: new manager: %w", err)
	}
	a.Manager = m
	a.Logger.Log("manager constructed successfully")
	return nil
}

func (a *App) loadMux() {
	if !a.Config.System.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	mux := gin.New()
	mux.Use(gin.Recovery())

	srv := &httpapi.Server{Manager: a.Manager}
	if a.Config.Admin.JwtSecret != "" {
		srv.Guard = apiauth.NewGuard(a.Config.Admin.JwtSecret, a.Config.System.Name)
	}
	httpapi.New(mux, srv)

	a.Mux = mux
	a.Logger.Log("admin HTTP mux loaded successfully")
}

// Start initializes the fleet-coordination Manager, reconciles any
// declared jobs file, and, if configured, starts the administrative HTTP
// server.
func (a *App) Start(ctx context.Context) error {
	if err := a.Manager.Initialize(ctx); err != nil {
		return fmt.Errorf("bootstrap: initialize manager: %w", err)
	}
	a.Logger.Log("manager initialized")

	if a.Config.System.JobsFilePath != "" {
		if err := a.reconcileJobsFile(ctx); err != nil {
			return fmt.Errorf("bootstrap: reconcile jobs file: %w", err)
		}
	}

	if a.Mux != nil {
		go a.startHTTPServer()
	}

	return nil
}

// reconcileJobsFile loads the operator-declared job definitions at
// Config.System.JobsFilePath and applies each one through the Manager's
// public API: an unknown name is created, a known one is updated in place.
func (a *App) reconcileJobsFile(ctx context.Context) error {
	file, err := ludconfig.LoadJobsFile(a.Config.System.JobsFilePath)
	if err != nil {
		return err
	}

	for _, def := range file.Jobs {
		existing, err := a.Manager.ListJobs(ctx, storage.JobFilter{Name: def.Name, PageSize: 1})
		if err != nil {
			return fmt.Errorf("lookup job %q: %w", def.Name, err)
		}

		in := def.ToCreateJobInput()
		if len(existing.Data) == 0 {
			if _, err := a.Manager.CreateJob(ctx, in); err != nil {
				return fmt.Errorf("create job %q: %w", def.Name, err)
			}
			continue
		}

		if _, err := a.Manager.UpdateJob(ctx, existing.Data[0].ID, manager.UpdateJobInput{
			Type:       &in.Type,
			Enabled:    &in.Enabled,
			CronSet:    true,
			Cron:       &in.Cron,
			Query:      &in.Query,
			ContextSet: true,
			Context:    in.Context,
			Persist:    &in.Persist,
			Silent:     &in.Silent,
		}); err != nil {
			return fmt.Errorf("update job %q: %w", def.Name, err)
		}
	}

	a.Logger.Log(fmt.Sprintf("reconciled %d declared jobs from %s", len(file.Jobs), a.Config.System.JobsFilePath))
	return nil
}

func (a *App) startHTTPServer() {
	a.server = &http.Server{
		Addr:           a.Config.Admin.HTTPPort,
		Handler:        a.Mux,
		ReadTimeout:    a.Config.Admin.ReadTimeout * time.Second,
		WriteTimeout:   a.Config.Admin.WriteTimeout * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.Logger.Error(fmt.Sprintf("bootstrap: http server startup error: %v", err))
	}
}

// Shutdown stops the HTTP server (if running) and destroys the Manager.
func (a *App) Shutdown(ctx context.Context) {
	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
	}
	a.Manager.Destroy(ctx)
	_ = a.Logger.Sync()
}
