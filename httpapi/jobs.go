// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ludari/ludari/apierr"
	"github.com/ludari/ludari/manager"
	"github.com/ludari/ludari/storage"
)

func jobGroup(api *gin.RouterGroup, srv *Server) {
	api.GET("", listJobs(srv))
	api.POST("", createJob(srv))
	api.GET(":id", getJob(srv))
	api.PATCH(":id", updateJob(srv))
	api.DELETE(":id", deleteJob(srv))
	api.POST(":id/toggle", toggleJob(srv))
	api.POST(":id/enable", enableJob(srv))
	api.POST(":id/disable", disableJob(srv))
	api.GET(":id/runs", listJobRuns(srv))
}

// createJobRequest is the JSON request payload for job creation.
type createJobRequest struct {
	Name    string         `json:"name" binding:"required"`
	Type    string         `json:"type" binding:"required"`
	Enabled bool           `json:"enabled"`
	Cron    string         `json:"cron"`
	Query   string         `json:"query"`
	Context map[string]any `json:"context"`
	Persist bool           `json:"persist"`
	Silent  bool           `json:"silent"`
}

func createJob(srv *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apierr.Fail(apierr.InvalidParams, err.Error()))
			return
		}

		job, err := srv.Manager.CreateJob(c.Request.Context(), manager.CreateJobInput{
			Name:    req.Name,
			Type:    storage.JobType(req.Type),
			Enabled: req.Enabled,
			Cron:    req.Cron,
			Query:   req.Query,
			Context: req.Context,
			Persist: req.Persist,
			Silent:  req.Silent,
		})
		if err != nil {
			writeJobError(c, err)
			return
		}
		c.JSON(http.StatusOK, apierr.Ok(job))
	}
}

// updateJobRequest is the JSON request payload for a job patch; absent
// fields are left unchanged.
type updateJobRequest struct {
	Name    *string         `json:"name"`
	Type    *string         `json:"type"`
	Enabled *bool           `json:"enabled"`
	Cron    *string         `json:"cron"`
	Query   *string         `json:"query"`
	Context *map[string]any `json:"context"`
	Persist *bool           `json:"persist"`
	Silent  *bool           `json:"silent"`
}

func updateJob(srv *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apierr.Fail(apierr.InvalidParams, err.Error()))
			return
		}

		in := manager.UpdateJobInput{
			Name:    req.Name,
			Enabled: req.Enabled,
			Persist: req.Persist,
			Silent:  req.Silent,
		}
		if req.Type != nil {
			t := storage.JobType(*req.Type)
			in.Type = &t
		}
		if req.Cron != nil {
			in.CronSet = true
			in.Cron = req.Cron
		}
		if req.Query != nil {
			in.Query = req.Query
		}
		if req.Context != nil {
			in.ContextSet = true
			in.Context = *req.Context
		}

		job, err := srv.Manager.UpdateJob(c.Request.Context(), c.Param("id"), in)
		if err != nil {
			writeJobError(c, err)
			return
		}
		c.JSON(http.StatusOK, apierr.Ok(job))
	}
}

func getJob(srv *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := srv.Manager.GetJob(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeJobError(c, err)
			return
		}
		if job == nil {
			c.JSON(http.StatusNotFound, apierr.Fail(apierr.JobNotFound, "job not found"))
			return
		}
		c.JSON(http.StatusOK, apierr.Ok(job))
	}
}

func deleteJob(srv *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := srv.Manager.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
			writeJobError(c, err)
			return
		}
		c.JSON(http.StatusOK, apierr.Ok(nil))
	}
}

func toggleJob(srv *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := srv.Manager.ToggleJob(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeJobError(c, err)
			return
		}
		c.JSON(http.StatusOK, apierr.Ok(job))
	}
}

func enableJob(srv *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := srv.Manager.EnableJob(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeJobError(c, err)
			return
		}
		c.JSON(http.StatusOK, apierr.Ok(job))
	}
}

func disableJob(srv *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := srv.Manager.DisableJob(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeJobError(c, err)
			return
		}
		c.JSON(http.StatusOK, apierr.Ok(job))
	}
}

func listJobs(srv *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

		filter := storage.JobFilter{
			Name:     c.Query("name"),
			Type:     storage.JobType(c.Query("type")),
			Page:     page,
			PageSize: pageSize,
		}
		if v := c.Query("enabled"); v != "" {
			b := v == "true"
			filter.Enabled = &b
		}

		result, err := srv.Manager.ListJobs(c.Request.Context(), filter)
		if err != nil {
			writeJobError(c, err)
			return
		}
		c.JSON(http.StatusOK, apierr.Ok(result))
	}
}

func listJobRuns(srv *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

		filter := storage.JobRunFilter{
			JobID:    c.Param("id"),
			Status:   storage.RunStatus(c.Query("status")),
			Page:     page,
			PageSize: pageSize,
		}

		result, err := srv.Manager.ListJobRuns(c.Request.Context(), filter)
		if err != nil {
			writeJobError(c, err)
			return
		}
		c.JSON(http.StatusOK, apierr.Ok(result))
	}
}

func writeJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, manager.ErrMissingID):
		c.JSON(http.StatusBadRequest, apierr.Fail(apierr.InvalidParams, err.Error()))
	case errors.Is(err, manager.ErrSystemReserved):
		c.JSON(http.StatusForbidden, apierr.Fail(apierr.JobNameReserved, err.Error()))
	case errors.Is(err, manager.ErrValidation):
		c.JSON(http.StatusBadRequest, apierr.Fail(apierr.JobValidation, err.Error()))
	case errors.Is(err, manager.ErrMissingHandler):
		c.JSON(http.StatusBadRequest, apierr.Fail(apierr.JobMissingHandler, err.Error()))
	case storage.IsNotFound(err):
		c.JSON(http.StatusNotFound, apierr.Fail(apierr.JobNotFound, err.Error()))
	case storage.IsConflict(err):
		c.JSON(http.StatusConflict, apierr.Fail(apierr.JobNameConflict, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, apierr.Fail(apierr.ERROR, err.Error()))
	}
}
