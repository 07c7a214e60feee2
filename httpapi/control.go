// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ludari/ludari/apierr"
	"github.com/ludari/ludari/storage"
)

func controlGroup(api *gin.RouterGroup, srv *Server) {
	api.GET("", getControl(srv))
	api.POST("toggle", toggleControl(srv))
	api.POST("purge", purgeControl(srv))
}

func getControl(srv *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		control, err := srv.Manager.GetControl(c.Request.Context())
		if err != nil {
			writeControlError(c, err)
			return
		}
		c.JSON(http.StatusOK, apierr.Ok(control))
	}
}

func toggleControl(srv *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		control, err := srv.Manager.ToggleControl(c.Request.Context())
		if err != nil {
			writeControlError(c, err)
			return
		}
		c.JSON(http.StatusOK, apierr.Ok(control))
	}
}

func purgeControl(srv *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := srv.Manager.PurgeControl(c.Request.Context()); err != nil {
			writeControlError(c, err)
			return
		}
		c.JSON(http.StatusOK, apierr.Ok(nil))
	}
}

func writeControlError(c *gin.Context, err error) {
	switch {
	case storage.IsNotFound(err):
		c.JSON(http.StatusNotFound, apierr.Fail(apierr.ControlNotFound, err.Error()))
	case storage.IsConflict(err):
		c.JSON(http.StatusConflict, apierr.Fail(apierr.ControlConflict, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, apierr.Fail(apierr.ERROR, err.Error()))
	}
}
