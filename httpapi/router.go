// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/ludari/ludari/apiauth"
	"github.com/ludari/ludari/apierr"
	"github.com/ludari/ludari/manager"
)

// Server bundles the dependencies the admin HTTP surface needs.
type Server struct {
	Manager *manager.Manager
	Guard   *apiauth.Guard
}

// New registers the admin API routes under /ludari/admin on mux and returns
// it, following a /<service>/admin/<resource> route layout. The ping route is
// unauthenticated; the jobs and control routes use the Guard when one is set.
func New(mux *gin.Engine, srv *Server) *gin.Engine {
	admin := mux.Group("ludari/admin")
	admin.GET("ping", func(c *gin.Context) { c.JSON(200, apierr.Ok(nil)) })

	protected := admin.Group("")
	if srv.Guard != nil {
		protected.Use(RequireAuth(srv.Guard))
	}

	jobGroup(protected.Group("jobs"), srv)
	controlGroup(protected.Group("control"), srv)

	return mux
}
