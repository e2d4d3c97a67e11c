package main

import (
	"net/http"

	"call-platform/internal/httpapi"
	"call-platform/internal/rbac"
	"call-platform/internal/signaling"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, authMW gin.HandlerFunc, h httpapi.Handlers, gw *signaling.Gateway) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// NOTE: placeholder login; credentials are not validated.
	r.POST("/v1/auth/login", h.Login)

	v1 := r.Group("/v1")
	v1.Use(authMW, rbac.RequireWorkspace())
	{
		v1.GET("/me", h.Me)

		calls := v1.Group("/calls")
		calls.Use(rbac.RequireAnyRole(rbac.CallerRoles...))
		{
			calls.POST("", h.InitiateCall)
			calls.GET("/:session_id", h.GetCall)
			calls.GET("/:session_id/history", h.CallHistory)
			calls.POST("/:session_id/status", h.UpdateStatus)
			calls.POST("/:session_id/reject", h.RejectCall)
			calls.POST("/:session_id/cancel", h.CancelCall)
			calls.POST("/:session_id/leave", h.LeaveCall)
			calls.POST("/:session_id/end", h.EndCall)
		}

		sig := v1.Group("/signaling")
		sig.Use(rbac.RequireAnyRole(rbac.CallerRoles...))
		{
			sig.POST("/ticket", h.StreamTicket)
			sig.GET("/ws", gw.ServeWS)
		}

		// ADMIN routes
		// Hidden support role is intentionally NOT included unless explicitly desired.
		admin := v1.Group("/admin/calls")
		admin.Use(rbac.RequireAnyRole(rbac.OperatorRoles...))
		{
			admin.GET("/summary", h.CallsSummary)
			admin.GET("/users/:user_id/summary", h.UserSummary)
			admin.POST("/sweep", h.Sweep)
		}
	}
}
