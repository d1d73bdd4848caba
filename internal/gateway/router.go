// Package gateway implements the HTTP surface of the bridge.
// Every route except /authenticate, /health and /metrics resolves the
// Authorization header to a registered Instagram session first.
package gateway

import (
	"instabridge/internal/metrics"
	"instabridge/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the bridge router
func SetupRouter(h *Handler, sessions session.Registry, m *metrics.Metrics, corsOrigins []string) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())
	if m != nil {
		r.Use(m.Middleware())
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowAllOrigins:  len(corsOrigins) == 0,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: len(corsOrigins) > 0,
	}))

	r.GET("/health", h.Health)
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// Public route
	r.POST("/authenticate", h.Authenticate)

	// Protected routes - require a registered token
	api := r.Group("")
	api.Use(TokenAuthMiddleware(sessions))
	{
		api.GET("/getUserProfile", h.GetUserProfile)
		api.GET("/getUserFollowers", h.GetUserFollowers)
		api.GET("/getUserFollowings", h.GetUserFollowings)
		api.GET("/getUserPosts", h.GetUserPosts)

		api.POST("/followUser", h.FollowUser)
		api.POST("/unfollowUser", h.UnfollowUser)
		api.POST("/postLike", h.PostLike)
		api.POST("/postComment", h.PostComment)

		api.GET("/getUserActivity", h.GetUserActivity)
		api.POST("/exportUserPosts", h.ExportUserPosts)
	}

	return r
}
