package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"recoveryhub/circles/internal/config"
	"recoveryhub/circles/internal/handler/middleware"
	"recoveryhub/circles/internal/metrics"
	jwtpkg "recoveryhub/circles/pkg/jwt"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	gatherer prometheus.Gatherer,
	circleHandler *CircleHandler,
	membershipHandler *MembershipHandler,
	inviteHandler *InviteHandler,
	feedHandler *FeedHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if cfg.Metrics.Enabled && gatherer != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler(gatherer)))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtManager))
	api.Use(middleware.Deadline(cfg.Circles.StoreTimeout))
	{
		api.GET("/me/circles", circleHandler.ListMine)

		api.POST("/circles", circleHandler.Create)
		api.GET("/circles", circleHandler.ListPublic)

		// Token routes are not scoped to a circle
		api.GET("/invites/:token", inviteHandler.Preview)
		api.POST("/invites/:token/redeem", inviteHandler.Redeem)
	}

	circle := api.Group("/circles/:ref")
	{
		circle.GET("", circleHandler.Get)
		circle.PATCH("", circleHandler.Update)
		circle.DELETE("", circleHandler.Delete)

		// Membership
		circle.POST("/join", membershipHandler.Join)
		circle.POST("/leave", membershipHandler.Leave)
		circle.GET("/members", membershipHandler.ListMembers)
		circle.PUT("/members/:userId/role", membershipHandler.UpdateRole)
		circle.DELETE("/members/:userId", membershipHandler.Remove)
		circle.GET("/requests", membershipHandler.ListRequests)
		circle.POST("/requests/:userId/approve", membershipHandler.ApproveRequest)
		circle.POST("/requests/:userId/reject", membershipHandler.RejectRequest)
		circle.POST("/reconcile", membershipHandler.Reconcile)

		// Invites
		circle.POST("/invites", inviteHandler.Create)
		circle.GET("/invites", inviteHandler.List)
		circle.DELETE("/invites/:inviteId", inviteHandler.Revoke)

		// Feed
		circle.POST("/posts", feedHandler.CreatePost)
		circle.GET("/posts", feedHandler.ListPosts)
		circle.GET("/posts/:postId", feedHandler.GetPost)
		circle.DELETE("/posts/:postId", feedHandler.DeletePost)
		circle.POST("/posts/:postId/pin", feedHandler.PinPost)
		circle.DELETE("/posts/:postId/pin", feedHandler.UnpinPost)
		circle.POST("/posts/:postId/reconcile", feedHandler.ReconcilePost)
		circle.POST("/posts/:postId/comments", feedHandler.CreateComment)
		circle.GET("/posts/:postId/comments", feedHandler.ListComments)
		circle.DELETE("/posts/:postId/comments/:commentId", feedHandler.DeleteComment)
	}

	return r
}
