package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"crisp-academy/backend/config"
	_ "crisp-academy/backend/docs"
	"crisp-academy/backend/internal/api/handler"
	"crisp-academy/backend/internal/api/middleware"
	"crisp-academy/backend/internal/model"
	"crisp-academy/backend/pkg/jwt"
	"crisp-academy/backend/pkg/redis"
)

// Setup builds the gin engine with every route registered.
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── global middleware ──
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimitBytes))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Server.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := middleware.RoleAuth(model.RoleAdmin)
	manager := middleware.RoleAuth(model.RoleAdmin, model.RoleHOD)
	authLimit := middleware.RateLimit(rdb, cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow)

	v1 := r.Group("/api/v1")
	{
		// ── public ──
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authLimit, h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
			auth.POST("/forgot-password", authLimit, h.Auth.ForgotPassword)
			auth.POST("/reset-password", authLimit, h.Auth.ResetPassword)
		}

		// ── authenticated ──
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)

			authorized.GET("/roles", h.User.ListRoles)

			users := authorized.Group("/users")
			{
				users.POST("", admin, h.User.CreateUser)
				users.GET("", manager, h.User.ListUsers)
				users.POST("/import", admin, h.User.ImportUsers)
				users.GET("/:id", h.User.GetUser)    // scoped in the service
				users.PUT("/:id", h.User.UpdateUser) // admin or self
				users.DELETE("/:id", admin, h.User.DeleteUser)
				users.PUT("/:id/role", admin, h.User.AssignRole)
				users.POST("/:id/reset-password", admin, h.User.ResetPassword)
			}

			departments := authorized.Group("/departments")
			{
				departments.GET("", h.Department.List)
				departments.GET("/:id", h.Department.Get)
				departments.POST("", admin, h.Department.Create)
				departments.PUT("/:id", admin, h.Department.Update)
				departments.DELETE("/:id", admin, h.Department.Delete)
				departments.GET("/:id/staff", manager, h.Department.Staff)
			}

			sessions := authorized.Group("/sessions")
			{
				sessions.GET("", h.Session.List)
				sessions.GET("/:id", h.Session.Get)
				sessions.POST("", admin, h.Session.Create)
				sessions.PUT("/:id", admin, h.Session.Update)
				sessions.DELETE("/:id", admin, h.Session.Delete)
				sessions.POST("/:id/publish", admin, h.Session.Publish)
				sessions.POST("/:id/close", admin, h.Session.Close)
				sessions.GET("/:id/results", manager, h.Session.Results)
				sessions.GET("/:id/results/export", manager, h.Session.ExportResults)

				sessions.GET("/:id/questions", admin, h.Question.List)
				sessions.POST("/:id/questions", admin, h.Question.Create)
				sessions.POST("/:id/questions/import", admin, h.Question.Import)

				sessions.POST("/:id/start", h.Progress.Start)
				sessions.GET("/:id/progress", h.Progress.Get)
				sessions.GET("/:id/categories/:category/questions", h.Progress.CategoryQuestions)
				sessions.PUT("/:id/answers", h.Progress.SyncAnswers)
				sessions.POST("/:id/complete-category", h.Progress.CompleteCategory)
				sessions.POST("/:id/submit", h.Progress.Submit)
			}

			questions := authorized.Group("/questions", admin)
			{
				questions.PUT("/:qid", h.Question.Update)
				questions.DELETE("/:qid", h.Question.Delete)
			}

			me := authorized.Group("/me")
			{
				me.GET("/progress", h.Progress.ListMine)
				me.GET("/certificates", h.Certificate.ListMine)
			}

			certificates := authorized.Group("/certificates")
			{
				certificates.GET("", admin, h.Certificate.List)
				certificates.GET("/:id", h.Certificate.Get)
				certificates.GET("/:id/download", h.Certificate.Download)
				certificates.POST("/:id/regenerate", admin, h.Certificate.Regenerate)
			}

			trivia := authorized.Group("/trivia")
			{
				trivia.GET("", admin, h.Trivia.List)
				trivia.POST("", admin, h.Trivia.Create)
				trivia.POST("/seed", admin, h.Trivia.Seed)
				trivia.GET("/current", h.Trivia.Current)
				trivia.GET("/:id", h.Trivia.Get)
				trivia.PUT("/:id", admin, h.Trivia.Update)
				trivia.DELETE("/:id", admin, h.Trivia.Delete)
				trivia.POST("/:id/participate", h.Trivia.Participate)
				trivia.GET("/:id/participation", h.Trivia.MyParticipation)
				trivia.GET("/:id/leaderboard", h.Trivia.Leaderboard)
				trivia.GET("/:id/live", h.Trivia.Live)
			}

			authorized.GET("/leaderboard", h.Leaderboard.Overall)
		}
	}

	return r
}
