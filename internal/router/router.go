package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ashwinyue/persona-chat/internal/handler"
	"github.com/ashwinyue/persona-chat/internal/metrics"
	"github.com/ashwinyue/persona-chat/internal/middleware"
	"github.com/ashwinyue/persona-chat/internal/service"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, svc *service.Services, log *zap.Logger) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware(log))
	r.Use(middleware.LoggingMiddleware(log))
	r.Use(middleware.CORS(svc.Config.Server.CORSOrigins))
	r.Use(metrics.Middleware())

	requireAuth := middleware.RequireAuth(svc.Auth, svc.Config.Auth.CookieName)
	requireAdmin := middleware.RequireAdmin()

	// 健康检查
	r.GET("/health", h.System.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/version", h.System.Version)

	// Users 用户与认证
	users := api.Group("/users")
	{
		users.POST("", h.Auth.Register)
		users.POST("/login", h.Auth.Login)
		users.POST("/logout", h.Auth.Logout)
		users.GET("/validate", h.Auth.ValidateUsername)
		users.GET("/me", requireAuth, h.Auth.Me)
		users.PUT("/:id/big-five", requireAuth, h.Auth.UpdateBigFive)
		users.PUT("/agent", requireAuth, requireAdmin, h.Auth.UpdateUsersAgent)
	}

	// Experiments 实验
	experiments := api.Group("/experiments")
	{
		experiments.GET("/:id", h.Experiment.GetExperiment)
		experiments.GET("/:id/features", h.Experiment.GetFeatures)
		experiments.GET("/:id/boundaries", h.Experiment.GetBoundaries)
		experiments.GET("/:id/forms", h.Experiment.GetForms)

		admin := experiments.Group("", requireAuth, requireAdmin)
		admin.POST("", h.Experiment.CreateExperiment)
		admin.GET("", h.Experiment.ListExperiments)
		admin.PUT("/:id", h.Experiment.UpdateExperiment)
		admin.DELETE("/:id", h.Experiment.DeleteExperiment)
		admin.PATCH("/status", h.Experiment.UpdateStatus)
		admin.PUT("/:id/display-settings", h.Experiment.UpdateDisplaySettings)
	}

	// Agents 智能体
	agents := api.Group("/agents", requireAuth, requireAdmin)
	{
		agents.POST("", h.Agent.CreateAgent)
		agents.GET("", h.Agent.ListAgents)
		agents.GET("/:id", h.Agent.GetAgent)
		agents.PUT("/:id", h.Agent.UpdateAgent)
		agents.DELETE("/:id", h.Agent.DeleteAgent)
		agents.GET("/:id/experiments", h.Agent.ListExperiments)
	}

	// Personality 人格问卷
	personality := api.Group("/personality", requireAuth)
	{
		personality.POST("", h.Personality.Submit)
		personality.GET("/user/:userId", h.Personality.GetByUser)
		personality.GET("/experiment/:experimentId", requireAdmin, h.Personality.ListByExperiment)
	}

	// Conversations 会话
	conversations := api.Group("/conversations", requireAuth)
	{
		conversations.POST("", h.Conversation.CreateConversation)
		conversations.GET("/user", h.Conversation.ListUserConversations)
		conversations.PUT("/metadata", h.Conversation.UpdateMetadata)
		conversations.PUT("/annotation", h.Conversation.Annotate)
		conversations.POST("/:id/messages", h.Conversation.SendMessage)
		conversations.GET("/:id/messages", h.Conversation.GetMessages)
		conversations.POST("/:id/finish", h.Conversation.FinishConversation)
		conversations.POST("/:id/survey", h.Conversation.SaveSurvey)
	}

	// Forms 问卷定义
	forms := api.Group("/forms", requireAuth)
	{
		forms.GET("/:id", h.Form.GetForm)
		forms.GET("", requireAdmin, h.Form.ListForms)
		forms.POST("", requireAdmin, h.Form.CreateForm)
		forms.PUT("/:id", requireAdmin, h.Form.UpdateForm)
		forms.DELETE("/:id", requireAdmin, h.Form.DeleteForm)
	}

	// Data aggregation 数据导出
	data := api.Group("/data-aggregation", requireAuth, requireAdmin)
	{
		data.GET("/:experimentId", h.Data.GetExperimentData)
		data.GET("/:experimentId/xlsx", h.Data.DownloadWorkbook)
		data.GET("/:experimentId/csv", h.Data.DownloadCSV)
	}

	return r
}
