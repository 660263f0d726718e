package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-chat/internal/service"
)

// SystemHandler 系统处理器
type SystemHandler struct {
	svc *service.Services
	db  Pinger
}

// Pinger 可检查连接的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(svc *service.Services, db Pinger) *SystemHandler {
	return &SystemHandler{svc: svc, db: db}
}

// Health 检查数据库与 Redis
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok", "redis": "disabled"}
	healthy := true
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
	}
	if h.svc.History.Enabled() {
		checks["redis"] = "ok"
		if err := h.svc.History.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}

	status := http.StatusOK
	checks["status"] = "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		checks["status"] = "unavailable"
	}
	c.JSON(status, checks)
}

// Version 返回应用版本
func (h *SystemHandler) Version(c *gin.Context) {
	app := h.svc.Config.App
	Success(c, gin.H{"name": app.Name, "version": app.Version, "environment": app.Environment})
}
