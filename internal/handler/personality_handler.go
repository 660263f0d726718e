package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/middleware"
	"github.com/ashwinyue/persona-chat/internal/service"
	"github.com/ashwinyue/persona-chat/internal/service/personality"
)

// PersonalityHandler 人格问卷处理器
type PersonalityHandler struct {
	svc *service.Services
}

// NewPersonalityHandler 创建人格问卷处理器
func NewPersonalityHandler(svc *service.Services) *PersonalityHandler {
	return &PersonalityHandler{svc: svc}
}

// Submit 提交问卷并分配智能体
// 参与者只能为自己提交
func (h *PersonalityHandler) Submit(c *gin.Context) {
	var req personality.SubmitRequest
	current, _ := middleware.GetCurrentUser(c)
	if current != nil && !current.IsAdmin {
		req.UserID = current.ID
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if current == nil || (!current.IsAdmin && req.UserID != current.ID) {
		Error(c, apperr.Forbidden("Forbidden"))
		return
	}

	result, err := h.svc.Personality.Submit(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, result)
}

// GetByUser 获取用户的得分
func (h *PersonalityHandler) GetByUser(c *gin.Context) {
	userID := c.Param("userId")
	current, _ := middleware.GetCurrentUser(c)
	if current == nil || (!current.IsAdmin && current.ID != userID) {
		Error(c, apperr.Forbidden("Forbidden"))
		return
	}

	scores, err := h.svc.Personality.GetByUser(c.Request.Context(), userID)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, scores)
}

// ListByExperiment 列出实验的全部得分
func (h *PersonalityHandler) ListByExperiment(c *gin.Context) {
	scores, err := h.svc.Personality.ListByExperiment(c.Request.Context(), c.Param("experimentId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, scores)
}
