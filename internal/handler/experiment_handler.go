package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-chat/internal/service"
	"github.com/ashwinyue/persona-chat/internal/service/experiment"
)

// ExperimentHandler 实验处理器
type ExperimentHandler struct {
	svc *service.Services
}

// NewExperimentHandler 创建实验处理器
func NewExperimentHandler(svc *service.Services) *ExperimentHandler {
	return &ExperimentHandler{svc: svc}
}

// StatusRequest 批量更新实验状态，key 为实验 ID
type StatusRequest struct {
	Experiments map[string]bool `json:"experiments" binding:"required"`
}

// DisplaySettingsRequest 展示设置
type DisplaySettingsRequest struct {
	DisplaySettings map[string]any `json:"displaySettings" binding:"required"`
}

// CreateExperiment 创建实验
func (h *ExperimentHandler) CreateExperiment(c *gin.Context) {
	var req experiment.ExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	exp, err := h.svc.Experiment.Create(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, exp)
}

// GetExperiment 获取实验
func (h *ExperimentHandler) GetExperiment(c *gin.Context) {
	exp, err := h.svc.Experiment.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, exp)
}

// ListExperiments 分页列出实验
func (h *ExperimentHandler) ListExperiments(c *gin.Context) {
	page, size := getPagination(c)

	exps, total, err := h.svc.Experiment.List(c.Request.Context(), page, size)
	if err != nil {
		Error(c, err)
		return
	}

	SuccessWithPagination(c, exps, total, page, size)
}

// UpdateExperiment 更新实验
func (h *ExperimentHandler) UpdateExperiment(c *gin.Context) {
	var req experiment.ExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	exp, err := h.svc.Experiment.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, exp)
}

// DeleteExperiment 删除实验及其会话
func (h *ExperimentHandler) DeleteExperiment(c *gin.Context) {
	if err := h.svc.Experiment.Delete(c.Request.Context(), c.Param("id")); err != nil {
		Error(c, err)
		return
	}

	Success(c, nil)
}

// UpdateStatus 批量启用/停用实验
func (h *ExperimentHandler) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := h.svc.Experiment.UpdateStatus(c.Request.Context(), req.Experiments); err != nil {
		Error(c, err)
		return
	}

	Success(c, nil)
}

// UpdateDisplaySettings 更新展示设置
func (h *ExperimentHandler) UpdateDisplaySettings(c *gin.Context) {
	var req DisplaySettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := h.svc.Experiment.UpdateDisplaySettings(c.Request.Context(), c.Param("id"), req.DisplaySettings); err != nil {
		Error(c, err)
		return
	}

	Success(c, nil)
}

// GetFeatures 获取实验开关
func (h *ExperimentHandler) GetFeatures(c *gin.Context) {
	features, err := h.svc.Experiment.Features(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, features)
}

// GetBoundaries 获取实验限制
func (h *ExperimentHandler) GetBoundaries(c *gin.Context) {
	bounds, err := h.svc.Experiment.Boundaries(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, bounds)
}

// GetForms 获取实验的会话前后问卷
func (h *ExperimentHandler) GetForms(c *gin.Context) {
	forms, err := h.svc.Form.ConversationForms(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, forms)
}
