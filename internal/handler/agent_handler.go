package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/service"
	"github.com/ashwinyue/persona-chat/internal/service/agent"
)

// AgentHandler 智能体处理器
type AgentHandler struct {
	svc *service.Services
}

// NewAgentHandler 创建智能体处理器
func NewAgentHandler(svc *service.Services) *AgentHandler {
	return &AgentHandler{svc: svc}
}

// CreateAgent 创建智能体
func (h *AgentHandler) CreateAgent(c *gin.Context) {
	var req model.AgentSpec
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	created, err := h.svc.Agent.CreateAgent(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, created)
}

// GetAgent 获取智能体
func (h *AgentHandler) GetAgent(c *gin.Context) {
	a, err := h.svc.Agent.GetAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, a)
}

// ListAgents 列出智能体
func (h *AgentHandler) ListAgents(c *gin.Context) {
	agents, err := h.svc.Agent.ListAgents(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, agents)
}

// UpdateAgent 更新智能体
func (h *AgentHandler) UpdateAgent(c *gin.Context) {
	var req model.AgentSpec
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	updated, err := h.svc.Agent.UpdateAgent(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, updated)
}

// DeleteAgent 删除智能体，仍被实验引用时返回 409 及引用它的实验
func (h *AgentHandler) DeleteAgent(c *gin.Context) {
	if err := h.svc.Agent.DeleteAgent(c.Request.Context(), c.Param("id")); err != nil {
		var inUse *agent.InUseError
		if errors.As(err, &inUse) {
			c.JSON(http.StatusConflict, Response{Code: -1, Message: "agent is used by experiments", Data: inUse.Experiments})
			return
		}
		Error(c, err)
		return
	}

	Success(c, nil)
}

// ListExperiments 列出引用该智能体的实验
func (h *AgentHandler) ListExperiments(c *gin.Context) {
	exps, err := h.svc.Experiment.ListByAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, exps)
}
