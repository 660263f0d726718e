package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/middleware"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/service"
	"github.com/ashwinyue/persona-chat/internal/service/auth"
	"github.com/ashwinyue/persona-chat/internal/service/user"
)

// AuthHandler 用户与认证处理器
type AuthHandler struct {
	svc *service.Services
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(svc *service.Services) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// TokenResponse 登录/注册响应
type TokenResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// BigFiveRequest 直接写入用户的五大人格得分
type BigFiveRequest struct {
	model.Traits
}

// setToken 写入认证 cookie
func (h *AuthHandler) setToken(c *gin.Context, token string) {
	cfg := h.svc.Config.Auth
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.CookieName, token, int(h.svc.Auth.TTL().Seconds()), "/", "", cfg.CookieSecure, true)
}

// Register 参与者注册
func (h *AuthHandler) Register(c *gin.Context) {
	var req user.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid parameters: "+err.Error())
		return
	}

	u, token, err := h.svc.User.Register(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	h.setToken(c, token)
	Created(c, TokenResponse{User: u, Token: token})
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid parameters: "+err.Error())
		return
	}

	u, token, err := h.svc.Auth.Login(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	h.setToken(c, token)
	Success(c, TokenResponse{User: u, Token: token})
}

// Me 返回当前用户并续期令牌
func (h *AuthHandler) Me(c *gin.Context) {
	token := middleware.TokenFromRequest(c, h.svc.Config.Auth.CookieName)
	if token == "" {
		Error(c, apperr.Unauthorized("Missing authentication token"))
		return
	}

	u, refreshed, err := h.svc.Auth.Refresh(c.Request.Context(), token)
	if err != nil {
		Error(c, err)
		return
	}

	h.setToken(c, refreshed)
	Success(c, TokenResponse{User: u, Token: refreshed})
}

// Logout 清除认证 cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	cfg := h.svc.Config.Auth
	c.SetCookie(cfg.CookieName, "", -1, "/", "", cfg.CookieSecure, true)
	Success(c, nil)
}

// ValidateUsername 检查用户名在实验内是否可用
func (h *AuthHandler) ValidateUsername(c *gin.Context) {
	err := h.svc.User.ValidateUsername(c.Request.Context(), c.Query("experimentId"), c.Query("username"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"available": true})
}

// UpdateUsersAgent 用新的智能体快照替换所有持有该智能体的用户
func (h *AuthHandler) UpdateUsersAgent(c *gin.Context) {
	var req model.AgentSnapshot
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	n, err := h.svc.User.UpdateUsersAgent(c.Request.Context(), req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"updated": n})
}

// UpdateBigFive 写入用户的五大人格得分，只允许本人或管理员
func (h *AuthHandler) UpdateBigFive(c *gin.Context) {
	var req BigFiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	id := c.Param("id")
	current, _ := middleware.GetCurrentUser(c)
	if current == nil || (!current.IsAdmin && current.ID != id) {
		Error(c, apperr.Forbidden("Forbidden"))
		return
	}

	if err := h.svc.User.UpdateBigFive(c.Request.Context(), id, req.Traits); err != nil {
		Error(c, err)
		return
	}

	Success(c, nil)
}
