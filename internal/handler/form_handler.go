package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-chat/internal/service"
	"github.com/ashwinyue/persona-chat/internal/service/form"
)

// FormHandler 问卷处理器
type FormHandler struct {
	svc *service.Services
}

// NewFormHandler 创建问卷处理器
func NewFormHandler(svc *service.Services) *FormHandler {
	return &FormHandler{svc: svc}
}

// CreateForm 保存问卷
func (h *FormHandler) CreateForm(c *gin.Context) {
	var req form.FormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	f, err := h.svc.Form.Create(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, f)
}

// GetForm 获取问卷
func (h *FormHandler) GetForm(c *gin.Context) {
	f, err := h.svc.Form.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, f)
}

// ListForms 列出问卷
func (h *FormHandler) ListForms(c *gin.Context) {
	forms, err := h.svc.Form.List(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, forms)
}

// UpdateForm 更新问卷
func (h *FormHandler) UpdateForm(c *gin.Context) {
	var req form.FormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	f, err := h.svc.Form.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, f)
}

// DeleteForm 删除问卷
func (h *FormHandler) DeleteForm(c *gin.Context) {
	if err := h.svc.Form.Delete(c.Request.Context(), c.Param("id")); err != nil {
		Error(c, err)
		return
	}

	Success(c, nil)
}
