package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/logger"
	"github.com/ashwinyue/persona-chat/internal/middleware"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/service"
	"github.com/ashwinyue/persona-chat/internal/service/chat"
)

// ConversationHandler 会话处理器
type ConversationHandler struct {
	svc *service.Services
}

// NewConversationHandler 创建会话处理器
func NewConversationHandler(svc *service.Services) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// CreateConversationRequest 创建会话请求
type CreateConversationRequest struct {
	ExperimentID string `json:"experimentId" binding:"required"`
}

// StreamEvent SSE 事件
type StreamEvent struct {
	Type string      `json:"type"` // start, message, error, end
	Data interface{} `json:"data,omitempty"`
}

var errClientGone = errors.New("client disconnected")

func currentUser(c *gin.Context) *model.User {
	u, _ := middleware.GetCurrentUser(c)
	if u == nil {
		return &model.User{}
	}
	return u
}

// access 校验当前用户能否访问会话
func (h *ConversationHandler) access(c *gin.Context, conversationID string) (*model.Conversation, bool) {
	u := currentUser(c)
	conv, err := h.svc.Chat.CheckAccess(c.Request.Context(), conversationID, u.ID, u.IsAdmin)
	if err != nil {
		Error(c, err)
		return nil, false
	}
	return conv, true
}

// CreateConversation 创建会话
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	conv, err := h.svc.Chat.CreateConversation(c.Request.Context(), currentUser(c).ID, req.ExperimentID)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, conv)
}

// SendMessage 发送消息
// stream=true 且实验开启流式时以 SSE 推送回复
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	var req chat.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	conv, ok := h.access(c, c.Param("id"))
	if !ok {
		return
	}

	if c.Query("stream") == "true" {
		exp, err := h.svc.Experiment.Get(c.Request.Context(), conv.ExperimentID)
		if err != nil {
			Error(c, err)
			return
		}
		if exp.ExperimentFeatures.StreamMessage {
			h.streamMessage(c, conv.ID, req.Content)
			return
		}
	}

	reply, err := h.svc.Chat.SendMessage(c.Request.Context(), conv.ID, req.Content, nil)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, reply)
}

// streamMessage 以 SSE 推送回复
// 客户端断开后停止推送，但上游继续读取直到回复保存
func (h *ConversationHandler) streamMessage(c *gin.Context, conversationID, content string) {
	reqCtx := c.Request.Context()
	started := false
	send := func(event StreamEvent) {
		c.SSEvent("", event)
		c.Writer.Flush()
	}
	begin := func() {
		if started {
			return
		}
		started = true
		// 设置 SSE 响应头
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("Transfer-Encoding", "chunked")
		send(StreamEvent{Type: "start"})
	}

	onChunk := func(chunk string) error {
		if reqCtx.Err() != nil {
			return errClientGone
		}
		begin()
		send(StreamEvent{Type: "message", Data: chunk})
		return nil
	}

	reply, err := h.svc.Chat.SendMessage(context.WithoutCancel(reqCtx), conversationID, content, onChunk)
	if err != nil {
		if !started {
			Error(c, err)
			return
		}
		logger.L().Warn("stream failed", zap.String("conversation_id", conversationID), zap.Error(err))
		if reqCtx.Err() == nil {
			send(StreamEvent{Type: "error", Data: apperr.Message(err)})
		}
		return
	}
	if reqCtx.Err() != nil {
		return
	}
	begin()
	send(StreamEvent{Type: "end", Data: reply})
}

// GetMessages 获取会话消息
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	conv, ok := h.access(c, c.Param("id"))
	if !ok {
		return
	}

	msgs, err := h.svc.Chat.GetMessages(c.Request.Context(), conv.ID)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, msgs)
}

// ListUserConversations 列出当前用户的会话，管理员可通过 userId 查询其他用户
func (h *ConversationHandler) ListUserConversations(c *gin.Context) {
	u := currentUser(c)
	userID := u.ID
	if other := c.Query("userId"); other != "" && other != u.ID {
		if !u.IsAdmin {
			Error(c, apperr.Forbidden("Forbidden"))
			return
		}
		userID = other
	}

	convs, err := h.svc.Chat.ListByUser(c.Request.Context(), userID)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, convs)
}

// FinishConversation 结束会话
func (h *ConversationHandler) FinishConversation(c *gin.Context) {
	conv, ok := h.access(c, c.Param("id"))
	if !ok {
		return
	}

	if err := h.svc.Chat.Finish(c.Request.Context(), conv.ID); err != nil {
		Error(c, err)
		return
	}

	Success(c, nil)
}

// SaveSurvey 保存对话后问卷
func (h *ConversationHandler) SaveSurvey(c *gin.Context) {
	var answers chat.SurveyAnswers
	if err := c.ShouldBindJSON(&answers); err != nil {
		BadRequest(c, err.Error())
		return
	}

	conv, ok := h.access(c, c.Param("id"))
	if !ok {
		return
	}

	if err := h.svc.Chat.SaveSurvey(c.Request.Context(), conv.ID, answers); err != nil {
		Error(c, err)
		return
	}

	Success(c, nil)
}

// UpdateMetadata 更新对话前或对话后问卷
func (h *ConversationHandler) UpdateMetadata(c *gin.Context) {
	var req chat.MetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if _, ok := h.access(c, req.ConversationID); !ok {
		return
	}

	if err := h.svc.Chat.UpdateMetadata(c.Request.Context(), &req); err != nil {
		Error(c, err)
		return
	}

	Success(c, nil)
}

// Annotate 标注助手消息
func (h *ConversationHandler) Annotate(c *gin.Context) {
	var req chat.AnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	u := currentUser(c)
	msg, err := h.svc.Chat.Annotate(c.Request.Context(), u.ID, u.IsAdmin, &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, msg)
}
