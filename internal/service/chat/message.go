package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/logger"
	"github.com/ashwinyue/persona-chat/internal/metrics"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/service/personality"
)

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ChunkFunc 接收流式回复的增量内容，返回错误后不再推送但回复仍会保存
type ChunkFunc func(chunk string) error

// SendMessage 发送用户消息并返回保存后的助手回复
// onChunk 为 nil 时一次性生成，否则以流式方式逐段推送
func (s *Service) SendMessage(ctx context.Context, conversationID, content string, onChunk ChunkFunc) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("content is required")
	}

	conv, err := s.repo.Conversation.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.MaxMessages != nil && conv.MessagesNumber+1 > *conv.MaxMessages {
		metrics.ObserveLimit("messages")
		return nil, apperr.LimitExceeded("Message limit exceeded")
	}

	history, err := s.loadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	input := buildMessages(conv.Agent, history, content)

	cm, err := s.models.ChatModel(ctx, conv.Agent)
	if err != nil {
		return nil, err
	}

	userMsg := &model.Message{
		ConversationID: conversationID,
		ExperimentID:   conv.ExperimentID,
		Role:           model.RoleUser,
		Content:        content,
		MessageNumber:  len(history) + 1,
	}
	if err := s.repo.Conversation.CreateMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}
	s.appendHistory(ctx, conversationID, userMsg)

	if len(s.handlers) > 0 {
		ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
			Name:      "conversation",
			Type:      "OpenAI",
			Component: components.ComponentOfChatModel,
		}, s.handlers...)
	}

	start := time.Now()
	var reply string
	if onChunk == nil {
		reply, err = generate(ctx, cm, input)
	} else {
		reply, err = stream(ctx, cm, input, onChunk)
	}
	metrics.ObserveLLM(modelLabel(conv.Agent), onChunk != nil, err, time.Since(start))
	if err != nil {
		logger.L().Error("llm call failed",
			zap.String("conversation_id", conversationID),
			zap.String("model", conv.Agent.Model),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}

	assistant := &model.Message{
		ConversationID: conversationID,
		ExperimentID:   conv.ExperimentID,
		Role:           model.RoleAssistant,
		Content:        reply,
		MessageNumber:  len(history) + 2,
	}
	if err := s.repo.Conversation.CreateReply(ctx, assistant, s.now()); err != nil {
		return nil, fmt.Errorf("failed to save reply: %w", err)
	}
	s.appendHistory(ctx, conversationID, assistant)
	return assistant, nil
}

func generate(ctx context.Context, cm einomodel.BaseChatModel, input []*schema.Message) (string, error) {
	out, err := cm.Generate(ctx, input)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	return strings.TrimSpace(out.Content), nil
}

// stream 读完整个上游流，推送失败只停止推送
func stream(ctx context.Context, cm einomodel.BaseChatModel, input []*schema.Message, onChunk ChunkFunc) (string, error) {
	sr, err := cm.Stream(ctx, input)
	if err != nil {
		return "", err
	}
	defer sr.Close()

	var b strings.Builder
	forward := true
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		b.WriteString(chunk.Content)
		if !forward {
			continue
		}
		if err := onChunk(chunk.Content); err != nil {
			forward = false
			logger.L().Warn("stopped forwarding reply chunks", zap.Error(err))
		}
	}
	return b.String(), nil
}

// buildMessages 系统提示词、历史、前置提示、用户消息、后置提示，空提示省略
func buildMessages(agent model.AgentSnapshot, history []*schema.Message, content string) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)+4)
	msgs = append(msgs, schema.SystemMessage(systemPrompt(agent)))
	msgs = append(msgs, history...)
	if agent.BeforeUserSentencePrompt != "" {
		msgs = append(msgs, schema.SystemMessage(agent.BeforeUserSentencePrompt))
	}
	msgs = append(msgs, schema.UserMessage(content))
	if agent.AfterUserSentencePrompt != "" {
		msgs = append(msgs, schema.SystemMessage(agent.AfterUserSentencePrompt))
	}
	return msgs
}

// systemPrompt promptTemplate 优先，其次 systemStarterPrompt，都为空时用人格描述
func systemPrompt(agent model.AgentSnapshot) string {
	if agent.PromptTemplate != "" {
		return agent.PromptTemplate
	}
	if agent.SystemStarterPrompt != "" {
		return agent.SystemStarterPrompt
	}

	parts := make([]string, 0, len(model.AllTraits))
	for _, trait := range model.AllTraits {
		v := "?"
		if p := agent.PartialTraits.Get(trait); p != nil {
			v = personality.FormatScore(*p)
		}
		parts = append(parts, fmt.Sprintf("%s: %s /50", trait, v))
	}
	return "You are an assistant with the following Big Five traits: " + strings.Join(parts, ", ") + ". Respond accordingly."
}

func modelLabel(agent model.AgentSnapshot) string {
	if agent.Model == "" {
		return "default"
	}
	return agent.Model
}

// loadHistory 优先读 Redis，未命中时从数据库加载并回填
func (s *Service) loadHistory(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	if s.history.Enabled() {
		msgs, ok, err := s.history.Get(ctx, conversationID)
		switch {
		case err != nil:
			logger.L().Warn("failed to read history cache", zap.String("conversation_id", conversationID), zap.Error(err))
		case ok:
			metrics.ObserveHistory(true)
			return msgs, nil
		default:
			metrics.ObserveHistory(false)
		}
	}

	rows, err := s.repo.Conversation.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	msgs := toSchema(rows)
	if err := s.history.Set(ctx, conversationID, msgs); err != nil {
		logger.L().Warn("failed to fill history cache", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	return msgs, nil
}

func (s *Service) appendHistory(ctx context.Context, conversationID string, msg *model.Message) {
	if err := s.history.Append(ctx, conversationID, toSchema([]*model.Message{msg})...); err != nil {
		logger.L().Warn("failed to append history cache", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

func toSchema(rows []*model.Message) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(rows))
	for _, m := range rows {
		switch m.Role {
		case model.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		case model.RoleSystem:
			msgs = append(msgs, schema.SystemMessage(m.Content))
		default:
			msgs = append(msgs, schema.UserMessage(m.Content))
		}
	}
	return msgs
}
