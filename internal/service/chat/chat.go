// Package chat 会话编排：创建会话、调用模型回复、问卷与标注
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/callbacks"
	einomodel "github.com/cloudwego/eino/components/model"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/logger"
	"github.com/ashwinyue/persona-chat/internal/metrics"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/repository"
	"github.com/ashwinyue/persona-chat/internal/service/experiment"
	"github.com/ashwinyue/persona-chat/internal/service/session"
)

// ModelProvider 按智能体配置提供对话模型
type ModelProvider interface {
	ChatModel(ctx context.Context, agent model.AgentSnapshot) (einomodel.BaseChatModel, error)
}

// Service 会话服务
type Service struct {
	repo        *repository.Repositories
	experiments *experiment.Service
	models      ModelProvider
	history     *session.History
	handlers    []callbacks.Handler
	now         func() time.Time
}

// NewService 创建会话服务，history 可为 nil（不使用缓存）
func NewService(
	repo *repository.Repositories,
	experiments *experiment.Service,
	models ModelProvider,
	history *session.History,
	handlers ...callbacks.Handler,
) *Service {
	return &Service{
		repo:        repo,
		experiments: experiments,
		models:      models,
		history:     history,
		handlers:    handlers,
		now:         time.Now,
	}
}

// UserConversation 会话元数据及其消息
type UserConversation struct {
	Metadata     *model.Conversation `json:"metadata"`
	Conversation []*model.Message    `json:"conversation"`
}

// CreateConversation 为用户在实验中开启新会话
// 管理员每次重新抽取实验智能体且不受会话数限制，参与者使用注册时分配的快照
func (s *Service) CreateConversation(ctx context.Context, userID, experimentID string) (*model.Conversation, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	exp, err := s.experiments.Get(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	bounds := exp.Boundaries()

	var agent model.AgentSnapshot
	if user.IsAdmin {
		a, err := s.experiments.SelectAgent(ctx, exp)
		if err != nil {
			return nil, err
		}
		agent = a.Snapshot()
	} else {
		if user.ExperimentID != experimentID {
			return nil, apperr.Forbidden("user %s does not belong to experiment %s", user.ID, experimentID)
		}
		if bounds.MaxConversations > 0 && user.NumberOfConversations+1 > bounds.MaxConversations {
			metrics.ObserveLimit("conversations")
			return nil, apperr.LimitExceeded("Conversations limit exceeded")
		}
		if user.Agent == nil {
			return nil, apperr.Configuration("user %s has no assigned agent", user.ID)
		}
		agent = user.Agent.Clone()
	}

	conv := &model.Conversation{
		ExperimentID:       experimentID,
		UserID:             user.ID,
		ConversationNumber: user.NumberOfConversations + 1,
		Agent:              agent,
	}
	if !user.IsAdmin && bounds.MaxMessages > 0 {
		limit := bounds.MaxMessages
		conv.MaxMessages = &limit
	}
	first := &model.Message{
		ExperimentID:  experimentID,
		Role:          model.RoleAssistant,
		Content:       agent.FirstChatSentence,
		MessageNumber: 1,
	}

	err = s.repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := repository.NewRepositories(tx)
		if err := r.Conversation.Create(ctx, conv); err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}
		first.ConversationID = conv.ID
		if err := r.Conversation.CreateMessage(ctx, first); err != nil {
			return fmt.Errorf("failed to create first message: %w", err)
		}
		if err := r.User.AddConversation(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to count conversation: %w", err)
		}
		if !user.IsAdmin {
			if err := r.Experiment.AddSession(ctx, experimentID); err != nil {
				return fmt.Errorf("failed to open session: %w", err)
			}
		}
		if scores, ok := agent.PartialTraits.Complete(); ok && agent.PersonalityStrategy != "" {
			p := &model.LLMPersonality{Strategy: agent.PersonalityStrategy, PartialTraits: scores.Partial()}
			if err := r.User.UpdateLLMPersonality(ctx, user.ID, p); err != nil {
				return fmt.Errorf("failed to record llm personality: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.history.Set(ctx, conv.ID, toSchema([]*model.Message{first})); err != nil {
		logger.L().Warn("failed to warm history cache", zap.String("conversation_id", conv.ID), zap.Error(err))
	}

	logger.L().Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", user.ID),
		zap.String("experiment_id", experimentID),
		zap.String("agent_id", agent.ID),
		zap.Bool("admin", user.IsAdmin),
	)
	return conv, nil
}

// Get 获取会话元数据
func (s *Service) Get(ctx context.Context, id string) (*model.Conversation, error) {
	return s.repo.Conversation.GetByID(ctx, id)
}

// CheckAccess 参与者只能访问自己的会话
func (s *Service) CheckAccess(ctx context.Context, conversationID, userID string, isAdmin bool) (*model.Conversation, error) {
	conv, err := s.repo.Conversation.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && conv.UserID != userID {
		return nil, apperr.Forbidden("conversation %s does not belong to user", conversationID)
	}
	return conv, nil
}

// GetMessages 按序号返回会话消息
func (s *Service) GetMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	if _, err := s.repo.Conversation.GetByID(ctx, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.Conversation.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// ListByUser 列出用户的全部会话及消息
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*UserConversation, error) {
	convs, err := s.repo.Conversation.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	out := make([]*UserConversation, 0, len(convs))
	for _, conv := range convs {
		msgs, err := s.repo.Conversation.ListMessages(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		out = append(out, &UserConversation{Metadata: conv, Conversation: msgs})
	}
	return out, nil
}

// Finish 结束会话，参与者的会话首次结束时关闭实验中的一个打开会话
func (s *Service) Finish(ctx context.Context, conversationID string) error {
	conv, err := s.repo.Conversation.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	changed, err := s.repo.Conversation.Finish(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to finish conversation: %w", err)
	}
	if !changed {
		return nil
	}

	user, err := s.repo.User.GetByID(ctx, conv.UserID)
	if err != nil {
		return err
	}
	if user.IsAdmin {
		return nil
	}
	if err := s.repo.Experiment.CloseSession(ctx, conv.ExperimentID); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}
