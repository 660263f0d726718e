package experiment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/logger"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/repository"
	"github.com/ashwinyue/persona-chat/internal/service/session"
)

// Service 实验服务
type Service struct {
	repo     *repository.Repositories
	selector *Selector
	history  *session.History
}

// NewService 创建实验服务，history 为 nil 时删除实验不清理缓存
func NewService(repo *repository.Repositories, selector *Selector, history *session.History) *Service {
	if selector == nil {
		selector = NewSelector(nil)
	}
	return &Service{repo: repo, selector: selector, history: history}
}

// ExperimentRequest 创建/更新实验请求
type ExperimentRequest struct {
	Title              string                    `json:"title" binding:"required"`
	Description        string                    `json:"description"`
	IsActive           bool                      `json:"isActive"`
	AgentsMode         model.AgentsMode          `json:"agentsMode" binding:"required,oneof=Single Multi"`
	ActiveAgent        string                    `json:"activeAgent"`
	MultiAgents        []model.AgentDistribution `json:"multiAgents"`
	MaxMessages        *int                      `json:"maxMessages" binding:"omitempty,min=0"`
	MaxConversations   *int                      `json:"maxConversations" binding:"omitempty,min=0"`
	MaxParticipants    *int                      `json:"maxParticipants" binding:"omitempty,min=0"`
	DisplaySettings    map[string]any            `json:"displaySettings"`
	ExperimentForms    model.ExperimentForms     `json:"experimentForms"`
	ExperimentFeatures model.ExperimentFeatures  `json:"experimentFeatures"`
}

// Features 前端需要的实验开关
type Features struct {
	model.ExperimentFeatures
	BaselineAgent *model.Agent `json:"baselineAgent,omitempty"`
}

// Create 创建实验
func (s *Service) Create(ctx context.Context, req *ExperimentRequest) (*model.Experiment, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	exp := &model.Experiment{}
	apply(exp, req)
	if err := s.repo.Experiment.Create(ctx, exp); err != nil {
		return nil, fmt.Errorf("failed to create experiment: %w", err)
	}
	return exp, nil
}

// Update 更新实验，计数器保持不变
func (s *Service) Update(ctx context.Context, id string, req *ExperimentRequest) (*model.Experiment, error) {
	exp, err := s.repo.Experiment.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	apply(exp, req)
	if err := s.repo.Experiment.Update(ctx, exp); err != nil {
		return nil, fmt.Errorf("failed to update experiment: %w", err)
	}
	return exp, nil
}

func (s *Service) validate(ctx context.Context, req *ExperimentRequest) error {
	if err := ValidateAgents(req.AgentsMode, req.ActiveAgent, req.MultiAgents); err != nil {
		return err
	}
	for _, id := range agentIDs(req.AgentsMode, req.ActiveAgent, req.MultiAgents) {
		if _, err := s.repo.Agent.GetByID(ctx, id); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Validation("agent %s does not exist", id)
			}
			return err
		}
	}
	return nil
}

func apply(exp *model.Experiment, req *ExperimentRequest) {
	exp.Title = req.Title
	exp.Description = req.Description
	exp.IsActive = req.IsActive
	exp.AgentsMode = req.AgentsMode
	exp.ActiveAgent = ""
	exp.MultiAgents = nil
	if req.AgentsMode == model.AgentsModeSingle {
		exp.ActiveAgent = req.ActiveAgent
	} else {
		exp.MultiAgents = append([]model.AgentDistribution(nil), req.MultiAgents...)
	}
	exp.MaxMessages = req.MaxMessages
	exp.MaxConversations = req.MaxConversations
	exp.MaxParticipants = req.MaxParticipants
	exp.DisplaySettings = req.DisplaySettings
	exp.ExperimentForms = req.ExperimentForms
	exp.ExperimentFeatures = req.ExperimentFeatures
}

// Get 获取实验
func (s *Service) Get(ctx context.Context, id string) (*model.Experiment, error) {
	return s.repo.Experiment.GetByID(ctx, id)
}

// List 分页列出实验
func (s *Service) List(ctx context.Context, page, size int) ([]*model.Experiment, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return s.repo.Experiment.List(ctx, (page-1)*size, size)
}

// ListByAgent 列出引用了智能体的实验
func (s *Service) ListByAgent(ctx context.Context, agentID string) ([]*model.Experiment, error) {
	return s.repo.Experiment.ListByAgent(ctx, agentID)
}

// Delete 删除实验及其会话
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Experiment.GetByID(ctx, id); err != nil {
		return err
	}
	conversationIDs, err := s.repo.Experiment.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	// 缓存清理失败不影响删除，过期后自然失效
	if err := s.history.Clear(ctx, conversationIDs...); err != nil {
		logger.L().Warn("failed to clear conversation history",
			zap.String("experiment_id", id), zap.Int("conversations", len(conversationIDs)), zap.Error(err))
	}
	return nil
}

// UpdateStatus 批量启用/停用实验
func (s *Service) UpdateStatus(ctx context.Context, status map[string]bool) error {
	if len(status) == 0 {
		return apperr.Validation("no experiments to update")
	}
	if err := s.repo.Experiment.UpdateStatus(ctx, status); err != nil {
		return fmt.Errorf("failed to update experiments status: %w", err)
	}
	return nil
}

// UpdateDisplaySettings 更新展示设置
func (s *Service) UpdateDisplaySettings(ctx context.Context, id string, settings map[string]any) error {
	return s.repo.Experiment.UpdateDisplaySettings(ctx, id, settings)
}

// Features 返回实验开关，Single 模式附带基线智能体
func (s *Service) Features(ctx context.Context, id string) (*Features, error) {
	exp, err := s.repo.Experiment.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &Features{ExperimentFeatures: exp.ExperimentFeatures}
	if exp.AgentsMode == model.AgentsModeSingle && exp.ActiveAgent != "" {
		base, err := s.repo.Agent.GetByID(ctx, exp.ActiveAgent)
		if err == nil {
			base.PersonalityStrategy = model.StrategyNone
			out.BaselineAgent = base
		} else if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
	}
	return out, nil
}

// Boundaries 返回实验限制
func (s *Service) Boundaries(ctx context.Context, id string) (model.Boundaries, error) {
	exp, err := s.repo.Experiment.GetByID(ctx, id)
	if err != nil {
		return model.Boundaries{}, err
	}
	return exp.Boundaries(), nil
}

// SelectAgent 为实验抽取智能体并加载
// 被引用的智能体已不存在属于配置错误
func (s *Service) SelectAgent(ctx context.Context, exp *model.Experiment) (*model.Agent, error) {
	id, err := s.selector.Select(exp)
	if err != nil {
		return nil, err
	}
	agent, err := s.repo.Agent.GetByID(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Wrap(apperr.KindConfiguration, err, "experiment %s references a missing agent", exp.ID)
		}
		return nil, err
	}
	return agent, nil
}
