package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/repository"
)

// Service 智能体服务
type Service struct {
	repo         *repository.Repositories
	defaultModel string
}

// NewService 创建智能体服务，defaultModel 用于未指定模型的智能体
func NewService(repo *repository.Repositories, defaultModel string) *Service {
	return &Service{repo: repo, defaultModel: defaultModel}
}

// InUseError 智能体仍被实验引用
type InUseError struct {
	AgentID     string
	Experiments []*model.Experiment
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("agent %s is used by %d experiment(s)", e.AgentID, len(e.Experiments))
}

// CreateAgent 创建智能体
func (s *Service) CreateAgent(ctx context.Context, spec *model.AgentSpec) (*model.Agent, error) {
	if err := s.normalize(spec); err != nil {
		return nil, err
	}
	agent := &model.Agent{AgentSpec: spec.Clone()}
	if err := s.repo.Agent.Create(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return agent, nil
}

// GetAgent 获取智能体
func (s *Service) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	return s.repo.Agent.GetByID(ctx, id)
}

// ListAgents 列出智能体
func (s *Service) ListAgents(ctx context.Context) ([]*model.Agent, error) {
	return s.repo.Agent.List(ctx)
}

// UpdateAgent 更新智能体模板
// 已分配给用户和会话的快照不受影响
func (s *Service) UpdateAgent(ctx context.Context, id string, spec *model.AgentSpec) (*model.Agent, error) {
	agent, err := s.repo.Agent.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.normalize(spec); err != nil {
		return nil, err
	}
	agent.AgentSpec = spec.Clone()
	if err := s.repo.Agent.Update(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}
	return agent, nil
}

// DeleteAgent 删除智能体，被实验引用时返回冲突及引用它的实验
func (s *Service) DeleteAgent(ctx context.Context, id string) error {
	if _, err := s.repo.Agent.GetByID(ctx, id); err != nil {
		return err
	}
	exps, err := s.repo.Experiment.ListByAgent(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list experiments: %w", err)
	}
	if len(exps) > 0 {
		return apperr.Wrap(apperr.KindConflict, &InUseError{AgentID: id, Experiments: exps}, "agent is used by experiments")
	}
	if err := s.repo.Agent.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	return nil
}

func (s *Service) normalize(spec *model.AgentSpec) error {
	spec.Title = strings.TrimSpace(spec.Title)
	if spec.Title == "" {
		return apperr.Validation("title is required")
	}
	if strings.TrimSpace(spec.FirstChatSentence) == "" {
		return apperr.Validation("firstChatSentence is required")
	}
	if spec.Model == "" {
		spec.Model = s.defaultModel
	}
	if spec.PersonalityStrategy == "" {
		spec.PersonalityStrategy = model.StrategyNone
	}
	if !spec.PersonalityStrategy.Valid() {
		return apperr.Validation("unknown personalityStrategy %q", spec.PersonalityStrategy)
	}
	return ValidateSampling(spec)
}

// ValidateSampling 检查采样参数与人格得分的取值范围，未设置的字段跳过
func ValidateSampling(spec *model.AgentSpec) error {
	if v := spec.Temperature; v != nil && (*v < 0 || *v > 2) {
		return apperr.Validation("temperature must be between 0 and 2")
	}
	if v := spec.TopP; v != nil && (*v < 0 || *v > 1) {
		return apperr.Validation("topP must be between 0 and 1")
	}
	if v := spec.MaxTokens; v != nil && *v <= 0 {
		return apperr.Validation("maxTokens must be positive")
	}
	if v := spec.FrequencyPenalty; v != nil && (*v < -2 || *v > 2) {
		return apperr.Validation("frequencyPenalty must be between -2 and 2")
	}
	if v := spec.PresencePenalty; v != nil && (*v < -2 || *v > 2) {
		return apperr.Validation("presencePenalty must be between -2 and 2")
	}
	for _, trait := range model.AllTraits {
		if v := spec.PartialTraits.Get(trait); v != nil && (*v < 0 || *v > model.MaxTraitScore) {
			return apperr.Validation("%s must be between 0 and %d", trait, model.MaxTraitScore)
		}
	}
	return nil
}
