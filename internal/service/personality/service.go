// Package personality 五大人格问卷计分、提示词个性化与得分提交
package personality

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/logger"
	"github.com/ashwinyue/persona-chat/internal/metrics"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/repository"
	"github.com/ashwinyue/persona-chat/internal/service/experiment"
)

// Service 人格得分服务
type Service struct {
	repo        *repository.Repositories
	experiments *experiment.Service
}

// NewService 创建人格得分服务
func NewService(repo *repository.Repositories, experiments *experiment.Service) *Service {
	return &Service{repo: repo, experiments: experiments}
}

// SubmitRequest 提交问卷
// 提供 answers 时在服务端计分，否则使用请求中的五个得分
type SubmitRequest struct {
	UserID       string         `json:"userId" binding:"required"`
	ExperimentID string         `json:"experimentId" binding:"required"`
	Answers      map[string]any `json:"answers"`
	model.PartialTraits
}

// SubmitResult 提交结果
type SubmitResult struct {
	Scores        *model.PersonalityScores `json:"scores"`
	AssignedAgent model.AgentSnapshot      `json:"assignedAgent"`
	BaselineAgent model.AgentSnapshot      `json:"baselineAgent"`
	Personalized  bool                     `json:"personalized"`
}

// Submit 保存得分并为用户分配个性化智能体
// 个性化后的智能体作为新记录保存，模板智能体保持不变
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	traits, err := resolveTraits(req)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.User.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin && user.ExperimentID != req.ExperimentID {
		return nil, apperr.Validation("user %s does not belong to experiment %s", user.ID, req.ExperimentID)
	}
	exp, err := s.repo.Experiment.GetByID(ctx, req.ExperimentID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Personality.Upsert(ctx, &model.PersonalityScores{
		UserID:       user.ID,
		ExperimentID: exp.ID,
		Traits:       traits,
	}); err != nil {
		return nil, fmt.Errorf("failed to save scores: %w", err)
	}
	scores, err := s.repo.Personality.Get(ctx, user.ID, exp.ID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.User.UpdateTraits(ctx, user.ID, traits); err != nil {
		return nil, fmt.Errorf("failed to update user scores: %w", err)
	}

	base, err := s.experiments.SelectAgent(ctx, exp)
	if err != nil {
		return nil, err
	}
	baseSnap := base.Snapshot()

	assigned, personalized, err := Personalize(baseSnap, base.PersonalityStrategy, traits.Partial())
	if err != nil {
		return nil, err
	}
	if personalized {
		variant := assigned.ToAgent()
		if err := s.repo.Agent.Create(ctx, variant); err != nil {
			return nil, fmt.Errorf("failed to save personalized agent: %w", err)
		}
		assigned = variant.Snapshot()
	}
	if err := s.repo.User.UpdateAgent(ctx, user.ID, &assigned); err != nil {
		return nil, fmt.Errorf("failed to assign agent: %w", err)
	}

	metrics.ObserveAssignment(string(base.PersonalityStrategy), personalized)
	logger.L().Info("agent assigned",
		zap.String("user_id", user.ID),
		zap.String("experiment_id", exp.ID),
		zap.String("base_agent_id", base.ID),
		zap.String("agent_id", assigned.ID),
		zap.String("strategy", string(base.PersonalityStrategy)),
	)

	baseline := baseSnap.Clone()
	baseline.PersonalityStrategy = model.StrategyNone
	return &SubmitResult{
		Scores:        scores,
		AssignedAgent: assigned,
		BaselineAgent: baseline,
		Personalized:  personalized,
	}, nil
}

func resolveTraits(req *SubmitRequest) (model.Traits, error) {
	// 缺失或非数值的答案按中间值计分，部分作答仍可提交
	if len(req.Answers) > 0 {
		return ScoreRaw(req.Answers), nil
	}
	traits, ok := req.PartialTraits.Complete()
	if !ok {
		return model.Traits{}, apperr.Validation("Invalid or incomplete data")
	}
	if err := traits.Validate(); err != nil {
		return model.Traits{}, apperr.Wrap(apperr.KindValidation, err, "Invalid or incomplete data")
	}
	return traits, nil
}

// GetByUser 获取用户最近提交的得分
func (s *Service) GetByUser(ctx context.Context, userID string) (*model.PersonalityScores, error) {
	return s.repo.Personality.GetLatestByUser(ctx, userID)
}

// ListByExperiment 列出实验的全部得分
func (s *Service) ListByExperiment(ctx context.Context, experimentID string) ([]*model.PersonalityScores, error) {
	return s.repo.Personality.ListByExperiment(ctx, experimentID)
}
