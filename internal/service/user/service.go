package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/repository"
	"github.com/ashwinyue/persona-chat/internal/service/auth"
	"github.com/ashwinyue/persona-chat/internal/service/experiment"
)

// Service 参与者服务
type Service struct {
	repo        *repository.Repositories
	experiments *experiment.Service
	auth        *auth.Service
}

// NewService 创建参与者服务
func NewService(repo *repository.Repositories, experiments *experiment.Service, authSvc *auth.Service) *Service {
	return &Service{repo: repo, experiments: experiments, auth: authSvc}
}

// UserInfo 注册时填写的个人信息
type UserInfo struct {
	Username             string `json:"username" binding:"required,max=255"`
	Age                  *int   `json:"age" binding:"omitempty,min=0,max=150"`
	Gender               string `json:"gender"`
	BiologicalSex        string `json:"biologicalSex"`
	MaritalStatus        string `json:"maritalStatus"`
	ChildrenNumber       *int   `json:"childrenNumber" binding:"omitempty,min=0"`
	NativeEnglishSpeaker *bool  `json:"nativeEnglishSpeaker"`
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	UserInfo     UserInfo `json:"userInfo" binding:"required"`
	ExperimentID string   `json:"experimentId" binding:"required"`
}

// Register 注册参与者并分配智能体
// Single 模式分配实验的固定智能体，Multi 模式按权重抽取，问卷提交后再个性化
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*model.User, string, error) {
	exp, err := s.repo.Experiment.GetByID(ctx, req.ExperimentID)
	if err != nil {
		return nil, "", err
	}
	if !exp.IsActive {
		return nil, "", apperr.Forbidden("Experiment Is Not Active")
	}
	if limit := exp.Boundaries().MaxParticipants; limit > 0 && exp.NumberOfParticipants >= limit {
		return nil, "", apperr.LimitExceeded("Participants limit exceeded")
	}

	username := strings.TrimSpace(req.UserInfo.Username)
	if err := s.ValidateUsername(ctx, exp.ID, username); err != nil {
		return nil, "", err
	}

	agent, err := s.experiments.SelectAgent(ctx, exp)
	if err != nil {
		return nil, "", err
	}
	snap := agent.Snapshot()

	info := req.UserInfo
	user := &model.User{
		ExperimentID:         exp.ID,
		Username:             username,
		Age:                  info.Age,
		Gender:               info.Gender,
		BiologicalSex:        info.BiologicalSex,
		MaritalStatus:        info.MaritalStatus,
		ChildrenNumber:       info.ChildrenNumber,
		NativeEnglishSpeaker: info.NativeEnglishSpeaker,
		Agent:                &snap,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}
	if err := s.repo.Experiment.AddParticipant(ctx, exp.ID); err != nil {
		return nil, "", fmt.Errorf("failed to update participants: %w", err)
	}

	token, err := s.auth.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// ValidateUsername 用户名在实验内已存在时返回冲突
func (s *Service) ValidateUsername(ctx context.Context, experimentID, username string) error {
	if username == "" {
		return apperr.Validation("username is required")
	}
	existing, err := s.repo.User.FindByUsername(ctx, experimentID, username)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return apperr.Conflict("User Already Exists")
	}
	return nil
}

// Get 获取用户
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	return s.repo.User.GetByID(ctx, id)
}

// UpdateBigFive 写入用户的五大人格得分
func (s *Service) UpdateBigFive(ctx context.Context, userID string, traits model.Traits) error {
	if err := traits.Validate(); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "invalid scores")
	}
	if _, err := s.repo.User.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.User.UpdateTraits(ctx, userID, traits); err != nil {
		return fmt.Errorf("failed to update scores: %w", err)
	}
	return nil
}

// UpdateUsersAgent 用新的快照替换所有持有同一智能体的用户，返回更新数量
func (s *Service) UpdateUsersAgent(ctx context.Context, agent model.AgentSnapshot) (int, error) {
	if agent.ID == "" {
		return 0, apperr.Validation("agent id is required")
	}
	n, err := s.repo.User.ReplaceAgentSnapshots(ctx, agent)
	if err != nil {
		return 0, fmt.Errorf("failed to update users agent: %w", err)
	}
	return n, nil
}
