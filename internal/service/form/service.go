// Package form 问卷定义管理
package form

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/repository"
)

// Service 问卷服务
type Service struct {
	repo *repository.Repositories
}

// NewService 创建问卷服务
func NewService(repo *repository.Repositories) *Service {
	return &Service{repo: repo}
}

// FormRequest 创建或更新问卷
type FormRequest struct {
	Name string         `json:"name" binding:"required"`
	Body map[string]any `json:"body"`
}

// ConversationForms 实验的对话前后问卷，未配置时为 nil
type ConversationForms struct {
	PreConversation  *model.Form `json:"preConversation"`
	PostConversation *model.Form `json:"postConversation"`
}

// Create 保存问卷
func (s *Service) Create(ctx context.Context, req *FormRequest) (*model.Form, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("form name is required")
	}
	f := &model.Form{Name: name, Body: req.Body}
	if err := s.repo.Form.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}
	return f, nil
}

// Get 获取问卷
func (s *Service) Get(ctx context.Context, id string) (*model.Form, error) {
	return s.repo.Form.GetByID(ctx, id)
}

// List 只返回 ID 与名称
func (s *Service) List(ctx context.Context) ([]*model.Form, error) {
	forms, err := s.repo.Form.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	return forms, nil
}

// Update 更新问卷
func (s *Service) Update(ctx context.Context, id string, req *FormRequest) (*model.Form, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("form name is required")
	}
	f := &model.Form{ID: id, Name: name, Body: req.Body}
	if err := s.repo.Form.Update(ctx, f); err != nil {
		return nil, err
	}
	return s.repo.Form.GetByID(ctx, id)
}

// Delete 删除问卷
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Form.Delete(ctx, id)
}

// ConversationForms 返回实验配置的对话前后问卷
func (s *Service) ConversationForms(ctx context.Context, experimentID string) (*ConversationForms, error) {
	exp, err := s.repo.Experiment.GetByID(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	pre, post := exp.ExperimentForms.PreConversation, exp.ExperimentForms.PostConversation
	forms, err := s.repo.Form.GetByIDs(ctx, pre, post)
	if err != nil {
		return nil, fmt.Errorf("failed to load forms: %w", err)
	}

	out := &ConversationForms{}
	for _, f := range forms {
		if f.ID == pre {
			out.PreConversation = f
		}
		if f.ID == post {
			out.PostConversation = f
		}
	}
	return out, nil
}
