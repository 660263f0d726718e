package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ashwinyue/persona-chat/internal/model"
)

// AgentRepository 智能体数据访问
type AgentRepository struct {
	db *gorm.DB
}

// NewAgentRepository 创建智能体仓库
func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// Create 创建智能体
func (r *AgentRepository) Create(ctx context.Context, agent *model.Agent) error {
	return r.db.WithContext(ctx).Create(agent).Error
}

// GetByID 获取智能体
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*model.Agent, error) {
	var agent model.Agent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&agent).Error; err != nil {
		return nil, notFound(err, "agent %s not found", id)
	}
	return &agent, nil
}

// List 列出智能体
func (r *AgentRepository) List(ctx context.Context) ([]*model.Agent, error) {
	var agents []*model.Agent
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&agents).Error
	return agents, err
}

// Update 更新智能体
func (r *AgentRepository) Update(ctx context.Context, agent *model.Agent) error {
	return r.db.WithContext(ctx).Save(agent).Error
}

// Delete 删除智能体
func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Agent{}, "id = ?", id).Error
}
