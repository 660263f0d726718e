package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ashwinyue/persona-chat/internal/model"
)

// UserRepository 用户数据访问
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID 获取用户
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err, "user %s not found", id)
	}
	return &user, nil
}

// FindByUsername 按实验与用户名查找，管理员的实验 ID 为空
// 不存在时返回 nil, nil
func (r *UserRepository) FindByUsername(ctx context.Context, experimentID, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("experiment_id = ? AND username = ?", experimentID, username).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListByExperiment 列出实验的参与者
func (r *UserRepository) ListByExperiment(ctx context.Context, experimentID string) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Where("experiment_id = ? AND is_admin = ?", experimentID, false).
		Order("created_at ASC").
		Find(&users).Error
	return users, err
}

// CountByExperiment 实验的参与人数
func (r *UserRepository) CountByExperiment(ctx context.Context, experimentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("experiment_id = ? AND is_admin = ?", experimentID, false).
		Count(&count).Error
	return count, err
}

// UpdateTraits 写入用户的五大人格得分
func (r *UserRepository) UpdateTraits(ctx context.Context, id string, traits model.Traits) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]any{
			"openness":          traits.Openness,
			"conscientiousness": traits.Conscientiousness,
			"extraversion":      traits.Extraversion,
			"agreeableness":     traits.Agreeableness,
			"neuroticism":       traits.Neuroticism,
		}).Error
}

// UpdateAgent 替换用户的智能体快照
func (r *UserRepository) UpdateAgent(ctx context.Context, id string, agent *model.AgentSnapshot) error {
	user := &model.User{ID: id, Agent: agent}
	return r.db.WithContext(ctx).Model(user).Select("agent").Updates(user).Error
}

// UpdateLLMPersonality 记录用户对话的智能体人格
func (r *UserRepository) UpdateLLMPersonality(ctx context.Context, id string, p *model.LLMPersonality) error {
	user := &model.User{ID: id, LLMPersonality: p}
	return r.db.WithContext(ctx).Model(user).Select("llm_personality").Updates(user).Error
}

// AddConversation 会话数 +1
func (r *UserRepository) AddConversation(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		UpdateColumn("number_of_conversations", gorm.Expr("number_of_conversations + 1")).Error
}

// ReplaceAgentSnapshots 把持有指定智能体快照的用户全部替换为新快照
// 快照为 JSON 列，匹配在内存中完成
func (r *UserRepository) ReplaceAgentSnapshots(ctx context.Context, agent model.AgentSnapshot) (int, error) {
	var users []*model.User
	if err := r.db.WithContext(ctx).Where("is_admin = ?", false).Find(&users).Error; err != nil {
		return 0, err
	}

	updated := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range users {
			if u.Agent == nil || u.Agent.ID != agent.ID {
				continue
			}
			snap := agent.Clone()
			u.Agent = &snap
			if err := tx.Model(u).Select("agent").Updates(u).Error; err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	return updated, err
}
