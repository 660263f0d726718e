package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ashwinyue/persona-chat/internal/model"
)

// ExperimentRepository 实验数据访问
type ExperimentRepository struct {
	db *gorm.DB
}

// NewExperimentRepository 创建实验仓库
func NewExperimentRepository(db *gorm.DB) *ExperimentRepository {
	return &ExperimentRepository{db: db}
}

// Create 创建实验
func (r *ExperimentRepository) Create(ctx context.Context, exp *model.Experiment) error {
	return r.db.WithContext(ctx).Create(exp).Error
}

// GetByID 获取实验
func (r *ExperimentRepository) GetByID(ctx context.Context, id string) (*model.Experiment, error) {
	var exp model.Experiment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&exp).Error; err != nil {
		return nil, notFound(err, "experiment %s not found", id)
	}
	return &exp, nil
}

// List 分页列出实验
func (r *ExperimentRepository) List(ctx context.Context, offset, limit int) ([]*model.Experiment, int64, error) {
	var (
		exps  []*model.Experiment
		total int64
	)
	db := r.db.WithContext(ctx).Model(&model.Experiment{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&exps).Error
	return exps, total, err
}

// ListByAgent 列出引用了指定智能体的实验
// multi_agents 为 JSON 列，跨数据库无统一的查询语法，因此在内存中过滤
func (r *ExperimentRepository) ListByAgent(ctx context.Context, agentID string) ([]*model.Experiment, error) {
	var all []*model.Experiment
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&all).Error; err != nil {
		return nil, err
	}
	var out []*model.Experiment
	for _, exp := range all {
		if exp.ReferencesAgent(agentID) {
			out = append(out, exp)
		}
	}
	return out, nil
}

// Update 保存实验的可编辑字段，计数器不受影响
func (r *ExperimentRepository) Update(ctx context.Context, exp *model.Experiment) error {
	return r.db.WithContext(ctx).Model(exp).
		Select("title", "description", "is_active", "agents_mode", "active_agent", "multi_agents",
			"max_messages", "max_conversations", "max_participants",
			"display_settings", "experiment_forms", "experiment_features").
		Updates(exp).Error
}

// UpdateStatus 批量更新实验启用状态
func (r *ExperimentRepository) UpdateStatus(ctx context.Context, status map[string]bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, active := range status {
			if err := tx.Model(&model.Experiment{}).Where("id = ?", id).
				Update("is_active", active).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateDisplaySettings 更新展示设置
func (r *ExperimentRepository) UpdateDisplaySettings(ctx context.Context, id string, settings map[string]any) error {
	exp := &model.Experiment{ID: id, DisplaySettings: settings}
	res := r.db.WithContext(ctx).Model(exp).Select("display_settings").Updates(exp)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "experiment %s not found", id)
	}
	return nil
}

// AddParticipant 参与人数 +1
func (r *ExperimentRepository) AddParticipant(ctx context.Context, id string) error {
	return r.incr(ctx, id, map[string]any{
		"number_of_participants": gorm.Expr("number_of_participants + 1"),
	})
}

// AddSession 总会话数与进行中会话数 +1
func (r *ExperimentRepository) AddSession(ctx context.Context, id string) error {
	return r.incr(ctx, id, map[string]any{
		"total_sessions": gorm.Expr("total_sessions + 1"),
		"open_sessions":  gorm.Expr("open_sessions + 1"),
	})
}

// CloseSession 进行中会话数 -1，不会减到负数
func (r *ExperimentRepository) CloseSession(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.Experiment{}).
		Where("id = ? AND open_sessions > 0", id).
		UpdateColumn("open_sessions", gorm.Expr("open_sessions - 1")).Error
}

func (r *ExperimentRepository) incr(ctx context.Context, id string, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&model.Experiment{}).Where("id = ?", id).
		UpdateColumns(fields).Error
}

// Delete 删除实验及其会话和消息，返回被删除的会话 ID
func (r *ExperimentRepository) Delete(ctx context.Context, id string) ([]string, error) {
	var conversationIDs []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Conversation{}).Where("experiment_id = ?", id).
			Pluck("id", &conversationIDs).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.Message{}, "experiment_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.Conversation{}, "experiment_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Experiment{}, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return conversationIDs, nil
}
