package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ashwinyue/persona-chat/internal/model"
)

// PersonalityRepository 人格得分数据访问
type PersonalityRepository struct {
	db *gorm.DB
}

// NewPersonalityRepository 创建人格得分仓库
func NewPersonalityRepository(db *gorm.DB) *PersonalityRepository {
	return &PersonalityRepository{db: db}
}

// Upsert 按 (user_id, experiment_id) 插入或更新
func (r *PersonalityRepository) Upsert(ctx context.Context, scores *model.PersonalityScores) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "experiment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"openness", "conscientiousness", "extraversion", "agreeableness", "neuroticism", "updated_at",
		}),
	}).Create(scores).Error
}

// Get 获取用户在实验中的得分
func (r *PersonalityRepository) Get(ctx context.Context, userID, experimentID string) (*model.PersonalityScores, error) {
	var scores model.PersonalityScores
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND experiment_id = ?", userID, experimentID).
		First(&scores).Error
	if err != nil {
		return nil, notFound(err, "scores not found")
	}
	return &scores, nil
}

// GetLatestByUser 获取用户最近一次提交的得分
func (r *PersonalityRepository) GetLatestByUser(ctx context.Context, userID string) (*model.PersonalityScores, error) {
	var scores model.PersonalityScores
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("updated_at DESC").First(&scores).Error
	if err != nil {
		return nil, notFound(err, "scores not found")
	}
	return &scores, nil
}

// ListByExperiment 列出实验的全部得分
func (r *PersonalityRepository) ListByExperiment(ctx context.Context, experimentID string) ([]*model.PersonalityScores, error) {
	var scores []*model.PersonalityScores
	err := r.db.WithContext(ctx).Where("experiment_id = ?", experimentID).
		Order("created_at ASC").Find(&scores).Error
	return scores, err
}
