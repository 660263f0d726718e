package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ashwinyue/persona-chat/internal/model"
)

// FormRepository 问卷数据访问
type FormRepository struct {
	db *gorm.DB
}

// NewFormRepository 创建问卷仓库
func NewFormRepository(db *gorm.DB) *FormRepository {
	return &FormRepository{db: db}
}

// Create 创建问卷
func (r *FormRepository) Create(ctx context.Context, form *model.Form) error {
	return r.db.WithContext(ctx).Create(form).Error
}

// GetByID 获取问卷
func (r *FormRepository) GetByID(ctx context.Context, id string) (*model.Form, error) {
	var form model.Form
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&form).Error; err != nil {
		return nil, notFound(err, "form %s not found", id)
	}
	return &form, nil
}

// GetByIDs 批量获取问卷，忽略空 ID
func (r *FormRepository) GetByIDs(ctx context.Context, ids ...string) ([]*model.Form, error) {
	var valid []string
	for _, id := range ids {
		if id != "" {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}
	var forms []*model.Form
	err := r.db.WithContext(ctx).Where("id IN ?", valid).Find(&forms).Error
	return forms, err
}

// List 列出问卷名称
func (r *FormRepository) List(ctx context.Context) ([]*model.Form, error) {
	var forms []*model.Form
	err := r.db.WithContext(ctx).Select("id", "name", "created_at", "updated_at").
		Order("created_at DESC").Find(&forms).Error
	return forms, err
}

// Update 更新问卷
func (r *FormRepository) Update(ctx context.Context, form *model.Form) error {
	res := r.db.WithContext(ctx).Model(form).Select("name", "body").Updates(form)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "form %s not found", form.ID)
	}
	return nil
}

// Delete 删除问卷
func (r *FormRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.Form{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "form %s not found", id)
	}
	return nil
}
