package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Form 问卷定义，内容为前端渲染用的 JSON
type Form struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Body      map[string]any `gorm:"type:jsonb;serializer:json" json:"body,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// TableName 指定表名
func (Form) TableName() string {
	return "forms"
}

// BeforeCreate 生成主键
func (f *Form) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}
