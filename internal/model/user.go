package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LLMPersonality 用户对话的智能体所采用的人格设定
type LLMPersonality struct {
	Strategy PersonalityStrategy `json:"strategy"`
	PartialTraits
}

// User 实验参与者或管理员
type User struct {
	ID           string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ExperimentID string `gorm:"size:36;uniqueIndex:idx_users_experiment_username" json:"experimentId,omitempty"`
	Username     string `gorm:"size:255;not null;uniqueIndex:idx_users_experiment_username" json:"username"`

	Age                  *int   `json:"age,omitempty"`
	Gender               string `gorm:"size:32" json:"gender,omitempty"`
	BiologicalSex        string `gorm:"size:32" json:"biologicalSex,omitempty"`
	MaritalStatus        string `gorm:"size:32" json:"maritalStatus,omitempty"`
	ChildrenNumber       *int   `json:"childrenNumber,omitempty"`
	NativeEnglishSpeaker *bool  `json:"nativeEnglishSpeaker,omitempty"`

	IsAdmin      bool   `gorm:"default:false" json:"isAdmin"`
	PasswordHash string `gorm:"size:255" json:"-"`

	PartialTraits
	LLMPersonality *LLMPersonality `gorm:"type:jsonb;serializer:json" json:"llmPersonality,omitempty"`

	NumberOfConversations int            `gorm:"default:0" json:"numberOfConversations"`
	Agent                 *AgentSnapshot `gorm:"type:jsonb;serializer:json" json:"agent,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// BeforeCreate 生成主键
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// PersonalityScores 用户在某个实验中提交的五大人格得分
type PersonalityScores struct {
	ID           string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       string `gorm:"size:36;not null;uniqueIndex:idx_scores_user_experiment" json:"userId"`
	ExperimentID string `gorm:"size:36;not null;uniqueIndex:idx_scores_user_experiment;index" json:"experimentId"`
	Traits
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (PersonalityScores) TableName() string {
	return "personality_scores"
}

// BeforeCreate 生成主键
func (p *PersonalityScores) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
