package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AgentsMode 实验的智能体分配模式
type AgentsMode string

const (
	AgentsModeSingle AgentsMode = "Single"
	AgentsModeMulti  AgentsMode = "Multi"
)

// DistributionTotal 多智能体分配权重之和
const DistributionTotal = 100

// AgentDistribution 多智能体模式下的权重项
type AgentDistribution struct {
	Agent string  `json:"agent"`
	Dist  float64 `json:"dist"`
}

// ExperimentForms 实验关联的问卷
type ExperimentForms struct {
	Registration     string `json:"registration,omitempty"`
	PreConversation  string `json:"preConversation,omitempty"`
	PostConversation string `json:"postConversation,omitempty"`
}

// ExperimentFeatures 实验开关
type ExperimentFeatures struct {
	UserAnnotation bool `json:"userAnnotation"`
	StreamMessage  bool `json:"streamMessage"`
}

// Experiment 实验
type Experiment struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	IsActive    bool       `gorm:"index;default:false" json:"isActive"`
	AgentsMode  AgentsMode `gorm:"size:16;not null" json:"agentsMode"`

	ActiveAgent string              `gorm:"size:36;index" json:"activeAgent,omitempty"`
	MultiAgents []AgentDistribution `gorm:"type:jsonb;serializer:json" json:"multiAgents,omitempty"`

	MaxMessages      *int `json:"maxMessages,omitempty"`
	MaxConversations *int `json:"maxConversations,omitempty"`
	MaxParticipants  *int `json:"maxParticipants,omitempty"`

	NumberOfParticipants int `gorm:"default:0" json:"numberOfParticipants"`
	TotalSessions        int `gorm:"default:0" json:"totalSessions"`
	OpenSessions         int `gorm:"default:0" json:"openSessions"`

	DisplaySettings    map[string]any     `gorm:"type:jsonb;serializer:json" json:"displaySettings,omitempty"`
	ExperimentForms    ExperimentForms    `gorm:"type:jsonb;serializer:json" json:"experimentForms"`
	ExperimentFeatures ExperimentFeatures `gorm:"type:jsonb;serializer:json" json:"experimentFeatures"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Experiment) TableName() string {
	return "experiments"
}

// BeforeCreate 生成主键
func (e *Experiment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// ReferencesAgent 实验是否引用了指定智能体
func (e *Experiment) ReferencesAgent(agentID string) bool {
	if e.ActiveAgent == agentID {
		return true
	}
	for _, m := range e.MultiAgents {
		if m.Agent == agentID {
			return true
		}
	}
	return false
}

// Boundaries 实验的数量限制，0 表示不限
type Boundaries struct {
	MaxMessages      int `json:"maxMessages"`
	MaxConversations int `json:"maxConversations"`
	MaxParticipants  int `json:"maxParticipants"`
}

// Boundaries 返回实验限制
func (e *Experiment) Boundaries() Boundaries {
	return Boundaries{
		MaxMessages:      derefInt(e.MaxMessages),
		MaxConversations: derefInt(e.MaxConversations),
		MaxParticipants:  derefInt(e.MaxParticipants),
	}
}

func derefInt(p *int) int {
	if p == nil || *p < 0 {
		return 0
	}
	return *p
}
