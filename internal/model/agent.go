package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PersonalityStrategy 个性化策略
type PersonalityStrategy string

const (
	StrategyNone          PersonalityStrategy = "none"
	StrategyMirroring     PersonalityStrategy = "mirroring"
	StrategyComplementing PersonalityStrategy = "complementing"
	StrategyBaseline      PersonalityStrategy = "baseline"
)

// Valid 检查策略取值
func (s PersonalityStrategy) Valid() bool {
	switch s {
	case "", StrategyNone, StrategyMirroring, StrategyComplementing, StrategyBaseline:
		return true
	}
	return false
}

// Personalizes 是否需要根据用户人格改写提示词
func (s PersonalityStrategy) Personalizes() bool {
	return s == StrategyMirroring || s == StrategyComplementing
}

// AgentSpec 智能体的提示词、采样参数与人格设定
// 采样参数为 nil 表示未设置，调用模型时不下发
type AgentSpec struct {
	Title                    string `gorm:"size:255;not null" json:"title"`
	Summary                  string `gorm:"type:text" json:"summary"`
	SystemStarterPrompt      string `gorm:"type:text" json:"systemStarterPrompt"`
	BeforeUserSentencePrompt string `gorm:"type:text" json:"beforeUserSentencePrompt"`
	AfterUserSentencePrompt  string `gorm:"type:text" json:"afterUserSentencePrompt"`
	FirstChatSentence        string `gorm:"type:text" json:"firstChatSentence"`
	PromptTemplate           string `gorm:"type:text" json:"promptTemplate,omitempty"`
	Model                    string `gorm:"size:128" json:"model"`

	Temperature      *float32 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"maxTokens,omitempty"`
	TopP             *float32 `json:"topP,omitempty"`
	FrequencyPenalty *float32 `json:"frequencyPenalty,omitempty"`
	PresencePenalty  *float32 `json:"presencePenalty,omitempty"`
	StopSequences    []string `gorm:"type:jsonb;serializer:json" json:"stopSequences,omitempty"`

	PersonalityStrategy PersonalityStrategy `gorm:"size:32;default:none" json:"personalityStrategy"`
	PartialTraits
}

// Clone 深拷贝，快照不与源对象共享指针
func (s AgentSpec) Clone() AgentSpec {
	out := s
	out.Temperature = clonePtr(s.Temperature)
	out.MaxTokens = clonePtr(s.MaxTokens)
	out.TopP = clonePtr(s.TopP)
	out.FrequencyPenalty = clonePtr(s.FrequencyPenalty)
	out.PresencePenalty = clonePtr(s.PresencePenalty)
	if s.StopSequences != nil {
		out.StopSequences = append([]string(nil), s.StopSequences...)
	}
	out.PartialTraits = s.PartialTraits.Clone()
	return out
}

// Agent 智能体模板
type Agent struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AgentSpec
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Agent) TableName() string {
	return "agents"
}

// BeforeCreate 生成主键
func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// Snapshot 生成不可变快照
func (a *Agent) Snapshot() AgentSnapshot {
	return AgentSnapshot{ID: a.ID, AgentSpec: a.AgentSpec.Clone()}
}

// AgentSnapshot 智能体快照，按值嵌入用户与会话记录
type AgentSnapshot struct {
	ID string `json:"id"`
	AgentSpec
}

// Clone 复制快照
func (s AgentSnapshot) Clone() AgentSnapshot {
	return AgentSnapshot{ID: s.ID, AgentSpec: s.AgentSpec.Clone()}
}

// ToAgent 以快照内容构造新的智能体记录（无主键）
func (s AgentSnapshot) ToAgent() *Agent {
	return &Agent{AgentSpec: s.AgentSpec.Clone()}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
