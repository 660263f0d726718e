package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// PostConversationFields 对话后问卷的题目数量
const PostConversationFields = 50

// Conversation 会话元数据
type Conversation struct {
	ID                 string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ExperimentID       string        `gorm:"size:36;index" json:"experimentId"`
	UserID             string        `gorm:"size:36;index" json:"userId"`
	ConversationNumber int           `json:"conversationNumber"`
	Agent              AgentSnapshot `gorm:"type:jsonb;serializer:json" json:"agent"`
	MessagesNumber     int           `gorm:"default:0" json:"messagesNumber"`
	MaxMessages        *int          `json:"maxMessages,omitempty"`
	LastMessageDate    *time.Time    `json:"lastMessageDate,omitempty"`
	IsFinished         bool          `gorm:"default:false" json:"isFinished"`

	PreConversation  map[string]any `gorm:"type:jsonb;serializer:json" json:"preConversation,omitempty"`
	PostConversation map[string]int `gorm:"type:jsonb;serializer:json" json:"postConversation,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversations"
}

// BeforeCreate 生成主键
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// Message 会话消息
type Message struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string    `gorm:"size:36;index:idx_messages_conversation_number" json:"conversationId"`
	ExperimentID   string    `gorm:"size:36;index" json:"experimentId"`
	Role           string    `gorm:"size:20" json:"role"`
	Content        string    `gorm:"type:text" json:"content"`
	MessageNumber  int       `gorm:"index:idx_messages_conversation_number" json:"messageNumber"`
	UserAnnotation *int      `json:"userAnnotation,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate 生成主键
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
