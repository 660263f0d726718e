package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ashwinyue/persona-chat/internal/model"
)

// ConversationRepository 会话与消息数据访问
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建会话仓库
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create 创建会话
func (r *ConversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

// GetByID 获取会话
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, notFound(err, "conversation %s not found", id)
	}
	return &conv, nil
}

// ListByUser 列出用户的会话
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("conversation_number ASC").Find(&convs).Error
	return convs, err
}

// UpdateSurvey 写入对话前或对话后问卷
func (r *ConversationRepository) UpdateSurvey(ctx context.Context, id string, pre map[string]any, post map[string]int) error {
	conv := &model.Conversation{ID: id}
	var cols []string
	if pre != nil {
		conv.PreConversation = pre
		cols = append(cols, "pre_conversation")
	}
	if post != nil {
		conv.PostConversation = post
		cols = append(cols, "post_conversation")
	}
	if len(cols) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(conv).Select(cols).Updates(conv)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "conversation %s not found", id)
	}
	return nil
}

// Finish 结束会话，返回本次调用是否改变了状态
func (r *ConversationRepository) Finish(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND is_finished = ?", id, false).
		Update("is_finished", true)
	return res.RowsAffected > 0, res.Error
}

// CreateMessage 写入单条消息
func (r *ConversationRepository) CreateMessage(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// CreateReply 写入助手回复，并在同一事务中递增消息计数、更新最后消息时间
func (r *ConversationRepository) CreateReply(ctx context.Context, msg *model.Message, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).Where("id = ?", msg.ConversationID).
			UpdateColumns(map[string]any{
				"messages_number":   gorm.Expr("messages_number + 1"),
				"last_message_date": at,
				"updated_at":        at,
			}).Error
	})
}

// ListMessages 按消息序号列出会话消息
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	var msgs []*model.Message
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("message_number ASC").Order("created_at ASC").Find(&msgs).Error
	return msgs, err
}

// CountMessages 会话消息条数
func (r *ConversationRepository) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ?", conversationID).Count(&count).Error
	return int(count), err
}

// GetMessage 获取消息
func (r *ConversationRepository) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, notFound(err, "message %s not found", id)
	}
	return &msg, nil
}

// UpdateAnnotation 更新用户对消息的评分
func (r *ConversationRepository) UpdateAnnotation(ctx context.Context, id string, annotation *int) error {
	return r.db.WithContext(ctx).Model(&model.Message{}).Where("id = ?", id).
		Update("user_annotation", annotation).Error
}
