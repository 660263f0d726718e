// Package session 会话历史的 Redis 缓存
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
)

const (
	// 默认过期时间（24小时）
	defaultTTL = 24 * time.Hour
	// Redis key 前缀
	historyKeyPrefix = "conversation:history:"
)

// History 以 Redis 列表缓存每个会话的消息历史
// redis 为 nil 时缓存关闭，所有读取都视为未命中
type History struct {
	redis *redis.Client
	ttl   time.Duration
}

// messageData 消息数据（用于 Redis 存储）
type messageData struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewHistory 创建历史缓存
func NewHistory(redisClient *redis.Client, ttl time.Duration) *History {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &History{redis: redisClient, ttl: ttl}
}

// Enabled 缓存是否可用
func (h *History) Enabled() bool {
	return h != nil && h.redis != nil
}

func key(conversationID string) string {
	return historyKeyPrefix + conversationID
}

// Get 读取缓存的历史，未命中时 ok 为 false
func (h *History) Get(ctx context.Context, conversationID string) ([]*schema.Message, bool, error) {
	if !h.Enabled() {
		return nil, false, nil
	}
	items, err := h.redis.LRange(ctx, key(conversationID), 0, -1).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read history: %w", err)
	}
	if len(items) == 0 {
		return nil, false, nil
	}

	msgs := make([]*schema.Message, 0, len(items))
	for _, item := range items {
		var md messageData
		if err := json.Unmarshal([]byte(item), &md); err != nil {
			return nil, false, fmt.Errorf("failed to decode history: %w", err)
		}
		msgs = append(msgs, &schema.Message{Role: roleToSchema(md.Role), Content: md.Content})
	}
	return msgs, true, nil
}

// Set 用完整历史覆盖缓存
func (h *History) Set(ctx context.Context, conversationID string, msgs []*schema.Message) error {
	if !h.Enabled() || len(msgs) == 0 {
		return nil
	}
	values, err := encode(msgs)
	if err != nil {
		return err
	}

	k := key(conversationID)
	pipe := h.redis.TxPipeline()
	pipe.Del(ctx, k)
	pipe.RPush(ctx, k, values...)
	pipe.Expire(ctx, k, h.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// Append 追加消息，仅在缓存已存在时生效，避免写出不完整的历史
func (h *History) Append(ctx context.Context, conversationID string, msgs ...*schema.Message) error {
	if !h.Enabled() || len(msgs) == 0 {
		return nil
	}
	values, err := encode(msgs)
	if err != nil {
		return err
	}

	k := key(conversationID)
	pipe := h.redis.TxPipeline()
	pipe.RPushX(ctx, k, values...)
	pipe.Expire(ctx, k, h.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// Clear 删除一个或多个会话的缓存
func (h *History) Clear(ctx context.Context, conversationIDs ...string) error {
	if !h.Enabled() || len(conversationIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(conversationIDs))
	for _, id := range conversationIDs {
		keys = append(keys, key(id))
	}
	if err := h.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Ping 检查 Redis 连接，缓存关闭时直接返回
func (h *History) Ping(ctx context.Context) error {
	if !h.Enabled() {
		return nil
	}
	return h.redis.Ping(ctx).Err()
}

func encode(msgs []*schema.Message) ([]any, error) {
	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(messageData{Role: string(msg.Role), Content: msg.Content})
		if err != nil {
			return nil, fmt.Errorf("failed to encode message: %w", err)
		}
		values = append(values, string(data))
	}
	return values, nil
}

// roleToSchema 将字符串角色转换为 schema.RoleType
func roleToSchema(role string) schema.RoleType {
	switch role {
	case "system":
		return schema.System
	case "assistant":
		return schema.Assistant
	default:
		return schema.User
	}
}
