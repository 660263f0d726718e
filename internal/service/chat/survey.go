package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/service/personality"
)

// SurveyAnswers 对话后问卷，field1..field50 均为数值
type SurveyAnswers map[string]int

// Validate 必须恰好包含 50 个字段
func (a SurveyAnswers) Validate() error {
	for i := 1; i <= model.PostConversationFields; i++ {
		if _, ok := a[surveyField(i)]; !ok {
			return apperr.Validation("survey answer %s is required", surveyField(i))
		}
	}
	for k := range a {
		n, ok := strings.CutPrefix(k, "field")
		if !ok {
			return apperr.Validation("unknown survey field %s", k)
		}
		i, err := strconv.Atoi(n)
		if err != nil || i < 1 || i > model.PostConversationFields {
			return apperr.Validation("unknown survey field %s", k)
		}
	}
	return nil
}

func surveyField(i int) string {
	return "field" + strconv.Itoa(i)
}

// MetadataRequest 更新对话前或对话后问卷
type MetadataRequest struct {
	ConversationID    string         `json:"conversationId" binding:"required"`
	Data              map[string]any `json:"data" binding:"required"`
	IsPreConversation bool           `json:"isPreConversation"`
}

// AnnotationRequest 用户对助手消息的评分，null 表示清除
type AnnotationRequest struct {
	MessageID      string `json:"messageId" binding:"required"`
	UserAnnotation *int   `json:"userAnnotation"`
}

// SaveSurvey 保存对话后问卷
func (s *Service) SaveSurvey(ctx context.Context, conversationID string, answers SurveyAnswers) error {
	if err := answers.Validate(); err != nil {
		return err
	}
	if err := s.repo.Conversation.UpdateSurvey(ctx, conversationID, nil, answers); err != nil {
		return fmt.Errorf("failed to save survey: %w", err)
	}
	return nil
}

// UpdateMetadata 对话前问卷原样保存，对话后问卷按数值校验
func (s *Service) UpdateMetadata(ctx context.Context, req *MetadataRequest) error {
	if req.IsPreConversation {
		if err := s.repo.Conversation.UpdateSurvey(ctx, req.ConversationID, req.Data, nil); err != nil {
			return fmt.Errorf("failed to save pre conversation survey: %w", err)
		}
		return nil
	}

	answers := make(SurveyAnswers, len(req.Data))
	for k, v := range req.Data {
		n, ok := personality.AsInt(v)
		if !ok {
			return apperr.Validation("survey answer %s must be a number", k)
		}
		answers[k] = n
	}
	return s.SaveSurvey(ctx, req.ConversationID, answers)
}

// Annotate 用户为助手消息评分（-1/0/1），实验需开启 userAnnotation
func (s *Service) Annotate(ctx context.Context, userID string, isAdmin bool, req *AnnotationRequest) (*model.Message, error) {
	if a := req.UserAnnotation; a != nil && (*a < -1 || *a > 1) {
		return nil, apperr.Validation("userAnnotation must be -1, 0 or 1")
	}
	msg, err := s.repo.Conversation.GetMessage(ctx, req.MessageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.CheckAccess(ctx, msg.ConversationID, userID, isAdmin); err != nil {
		return nil, err
	}
	if msg.Role != model.RoleAssistant {
		return nil, apperr.Validation("only assistant messages can be annotated")
	}
	exp, err := s.experiments.Get(ctx, msg.ExperimentID)
	if err != nil {
		return nil, err
	}
	if !exp.ExperimentFeatures.UserAnnotation {
		return nil, apperr.Forbidden("user annotation is disabled for experiment %s", exp.ID)
	}
	if err := s.repo.Conversation.UpdateAnnotation(ctx, msg.ID, req.UserAnnotation); err != nil {
		return nil, fmt.Errorf("failed to update annotation: %w", err)
	}
	msg.UserAnnotation = req.UserAnnotation
	return msg, nil
}
