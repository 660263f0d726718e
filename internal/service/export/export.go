// Package export 实验数据汇总与导出
package export

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/repository"
)

// Service 数据导出服务
type Service struct {
	repo *repository.Repositories
}

// NewService 创建数据导出服务
func NewService(repo *repository.Repositories) *Service {
	return &Service{repo: repo}
}

// ExperimentData 按智能体分组的实验数据
type ExperimentData struct {
	ExperimentID         string           `json:"experimentId"`
	AgentsMode           model.AgentsMode `json:"agentsMode"`
	NumberOfParticipants int              `json:"numberOfParticipants"`
	Agents               []*AgentGroup    `json:"agents"`
}

// AgentGroup 分配到同一智能体的参与者
type AgentGroup struct {
	NumberOfParticipants int                 `json:"numberOfParticipants"`
	Condition            model.AgentSnapshot `json:"condition"`
	Data                 []*Participant      `json:"data"`
}

// Participant 参与者及其会话
type Participant struct {
	NumberOfConversations int                 `json:"numberOfConversations"`
	User                  *model.User         `json:"user"`
	HumanPersonality      model.PartialTraits `json:"humanPersonality"`
	Conversations         []*ConversationData `json:"conversations"`
}

// ConversationData 会话元数据及消息
type ConversationData struct {
	Metadata     *model.Conversation `json:"metadata"`
	Conversation []*model.Message    `json:"conversation"`
}

// unassignedTitle 尚未分配智能体的参与者所在分组
const unassignedTitle = "Unassigned"

// ExperimentData 汇总实验的全部参与者、会话与消息
// 分组按参与者快照中的智能体 ID，顺序与首次出现的顺序一致
func (s *Service) ExperimentData(ctx context.Context, experimentID string) (*ExperimentData, error) {
	exp, err := s.repo.Experiment.GetByID(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.User.ListByExperiment(ctx, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	scores, err := s.repo.Personality.ListByExperiment(ctx, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list personality scores: %w", err)
	}
	scoresByUser := make(map[string]model.Traits, len(scores))
	for _, sc := range scores {
		scoresByUser[sc.UserID] = sc.Traits
	}

	data := &ExperimentData{
		ExperimentID:         exp.ID,
		AgentsMode:           exp.AgentsMode,
		NumberOfParticipants: len(users),
	}
	groups := make(map[string]*AgentGroup)
	for _, u := range users {
		key, condition := "", model.AgentSnapshot{AgentSpec: model.AgentSpec{Title: unassignedTitle}}
		if u.Agent != nil {
			key, condition = u.Agent.ID, u.Agent.Clone()
		}
		g, ok := groups[key]
		if !ok {
			g = &AgentGroup{Condition: condition}
			groups[key] = g
			data.Agents = append(data.Agents, g)
		}

		p, err := s.participant(ctx, u, scoresByUser)
		if err != nil {
			return nil, err
		}
		g.Data = append(g.Data, p)
		g.NumberOfParticipants++
	}
	return data, nil
}

func (s *Service) participant(ctx context.Context, u *model.User, scores map[string]model.Traits) (*Participant, error) {
	human := u.PartialTraits.Clone()
	if t, ok := scores[u.ID]; ok {
		human = t.Partial()
	}

	convs, err := s.repo.Conversation.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	p := &Participant{
		NumberOfConversations: u.NumberOfConversations,
		User:                  u,
		HumanPersonality:      human,
		Conversations:         make([]*ConversationData, 0, len(convs)),
	}
	for _, c := range convs {
		msgs, err := s.repo.Conversation.ListMessages(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		p.Conversations = append(p.Conversations, &ConversationData{Metadata: c, Conversation: msgs})
	}
	return p, nil
}

// PersonalityString 形如 "Openness: 40, Conscientiousness: 30, ..."，缺失的维度留空
func PersonalityString(p *model.PartialTraits) string {
	if p == nil {
		return ""
	}
	parts := make([]string, 0, len(model.AllTraits))
	for _, trait := range model.AllTraits {
		v := ""
		if score := p.Get(trait); score != nil {
			v = strconv.FormatFloat(*score, 'f', -1, 64)
		}
		parts = append(parts, trait.Label()+": "+v)
	}
	return strings.Join(parts, ", ")
}
