package testutil

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/ashwinyue/persona-chat/internal/model"
)

// Float32 取地址
func Float32(v float32) *float32 { return &v }

// Float64 取地址
func Float64(v float64) *float64 { return &v }

// Int 取地址
func Int(v int) *int { return &v }

// NewAgent 构造一个提示词齐全的智能体
func NewAgent(title string, strategy model.PersonalityStrategy) *model.Agent {
	return &model.Agent{
		AgentSpec: model.AgentSpec{
			Title:                    title,
			Summary:                  title + " summary",
			SystemStarterPrompt:      "You are " + title + ".",
			BeforeUserSentencePrompt: "Stay in character.",
			AfterUserSentencePrompt:  "Answer briefly.",
			FirstChatSentence:        "Hi, I'm " + title + ".",
			Model:                    "gpt-4o-mini",
			PersonalityStrategy:      strategy,
		},
	}
}

// SeedAgent 写入智能体
func SeedAgent(t *testing.T, db *gorm.DB, agent *model.Agent) *model.Agent {
	t.Helper()
	if err := db.WithContext(context.Background()).Create(agent).Error; err != nil {
		t.Fatalf("failed to seed agent: %v", err)
	}
	return agent
}

// SeedSingleExperiment 写入单智能体实验
func SeedSingleExperiment(t *testing.T, db *gorm.DB, agentID string, mutate ...func(*model.Experiment)) *model.Experiment {
	t.Helper()
	exp := &model.Experiment{
		Title:       "single",
		IsActive:    true,
		AgentsMode:  model.AgentsModeSingle,
		ActiveAgent: agentID,
	}
	return seedExperiment(t, db, exp, mutate)
}

// SeedMultiExperiment 写入多智能体实验
func SeedMultiExperiment(t *testing.T, db *gorm.DB, dist []model.AgentDistribution, mutate ...func(*model.Experiment)) *model.Experiment {
	t.Helper()
	exp := &model.Experiment{
		Title:       "multi",
		IsActive:    true,
		AgentsMode:  model.AgentsModeMulti,
		MultiAgents: dist,
	}
	return seedExperiment(t, db, exp, mutate)
}

func seedExperiment(t *testing.T, db *gorm.DB, exp *model.Experiment, mutate []func(*model.Experiment)) *model.Experiment {
	t.Helper()
	for _, m := range mutate {
		m(exp)
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("failed to seed experiment: %v", err)
	}
	return exp
}

// SeedUser 写入参与者，agent 可为空
func SeedUser(t *testing.T, db *gorm.DB, experimentID, username string, agent *model.Agent) *model.User {
	t.Helper()
	user := &model.User{ExperimentID: experimentID, Username: username}
	if agent != nil {
		snap := agent.Snapshot()
		user.Agent = &snap
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

// NeutralAnswers 50 题全部为 3
func NeutralAnswers() map[string]any {
	answers := make(map[string]any, 50)
	for i := 1; i <= 50; i++ {
		answers[fmt.Sprintf("field%d", i)] = 3
	}
	return answers
}
