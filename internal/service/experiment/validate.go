package experiment

import (
	"math"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/model"
)

const distEpsilon = 1e-9

// ValidateAgents 检查实验的智能体配置
// Multi 模式至少 2 个智能体，权重非负且总和恰为 100
func ValidateAgents(mode model.AgentsMode, activeAgent string, multi []model.AgentDistribution) error {
	switch mode {
	case model.AgentsModeSingle:
		if activeAgent == "" {
			return apperr.Validation("activeAgent is required in Single mode")
		}
		return nil
	case model.AgentsModeMulti:
		if len(multi) < 2 {
			return apperr.Validation("Multi mode requires at least 2 agents")
		}
		var sum float64
		for i, m := range multi {
			if m.Agent == "" {
				return apperr.Validation("multiAgents[%d].agent is required", i)
			}
			if m.Dist < 0 {
				return apperr.Validation("multiAgents[%d].dist must not be negative", i)
			}
			sum += m.Dist
		}
		if math.Abs(sum-model.DistributionTotal) > distEpsilon {
			return apperr.Validation("the sum of the agents distribution must be %d, got %v", model.DistributionTotal, sum)
		}
		return nil
	}
	return apperr.Validation("agentsMode must be %s or %s", model.AgentsModeSingle, model.AgentsModeMulti)
}

// agentIDs 实验引用的全部智能体 ID
func agentIDs(mode model.AgentsMode, activeAgent string, multi []model.AgentDistribution) []string {
	if mode == model.AgentsModeSingle {
		return []string{activeAgent}
	}
	ids := make([]string, 0, len(multi))
	for _, m := range multi {
		ids = append(ids, m.Agent)
	}
	return ids
}
