package experiment

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/model"
)

// Selector 为实验挑选智能体
// *rand.Rand 非并发安全，由 mu 保护
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector 创建选择器，src 为空时按当前时间播种
func NewSelector(src rand.Source) *Selector {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>1|1)
	}
	return &Selector{rng: rand.New(src)}
}

// Select 返回实验本次应使用的智能体 ID
// Single 模式固定返回 activeAgent；Multi 模式按权重随机抽取
func (s *Selector) Select(exp *model.Experiment) (string, error) {
	switch exp.AgentsMode {
	case model.AgentsModeSingle:
		if exp.ActiveAgent == "" {
			return "", apperr.Configuration("experiment %s has no active agent", exp.ID)
		}
		return exp.ActiveAgent, nil
	case model.AgentsModeMulti:
		if len(exp.MultiAgents) < 2 {
			return "", apperr.Configuration("experiment %s needs at least 2 agents, got %d", exp.ID, len(exp.MultiAgents))
		}
		s.mu.Lock()
		u := s.rng.Float64()
		s.mu.Unlock()
		id, err := pickWeighted(exp.MultiAgents, u)
		if err != nil {
			return "", apperr.Wrap(apperr.KindConfiguration, err, "experiment %s", exp.ID)
		}
		return id, nil
	}
	return "", apperr.Configuration("experiment %s has unknown agents mode %q", exp.ID, exp.AgentsMode)
}

// pickWeighted 以 u∈[0,1) 在累计权重上抽取
// 权重非正的条目永远不会被选中；浮点误差导致走完列表时退回最后一个正权重条目
func pickWeighted(entries []model.AgentDistribution, u float64) (string, error) {
	var total float64
	last := -1
	for i, e := range entries {
		if e.Dist > 0 {
			total += e.Dist
			last = i
		}
	}
	if total <= 0 || last < 0 {
		return "", apperr.Configuration("no selectable agent: total weight %v", total)
	}

	r := u * total
	var cum float64
	for _, e := range entries {
		if e.Dist <= 0 {
			continue
		}
		cum += e.Dist
		if cum >= r {
			return e.Agent, nil
		}
	}
	return entries[last].Agent, nil
}
