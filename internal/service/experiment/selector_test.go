package experiment

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/model"
)

func seeded() *Selector {
	return NewSelector(rand.NewPCG(42, 1024))
}

func multi(dist ...model.AgentDistribution) *model.Experiment {
	return &model.Experiment{ID: "exp", AgentsMode: model.AgentsModeMulti, MultiAgents: dist}
}

func TestSelectSingle(t *testing.T) {
	s := seeded()
	id, err := s.Select(&model.Experiment{AgentsMode: model.AgentsModeSingle, ActiveAgent: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "a1", id)

	_, err = s.Select(&model.Experiment{AgentsMode: model.AgentsModeSingle})
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestSelectWeightedDistribution(t *testing.T) {
	s := seeded()
	exp := multi(
		model.AgentDistribution{Agent: "A", Dist: 70},
		model.AgentDistribution{Agent: "B", Dist: 30},
	)

	const draws = 10000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		id, err := s.Select(exp)
		require.NoError(t, err)
		counts[id]++
	}

	ratio := float64(counts["A"]) / draws
	assert.InDelta(t, 0.70, ratio, 0.05)
	assert.Equal(t, draws, counts["A"]+counts["B"])
}

func TestSelectOnlyListedAgents(t *testing.T) {
	s := seeded()
	exp := multi(
		model.AgentDistribution{Agent: "A", Dist: 50},
		model.AgentDistribution{Agent: "B", Dist: 50},
	)
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id, err := s.Select(exp)
		require.NoError(t, err)
		require.Contains(t, []string{"A", "B"}, id)
		seen[id] = true
	}
	assert.Len(t, seen, 2)
}

func TestSelectMultiNeedsTwoAgents(t *testing.T) {
	_, err := seeded().Select(multi(model.AgentDistribution{Agent: "A", Dist: 100}))
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestPickWeighted(t *testing.T) {
	dist := []model.AgentDistribution{
		{Agent: "A", Dist: 70},
		{Agent: "zero", Dist: 0},
		{Agent: "B", Dist: 30},
	}

	tests := []struct {
		name string
		u    float64
		want string
	}{
		{"lower bound", 0, "A"},
		{"inside first", 0.5, "A"},
		{"just below boundary", 0.69, "A"},
		{"second", 0.71, "B"},
		{"upper", 0.9999, "B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickWeighted(dist, tt.u)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickWeightedDriftFallsBackToLastPositive(t *testing.T) {
	dist := []model.AgentDistribution{
		{Agent: "A", Dist: 33.3},
		{Agent: "B", Dist: 33.3},
		{Agent: "C", Dist: 33.3},
		{Agent: "D", Dist: 0},
	}
	got, err := pickWeighted(dist, 1.001)
	require.NoError(t, err)
	assert.Equal(t, "C", got)
}

func TestPickWeightedNoPositiveWeight(t *testing.T) {
	_, err := pickWeighted([]model.AgentDistribution{{Agent: "A"}, {Agent: "B"}}, 0.3)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestValidateAgents(t *testing.T) {
	two := func(a, b float64) []model.AgentDistribution {
		return []model.AgentDistribution{{Agent: "A", Dist: a}, {Agent: "B", Dist: b}}
	}

	tests := []struct {
		name    string
		mode    model.AgentsMode
		active  string
		multi   []model.AgentDistribution
		wantErr bool
	}{
		{"single ok", model.AgentsModeSingle, "A", nil, false},
		{"single missing agent", model.AgentsModeSingle, "", nil, true},
		{"multi 100", model.AgentsModeMulti, "", two(70, 30), false},
		{"multi fractional", model.AgentsModeMulti, "", two(33.5, 66.5), false},
		{"multi 99", model.AgentsModeMulti, "", two(70, 29), true},
		{"multi 101", model.AgentsModeMulti, "", two(70, 31), true},
		{"multi one agent", model.AgentsModeMulti, "", []model.AgentDistribution{{Agent: "A", Dist: 100}}, true},
		{"multi negative", model.AgentsModeMulti, "", two(110, -10), true},
		{"multi empty id", model.AgentsModeMulti, "", []model.AgentDistribution{{Agent: "A", Dist: 50}, {Dist: 50}}, true},
		{"unknown mode", "A/B", "A", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAgents(tt.mode, tt.active, tt.multi)
			if tt.wantErr {
				assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
