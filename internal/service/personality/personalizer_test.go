package personality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/model"
)

func baseAgent() model.AgentSnapshot {
	temp := float32(0.4)
	return model.AgentSnapshot{
		ID: "agent-1",
		AgentSpec: model.AgentSpec{
			Title:               "Base",
			SystemStarterPrompt: "You are a friendly assistant.",
			Model:               "gpt-4o-mini",
			Temperature:         &temp,
			StopSequences:       []string{"END"},
		},
	}
}

var sampleTraits = model.Traits{
	Openness:          40,
	Conscientiousness: 10,
	Extraversion:      25,
	Agreeableness:     5,
	Neuroticism:       45,
}

func TestComplementIsInvolution(t *testing.T) {
	for x := 0.0; x <= 50; x++ {
		in := model.Traits{Openness: x, Conscientiousness: x, Extraversion: x, Agreeableness: x, Neuroticism: x}
		assert.Equal(t, in, Complement(Complement(in)))
	}
}

func TestPersonalizeIdentityStrategies(t *testing.T) {
	for _, s := range []model.PersonalityStrategy{"", model.StrategyNone, model.StrategyBaseline} {
		t.Run(string(s), func(t *testing.T) {
			base := baseAgent()
			got, personalized, err := Personalize(base, s, model.PartialTraits{})
			require.NoError(t, err)
			assert.False(t, personalized)
			assert.Equal(t, base.SystemStarterPrompt, got.SystemStarterPrompt)
			assert.Equal(t, base.ID, got.ID)
		})
	}
}

func TestPersonalizeMirroring(t *testing.T) {
	base := baseAgent()
	got, personalized, err := Personalize(base, model.StrategyMirroring, sampleTraits.Partial())
	require.NoError(t, err)
	assert.True(t, personalized)

	want := "You are a friendly assistant.\n\nUser personality scores (out of 50):\n" +
		"- Openness: 40\n- Conscientiousness: 10\n- Extraversion: 25\n- Agreeableness: 5\n- Neuroticism: 45\n\n" +
		"Your responses should reflect a similar personality to the user."
	assert.Equal(t, want, got.SystemStarterPrompt)
	assert.Contains(t, got.SystemStarterPrompt, "similar personality")
	assert.Equal(t, model.StrategyMirroring, got.PersonalityStrategy)
	assert.Empty(t, got.ID)

	traits, ok := got.Complete()
	require.True(t, ok)
	assert.Equal(t, sampleTraits, traits)
}

func TestPersonalizeComplementing(t *testing.T) {
	got, _, err := Personalize(baseAgent(), model.StrategyComplementing, sampleTraits.Partial())
	require.NoError(t, err)

	assert.Contains(t, got.SystemStarterPrompt, "Openness: 10")
	assert.Contains(t, got.SystemStarterPrompt, "Conscientiousness: 40")
	assert.Contains(t, got.SystemStarterPrompt, "Neuroticism: 5")
	assert.Contains(t, got.SystemStarterPrompt, "complementary personality")
	assert.Equal(t, 10.0, *got.Openness)
}

func TestPersonalizeRendersPromptTemplate(t *testing.T) {
	base := baseAgent()
	got, _, err := Personalize(base, model.StrategyComplementing, sampleTraits.Partial())
	require.NoError(t, err)
	assert.Empty(t, got.PromptTemplate)

	base.PromptTemplate = "Template prompt."
	got, _, err = Personalize(base, model.StrategyComplementing, sampleTraits.Partial())
	require.NoError(t, err)
	assert.Equal(t, RenderPrompt("Template prompt.", model.StrategyComplementing, Complement(sampleTraits)), got.PromptTemplate)
	assert.Contains(t, got.PromptTemplate, "Openness: 10")
	assert.Contains(t, got.SystemStarterPrompt, "Openness: 10")
	assert.Equal(t, "Template prompt.", base.PromptTemplate)
}

func TestPersonalizeDoesNotMutateBase(t *testing.T) {
	base := baseAgent()
	got, _, err := Personalize(base, model.StrategyMirroring, sampleTraits.Partial())
	require.NoError(t, err)

	*got.Temperature = 1.5
	got.StopSequences[0] = "changed"

	assert.Equal(t, "You are a friendly assistant.", base.SystemStarterPrompt)
	assert.Equal(t, float32(0.4), *base.Temperature)
	assert.Equal(t, "END", base.StopSequences[0])
	assert.Nil(t, base.Openness)
}

func TestPersonalizeMissingTraits(t *testing.T) {
	partial := sampleTraits.Partial()
	partial.Neuroticism = nil

	_, _, err := Personalize(baseAgent(), model.StrategyComplementing, partial)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "neuroticism")
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "40", FormatScore(40))
	assert.Equal(t, "32.5", FormatScore(32.5))
}
