package personality

import (
	"strconv"
	"strings"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/model"
)

const (
	mirroringInstruction     = "Your responses should reflect a similar personality to the user."
	complementingInstruction = "Your responses should reflect a complementary personality to the user."
)

// Complement 以 50 为上限取补，自身互逆
func Complement(t model.Traits) model.Traits {
	return model.Traits{
		Openness:          model.MaxTraitScore - t.Openness,
		Conscientiousness: model.MaxTraitScore - t.Conscientiousness,
		Extraversion:      model.MaxTraitScore - t.Extraversion,
		Agreeableness:     model.MaxTraitScore - t.Agreeableness,
		Neuroticism:       model.MaxTraitScore - t.Neuroticism,
	}
}

// TransformTraits 按策略变换用户得分
func TransformTraits(strategy model.PersonalityStrategy, t model.Traits) model.Traits {
	if strategy == model.StrategyComplementing {
		return Complement(t)
	}
	return t
}

// RenderPrompt 在基础提示词后追加得分与策略指令
func RenderPrompt(base string, strategy model.PersonalityStrategy, t model.Traits) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nUser personality scores (out of 50):\n")
	for _, trait := range model.AllTraits {
		b.WriteString("- ")
		b.WriteString(trait.Label())
		b.WriteString(": ")
		b.WriteString(FormatScore(t.Get(trait)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if strategy == model.StrategyComplementing {
		b.WriteString(complementingInstruction)
	} else {
		b.WriteString(mirroringInstruction)
	}
	return b.String()
}

// FormatScore 整数不带小数位
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Personalize 根据策略生成个性化智能体
// none/baseline 原样返回且 personalized 为 false；
// mirroring/complementing 返回新的快照（无 ID），提示词与人格得分均已替换，base 不被修改
func Personalize(base model.AgentSnapshot, strategy model.PersonalityStrategy, scores model.PartialTraits) (out model.AgentSnapshot, personalized bool, err error) {
	if !strategy.Personalizes() {
		return base, false, nil
	}

	traits, ok := scores.Complete()
	if !ok {
		names := make([]string, 0, len(model.AllTraits))
		for _, t := range scores.Missing() {
			names = append(names, string(t))
		}
		return model.AgentSnapshot{}, false, apperr.Validation("incomplete personality scores, missing: %s", strings.Join(names, ", "))
	}

	transformed := TransformTraits(strategy, traits)

	out = base.Clone()
	out.ID = ""
	out.SystemStarterPrompt = RenderPrompt(base.SystemStarterPrompt, strategy, transformed)
	// promptTemplate 优先作为系统提示词，同样追加人格描述
	if base.PromptTemplate != "" {
		out.PromptTemplate = RenderPrompt(base.PromptTemplate, strategy, transformed)
	}
	out.PersonalityStrategy = strategy
	out.PartialTraits = transformed.Partial()
	return out, true, nil
}
