package personality

import (
	"math"
	"strconv"
	"strings"

	"github.com/ashwinyue/persona-chat/internal/model"
)

const (
	// QuestionCount 问卷题目数
	QuestionCount = 50
	// scaleMax 李克特量表上限
	scaleMax = 5
	// neutralAnswer 缺失或无效答案的取值
	neutralAnswer = 3
)

type item struct {
	trait   model.Trait
	reverse bool
}

const (
	ext = model.Extraversion
	agr = model.Agreeableness
	con = model.Conscientiousness
	neu = model.Neuroticism
	ope = model.Openness
)

// items 第 i 题（从 1 开始）对应 items[i-1]
var items = [QuestionCount]item{
	{ext, false}, {agr, true}, {con, false}, {neu, true}, {ope, false},
	{ext, true}, {agr, false}, {con, true}, {neu, false}, {ope, true},
	{ext, false}, {agr, true}, {con, false}, {neu, true}, {ope, false},
	{ext, true}, {agr, false}, {con, true}, {neu, false}, {ope, true},
	{ext, false}, {agr, true}, {con, false}, {neu, true}, {ope, false},
	{ext, true}, {agr, false}, {con, true}, {neu, true}, {ope, true},
	{ext, false}, {agr, true}, {con, false}, {neu, true}, {ope, false},
	{ext, true}, {agr, false}, {con, true}, {neu, true}, {ope, false},
	{ext, false}, {agr, false}, {con, false}, {neu, true}, {ope, false},
	{ext, true}, {agr, false}, {con, false}, {neu, true}, {ope, false},
}

// FieldKey 第 i 题的答案键
func FieldKey(i int) string {
	return "field" + strconv.Itoa(i)
}

// Score 计算五大人格原始分，每个维度 10..50
// 缺失或不在 1..5 的答案按 3 计
func Score(answers map[string]int) model.Traits {
	var sums [traitCount]float64
	for i, it := range items {
		v, ok := answers[FieldKey(i+1)]
		if !ok || v < 1 || v > scaleMax {
			v = neutralAnswer
		}
		if it.reverse {
			v = scaleMax + 1 - v
		}
		sums[traitIndex(it.trait)] += float64(v)
	}
	return model.Traits{
		Openness:          sums[traitIndex(model.Openness)],
		Conscientiousness: sums[traitIndex(model.Conscientiousness)],
		Extraversion:      sums[traitIndex(model.Extraversion)],
		Agreeableness:     sums[traitIndex(model.Agreeableness)],
		Neuroticism:       sums[traitIndex(model.Neuroticism)],
	}
}

// ScoreRaw 处理未经类型约束的 JSON 答案
func ScoreRaw(raw map[string]any) model.Traits {
	answers := make(map[string]int, len(raw))
	for k, v := range raw {
		if i, ok := AsInt(v); ok {
			answers[k] = i
		}
	}
	return Score(answers)
}

const traitCount = 5

func traitIndex(t model.Trait) int {
	switch t {
	case model.Openness:
		return 0
	case model.Conscientiousness:
		return 1
	case model.Extraversion:
		return 2
	case model.Agreeableness:
		return 3
	}
	return 4
}

// AsInt 将 JSON 解码得到的数值或数字字符串转为整数，小数、NaN、Inf 视为无效
func AsInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
