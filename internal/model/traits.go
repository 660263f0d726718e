package model

import "fmt"

// Trait 五大人格维度
type Trait string

const (
	Openness          Trait = "openness"
	Conscientiousness Trait = "conscientiousness"
	Extraversion      Trait = "extraversion"
	Agreeableness     Trait = "agreeableness"
	Neuroticism       Trait = "neuroticism"
)

// AllTraits 固定的展示顺序
var AllTraits = []Trait{Openness, Conscientiousness, Extraversion, Agreeableness, Neuroticism}

// Label 首字母大写的展示名
func (t Trait) Label() string {
	switch t {
	case Openness:
		return "Openness"
	case Conscientiousness:
		return "Conscientiousness"
	case Extraversion:
		return "Extraversion"
	case Agreeableness:
		return "Agreeableness"
	case Neuroticism:
		return "Neuroticism"
	}
	return string(t)
}

// MaxTraitScore 单个维度的原始分上限（10 题 × 5 分）
const MaxTraitScore = 50

// Traits 完整的五维得分
type Traits struct {
	Openness          float64 `gorm:"column:openness" json:"openness"`
	Conscientiousness float64 `gorm:"column:conscientiousness" json:"conscientiousness"`
	Extraversion      float64 `gorm:"column:extraversion" json:"extraversion"`
	Agreeableness     float64 `gorm:"column:agreeableness" json:"agreeableness"`
	Neuroticism       float64 `gorm:"column:neuroticism" json:"neuroticism"`
}

// Get 按维度取值
func (t Traits) Get(trait Trait) float64 {
	switch trait {
	case Openness:
		return t.Openness
	case Conscientiousness:
		return t.Conscientiousness
	case Extraversion:
		return t.Extraversion
	case Agreeableness:
		return t.Agreeableness
	case Neuroticism:
		return t.Neuroticism
	}
	return 0
}

// Validate 每个维度必须在 0..50
func (t Traits) Validate() error {
	for _, trait := range AllTraits {
		v := t.Get(trait)
		if v < 0 || v > MaxTraitScore {
			return fmt.Errorf("%s must be between 0 and %d, got %v", trait, MaxTraitScore, v)
		}
	}
	return nil
}

// Partial 转为可缺省形式
func (t Traits) Partial() PartialTraits {
	return PartialTraits{
		Openness:          &t.Openness,
		Conscientiousness: &t.Conscientiousness,
		Extraversion:      &t.Extraversion,
		Agreeableness:     &t.Agreeableness,
		Neuroticism:       &t.Neuroticism,
	}
}

// PartialTraits 可缺省的五维得分
type PartialTraits struct {
	Openness          *float64 `gorm:"column:openness" json:"openness"`
	Conscientiousness *float64 `gorm:"column:conscientiousness" json:"conscientiousness"`
	Extraversion      *float64 `gorm:"column:extraversion" json:"extraversion"`
	Agreeableness     *float64 `gorm:"column:agreeableness" json:"agreeableness"`
	Neuroticism       *float64 `gorm:"column:neuroticism" json:"neuroticism"`
}

// Get 按维度取值，未设置返回 nil
func (p PartialTraits) Get(trait Trait) *float64 {
	switch trait {
	case Openness:
		return p.Openness
	case Conscientiousness:
		return p.Conscientiousness
	case Extraversion:
		return p.Extraversion
	case Agreeableness:
		return p.Agreeableness
	case Neuroticism:
		return p.Neuroticism
	}
	return nil
}

// Missing 返回缺失的维度
func (p PartialTraits) Missing() []Trait {
	var missing []Trait
	for _, trait := range AllTraits {
		if p.Get(trait) == nil {
			missing = append(missing, trait)
		}
	}
	return missing
}

// Complete 五个维度齐全时返回完整得分
func (p PartialTraits) Complete() (Traits, bool) {
	if len(p.Missing()) > 0 {
		return Traits{}, false
	}
	return Traits{
		Openness:          *p.Openness,
		Conscientiousness: *p.Conscientiousness,
		Extraversion:      *p.Extraversion,
		Agreeableness:     *p.Agreeableness,
		Neuroticism:       *p.Neuroticism,
	}, true
}

// IsEmpty 五个维度均未设置
func (p PartialTraits) IsEmpty() bool {
	return len(p.Missing()) == len(AllTraits)
}

// Clone 深拷贝
func (p PartialTraits) Clone() PartialTraits {
	return PartialTraits{
		Openness:          clonePtr(p.Openness),
		Conscientiousness: clonePtr(p.Conscientiousness),
		Extraversion:      clonePtr(p.Extraversion),
		Agreeableness:     clonePtr(p.Agreeableness),
		Neuroticism:       clonePtr(p.Neuroticism),
	}
}
