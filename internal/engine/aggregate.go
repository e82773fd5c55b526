package engine

import (
	"fmt"
	"math"

	"github.com/meridian-commerce/meridian-risk/internal/model"
)

// Thresholds 风险级别归一化阈值
type Thresholds struct {
	Low      float64 `yaml:"low" json:"low"`
	Medium   float64 `yaml:"medium" json:"medium"`
	High     float64 `yaml:"high" json:"high"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// DefaultThresholds 默认级别阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		Low:      0.2,
		Medium:   0.4,
		High:     0.6,
		Critical: 0.9,
	}
}

// 高风险评估附加的固定建议
const (
	adviceVerification = "Additional verification recommended"
	adviceMonitoring   = "Monitor entity activity closely"
	adviceImmediate    = "Immediate manual review required"
)

// Score 聚合后的风险评分
type Score struct {
	TotalScore       float64            `json:"total_score"`
	MaxPossibleScore float64            `json:"max_possible_score"`
	RiskLevel        model.RiskLevel    `json:"risk_level"`
	RuleScores       map[string]float64 `json:"rule_scores"`
	Confidence       float64            `json:"confidence"`
	ShouldBlock      bool               `json:"should_block"`
	ShouldHold       bool               `json:"should_hold"`
	ShouldReview     bool               `json:"should_review"`
	Recommendations  []string           `json:"recommendations"`
}

// CalculateRiskScore 将规则评估结果归并为总评分
//
// 总分直接求和，白名单等负分不设下限。maxPossibleScore 按
// Σ|score|*2 累计，这是一个刻意宽松的上界估计而非理论最大值，
// 归一化行为依赖它，不要改动公式。
// 建议顺序跟随评估顺序 (已按优先级排序)，固定建议追加在最后。
func CalculateRiskScore(evals []*Evaluation, thresholds Thresholds) *Score {
	score := &Score{
		RuleScores:      make(map[string]float64, len(evals)),
		Recommendations: make([]string, 0),
	}

	matched := 0
	for _, e := range evals {
		score.TotalScore += e.Score
		score.MaxPossibleScore += math.Abs(e.Score) * 2
		score.RuleScores[e.RuleID] = e.Score

		if !e.Matched {
			continue
		}
		matched++

		switch e.Action {
		case model.RiskActionBlock:
			score.ShouldBlock = true
			score.Recommendations = append(score.Recommendations, fmt.Sprintf("Block: %s", e.Reason))
		case model.RiskActionHold:
			score.ShouldHold = true
			score.Recommendations = append(score.Recommendations, fmt.Sprintf("Hold: %s", e.Reason))
		case model.RiskActionReview:
			score.ShouldReview = true
			score.Recommendations = append(score.Recommendations, fmt.Sprintf("Review: %s", e.Reason))
		}
	}

	score.RiskLevel = DetermineRiskLevel(score.TotalScore, score.MaxPossibleScore, thresholds)

	total := len(evals)
	if total < 1 {
		total = 1
	}
	score.Confidence = float64(matched) / float64(total)

	if score.RiskLevel.IsHighRisk() {
		score.Recommendations = append(score.Recommendations, adviceVerification, adviceMonitoring)
	}
	if score.RiskLevel == model.RiskLevelCritical {
		score.Recommendations = append(score.Recommendations, adviceImmediate)
	}

	return score
}

// DetermineRiskLevel 由总分与分数上界派生风险级别
//
// 级别是 (totalScore, maxPossibleScore, thresholds) 的纯函数。
// maxPossibleScore 为 0 时归一化分数取 0。
func DetermineRiskLevel(totalScore, maxPossibleScore float64, thresholds Thresholds) model.RiskLevel {
	var normalized float64
	if maxPossibleScore > 0 {
		normalized = math.Abs(totalScore) / maxPossibleScore
	}

	switch {
	case normalized >= thresholds.Critical:
		return model.RiskLevelCritical
	case normalized >= thresholds.High:
		return model.RiskLevelHigh
	case normalized >= thresholds.Medium:
		return model.RiskLevelMedium
	default:
		return model.RiskLevelLow
	}
}
