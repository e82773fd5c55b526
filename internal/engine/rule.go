package engine

import (
	"fmt"
	"sort"

	"github.com/meridian-commerce/meridian-risk/internal/model"
)

const (
	// 黑名单命中的固定原始分
	blacklistMatchScore = 100.0
	// 白名单命中的固定原始分 (降低风险)
	whitelistMatchScore = -50.0
	// 评估排序中找不到规则引用时的兜底优先级
	fallbackPriority = 999
)

// Evaluation 单条规则的评估结果 (每次评估重新生成)
type Evaluation struct {
	RuleID       string           `json:"rule_id"`
	RuleName     string           `json:"rule_name"`
	Matched      bool             `json:"matched"`
	Score        float64          `json:"score"` // 原始分 * 规则权重
	Reason       string           `json:"reason"`
	Action       model.RiskAction `json:"action"`
	ActionParams map[string]any   `json:"action_params,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
}

// EvaluateRule 对上下文评估单条规则
//
// 规则内部的任何 panic 被捕获并降级为未命中，错误文本写入 reason，
// 单条坏规则不会中断整批评估。
func EvaluateRule(rule *model.RiskRule, ctx *RiskContext) (eval *Evaluation) {
	eval = &Evaluation{
		RuleID:       rule.RuleID,
		RuleName:     rule.Name,
		Action:       rule.Action,
		ActionParams: rule.ActionParams,
		Metadata:     map[string]any{"rule_type": string(rule.Type)},
	}

	defer func() {
		if r := recover(); r != nil {
			eval.Matched = false
			eval.Score = 0
			eval.Reason = fmt.Sprintf("rule evaluation failed: %v", r)
		}
	}()

	var raw float64
	switch rule.Type {
	case model.RiskRuleTypeScoring:
		raw = evaluateScoring(rule, ctx, eval)
	case model.RiskRuleTypeThreshold:
		raw = evaluateThreshold(rule, ctx, eval)
	case model.RiskRuleTypeBlacklist:
		raw = evaluateListMatch(rule, ctx, eval, blacklistMatchScore, "blacklist")
	case model.RiskRuleTypeWhitelist:
		raw = evaluateListMatch(rule, ctx, eval, whitelistMatchScore, "whitelist")
	default:
		eval.Matched = false
		eval.Reason = fmt.Sprintf("unsupported rule type: %s", rule.Type)
		return eval
	}

	// 规则权重永远作为最后一步乘数
	eval.Score = raw * rule.EffectiveWeight()
	return eval
}

// evaluateScoring 条件计分：每个满足的条件累加其分值 (默认 1)
func evaluateScoring(rule *model.RiskRule, ctx *RiskContext, eval *Evaluation) float64 {
	var score float64
	matched := 0
	total := 0

	for _, key := range sortedConditionKeys(rule.Conditions) {
		cond := rule.Conditions[key]
		total++
		if EvaluateCondition(key, cond, ctx) {
			matched++
			score += conditionScore(cond)
		}
	}

	eval.Matched = matched > 0
	eval.Reason = fmt.Sprintf("%d/%d conditions matched, score: %s", matched, total, formatScore(score))
	return score
}

// evaluateThreshold 加权阈值：逐条件取上下文数值乘以条件权重求和，
// 与规则阈值比较，未达阈值时得分为 0
func evaluateThreshold(rule *model.RiskRule, ctx *RiskContext, eval *Evaluation) float64 {
	var sum float64

	for _, key := range sortedConditionKeys(rule.Conditions) {
		cond := rule.Conditions[key]
		value, found := ctx.Resolve(key)
		if !found {
			continue
		}
		num, ok := toFloat(value)
		if !ok {
			continue
		}
		sum += num * conditionWeight(cond)
	}

	eval.Matched = sum >= rule.Threshold
	if eval.Matched {
		eval.Reason = fmt.Sprintf("weighted sum %s meets threshold %s", formatScore(sum), formatScore(rule.Threshold))
		return sum
	}
	eval.Reason = fmt.Sprintf("weighted sum %s below threshold %s", formatScore(sum), formatScore(rule.Threshold))
	return 0
}

// evaluateListMatch 黑/白名单：任一条件的上下文值与规则值精确匹配即命中，
// 命中返回固定原始分
func evaluateListMatch(rule *model.RiskRule, ctx *RiskContext, eval *Evaluation, matchScore float64, kind string) float64 {
	for _, key := range sortedConditionKeys(rule.Conditions) {
		cond := rule.Conditions[key]
		value, found := ctx.Resolve(key)
		if found && valuesEqual(value, cond.Value) {
			eval.Matched = true
			eval.Reason = fmt.Sprintf("%s match on %s", kind, key)
			return matchScore
		}
	}

	eval.Matched = false
	eval.Reason = fmt.Sprintf("no %s match", kind)
	return 0
}

// EvaluateRules 评估一组规则并按规则优先级升序返回结果
//
// 纯函数：相同的规则与上下文产生相同的评估列表。
// 同优先级保持输入顺序。
func EvaluateRules(rules []*model.RiskRule, ctx *RiskContext) []*Evaluation {
	priorities := make(map[string]int, len(rules))
	evals := make([]*Evaluation, 0, len(rules))

	for _, rule := range rules {
		priorities[rule.RuleID] = rule.Priority
		evals = append(evals, EvaluateRule(rule, ctx))
	}

	sort.SliceStable(evals, func(i, j int) bool {
		return evalPriority(priorities, evals[i]) < evalPriority(priorities, evals[j])
	})
	return evals
}

func evalPriority(priorities map[string]int, e *Evaluation) int {
	if p, ok := priorities[e.RuleID]; ok {
		return p
	}
	return fallbackPriority
}

// conditionScore 条件分值，0 视为默认值 1
func conditionScore(cond model.RuleCondition) float64 {
	if cond.Score == 0 {
		return 1
	}
	return cond.Score
}

// conditionWeight 条件权重，0 视为默认值 1
func conditionWeight(cond model.RuleCondition) float64 {
	if cond.Weight == 0 {
		return 1
	}
	return cond.Weight
}

// sortedConditionKeys 固定条件遍历顺序，保证评估结果可重现
func sortedConditionKeys(conditions model.RuleConditions) []string {
	keys := make([]string, 0, len(conditions))
	for key := range conditions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
