// Package engine 实现规则评估引擎
package engine

import (
	"strings"
	"sync"

	"github.com/meridian-commerce/meridian-risk/internal/model"
	"github.com/meridian-commerce/meridian-risk/internal/signal"
)

// RiskContext 一次评估的只读输入
type RiskContext struct {
	EntityID    string
	EntityType  model.EntityType
	TenantID    string
	Signals     []signal.RiskSignal
	ContextData map[string]any
	Metadata    map[string]any

	docOnce sync.Once
	doc     map[string]any
}

// Document 返回条件解析用的上下文文档
//
// 文档只构建一次。信号按名称索引，暴露 value/weight/type/source 字段，
// 使条件键可以写成 "signals.HIGH_VALUE_ORDER.weight"。
func (c *RiskContext) Document() map[string]any {
	c.docOnce.Do(func() {
		sigs := make(map[string]any, len(c.Signals))
		for _, s := range c.Signals {
			sigs[s.Name] = map[string]any{
				"value":  s.Value,
				"weight": s.Weight,
				"type":   string(s.Type),
				"source": s.Source,
			}
		}
		c.doc = map[string]any{
			"entityId":    c.EntityID,
			"entityType":  string(c.EntityType),
			"tenantId":    c.TenantID,
			"signals":     sigs,
			"contextData": c.ContextData,
			"metadata":    c.Metadata,
		}
	})
	return c.doc
}

// Resolve 按点路径解析上下文值，路径不存在时返回 (nil, false)
func (c *RiskContext) Resolve(path string) (any, bool) {
	return resolvePath(c.Document(), path)
}

// resolvePath 在嵌套 map 上做递归下降的点路径解析
func resolvePath(doc map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
