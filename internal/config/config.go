// Package config 提供风险评估服务配置管理
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config 风险评估服务配置
type Config struct {
	Service  ServiceConfig  `yaml:"service" json:"service"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka" json:"kafka"`
	Risk     RiskConfig     `yaml:"risk" json:"risk"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// ServiceConfig 服务配置
type ServiceConfig struct {
	Name     string `yaml:"name" json:"name"`
	GRPCPort int    `yaml:"grpc_port" json:"grpc_port"`
	HTTPPort int    `yaml:"http_port" json:"http_port"`
	Env      string `yaml:"env" json:"env"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host                   string `yaml:"host" json:"host"`
	Port                   int    `yaml:"port" json:"port"`
	Database               string `yaml:"database" json:"database"`
	User                   string `yaml:"user" json:"user"`
	Password               string `yaml:"password" json:"password"`
	MaxConnections         int    `yaml:"max_connections" json:"max_connections"`
	MaxIdleConns           int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" json:"conn_max_lifetime_minutes"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	Brokers  []string `yaml:"brokers" json:"brokers"`
	GroupID  string   `yaml:"group_id" json:"group_id"`
	ClientID string   `yaml:"client_id" json:"client_id"`
}

// RiskConfig 风险评估配置
type RiskConfig struct {
	Thresholds        ThresholdsConfig `yaml:"thresholds" json:"thresholds"`
	Limits            LimitsConfig     `yaml:"limits" json:"limits"`
	RuleCacheTTLSec   int              `yaml:"rule_cache_ttl_sec" json:"rule_cache_ttl_sec"`
	ListCacheTTLSec   int              `yaml:"list_cache_ttl_sec" json:"list_cache_ttl_sec"`
	AlertMinRiskLevel string           `yaml:"alert_min_risk_level" json:"alert_min_risk_level"`
}

// ThresholdsConfig 风险级别归一化阈值
type ThresholdsConfig struct {
	Low      float64 `yaml:"low" json:"low"`
	Medium   float64 `yaml:"medium" json:"medium"`
	High     float64 `yaml:"high" json:"high"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// LimitsConfig 信号采集阈值配置
type LimitsConfig struct {
	HighValueOrder     string `yaml:"high_value_order" json:"high_value_order"`           // 大额订单阈值
	VeryHighValueOrder string `yaml:"very_high_value_order" json:"very_high_value_order"` // 超大额订单阈值
	MaxOrderItems      int    `yaml:"max_order_items" json:"max_order_items"`             // 单笔订单商品数上限
	MaxRulesPerTenant  int    `yaml:"max_rules_per_tenant" json:"max_rules_per_tenant"`   // 租户规则数上限
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// 环境变量替换
	content := string(data)
	content = expandEnvVars(content)

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, err
	}

	// 设置默认值
	setDefaults(&cfg)

	return &cfg, nil
}

// expandEnvVars 展开环境变量 ${VAR:default}
func expandEnvVars(s string) string {
	result := s
	for {
		start := strings.Index(result, "${")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}")
		if end == -1 {
			break
		}
		end += start

		expr := result[start+2 : end]
		parts := strings.SplitN(expr, ":", 2)
		varName := parts[0]
		defaultVal := ""
		if len(parts) > 1 {
			defaultVal = parts[1]
		}

		value := os.Getenv(varName)
		if value == "" {
			value = defaultVal
		}

		result = result[:start] + value + result[end+1:]
	}
	return result
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "meridian-risk"
	}
	if cfg.Service.GRPCPort == 0 {
		cfg.Service.GRPCPort = 50055
	}
	if cfg.Service.HTTPPort == 0 {
		cfg.Service.HTTPPort = 8080
	}
	if cfg.Service.Env == "" {
		cfg.Service.Env = "dev"
	}

	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.MaxConnections == 0 {
		cfg.Postgres.MaxConnections = 30
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 10
	}
	if cfg.Postgres.ConnMaxLifetimeMinutes == 0 {
		cfg.Postgres.ConnMaxLifetimeMinutes = 60
	}

	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 50
	}

	// 风险级别阈值默认值
	if cfg.Risk.Thresholds.Low == 0 {
		cfg.Risk.Thresholds.Low = 0.2
	}
	if cfg.Risk.Thresholds.Medium == 0 {
		cfg.Risk.Thresholds.Medium = 0.4
	}
	if cfg.Risk.Thresholds.High == 0 {
		cfg.Risk.Thresholds.High = 0.6
	}
	if cfg.Risk.Thresholds.Critical == 0 {
		cfg.Risk.Thresholds.Critical = 0.9
	}

	// 信号采集阈值默认值
	if cfg.Risk.Limits.HighValueOrder == "" {
		cfg.Risk.Limits.HighValueOrder = "10000"
	}
	if cfg.Risk.Limits.VeryHighValueOrder == "" {
		cfg.Risk.Limits.VeryHighValueOrder = "50000"
	}
	if cfg.Risk.Limits.MaxOrderItems == 0 {
		cfg.Risk.Limits.MaxOrderItems = 10
	}
	if cfg.Risk.Limits.MaxRulesPerTenant == 0 {
		cfg.Risk.Limits.MaxRulesPerTenant = 500
	}

	if cfg.Risk.RuleCacheTTLSec == 0 {
		cfg.Risk.RuleCacheTTLSec = 30
	}
	if cfg.Risk.ListCacheTTLSec == 0 {
		cfg.Risk.ListCacheTTLSec = 300
	}
	if cfg.Risk.AlertMinRiskLevel == "" {
		cfg.Risk.AlertMinRiskLevel = "HIGH"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// GetHighValueOrderThreshold 获取大额订单阈值
func (c *LimitsConfig) GetHighValueOrderThreshold() decimal.Decimal {
	d, err := decimal.NewFromString(c.HighValueOrder)
	if err != nil {
		return decimal.NewFromInt(10000)
	}
	return d
}

// GetVeryHighValueOrderThreshold 获取超大额订单阈值
func (c *LimitsConfig) GetVeryHighValueOrderThreshold() decimal.Decimal {
	d, err := decimal.NewFromString(c.VeryHighValueOrder)
	if err != nil {
		return decimal.NewFromInt(50000)
	}
	return d
}

// GetEnvInt 获取环境变量整数值
func GetEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetEnvString 获取环境变量字符串值
func GetEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
