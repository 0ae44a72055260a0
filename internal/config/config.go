// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（数据库密码、Redis 密码）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 后端模式由配置推导：配置了 redis.host 走网络存储，
// 否则使用进程内 map。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// TrackerConfig 活跃追踪配置
type TrackerConfig struct {
	// ActiveWindowDays 活跃窗口天数：会话键 TTL 与 hydrate 跳过阈值
	ActiveWindowDays int `yaml:"active_window_days"`
	// ActiveMessageThreshold 活跃消息数阈值，供外部消费方判定"活跃"，
	// 缓存自身不强制
	ActiveMessageThreshold int `yaml:"active_message_threshold"`
}

type RedisConfig struct {
	Host string `yaml:"host"` // 为空表示进程内模式
	Port int    `yaml:"port"`
	DB   int    `yaml:"db"`
}

type DatabaseConfig struct {
	Driver  string `yaml:"driver"` // postgres | sqlite
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Name    string `yaml:"name"`
	SSLMode string `yaml:"sslmode"`
	Path    string `yaml:"path"` // sqlite 数据文件
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env                    Environment
	APIPort                string
	ActiveWindowDays       int
	ActiveMessageThreshold int
	RedisAddr              string // 为空表示进程内模式
	RedisPassword          string
	RedisDB                int
	DatabaseDriver         string
	DatabaseURL            string // postgres 连接串或 sqlite DSN
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 构建最终配置
func Load() *Config {
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	env := parseEnv(getEnv("APP_ENV", "dev"))

	yamlCfg := loadYAMLConfig(env)

	dbPassword := getEnv("DB_PASSWORD", "tracker_dev_password")
	redisPassword := getEnv("REDIS_PASSWORD", "")

	cfg := &Config{
		Env:                    env,
		APIPort:                getEnv("API_PORT", yamlCfg.Server.Port),
		ActiveWindowDays:       yamlCfg.Tracker.ActiveWindowDays,
		ActiveMessageThreshold: yamlCfg.Tracker.ActiveMessageThreshold,
		RedisPassword:          redisPassword,
		RedisDB:                yamlCfg.Redis.DB,
		DatabaseDriver:         yamlCfg.Database.Driver,
	}

	// 环境变量优先于 YAML 选择 Redis 端点
	redisHost := getEnv("REDIS_HOST", yamlCfg.Redis.Host)
	if redisHost != "" {
		port := yamlCfg.Redis.Port
		if v := os.Getenv("REDIS_PORT"); v != "" {
			if p, err := strconv.Atoi(v); err == nil {
				port = p
			}
		}
		if port == 0 {
			port = 6379
		}
		cfg.RedisAddr = fmt.Sprintf("%s:%d", redisHost, port)
	}

	switch cfg.DatabaseDriver {
	case "sqlite":
		cfg.DatabaseURL = getEnv("DATABASE_PATH", yamlCfg.Database.Path)
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "file:activity.db?cache=shared&mode=rwc"
		}
	default:
		cfg.DatabaseDriver = "postgres"
		cfg.DatabaseURL = getEnv("DATABASE_URL", buildDatabaseURL(yamlCfg.Database, dbPassword))
	}

	cfg.validate()
	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	cfg := &YAMLConfig{
		Server: ServerConfig{Port: "8080"},
		Tracker: TrackerConfig{
			ActiveWindowDays:       7,
			ActiveMessageThreshold: 5,
		},
		Database: DatabaseConfig{
			Driver: "sqlite", Host: "localhost", Port: 5432,
			User: "tracker", Name: "activity_tracker", SSLMode: "disable",
		},
	}

	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// buildDatabaseURL 构建 PostgreSQL 连接字符串
func buildDatabaseURL(db DatabaseConfig, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User, password, db.Host, db.Port, db.Name, db.SSLMode)
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// validate 验证并填充默认值
func (c *Config) validate() {
	if c.ActiveWindowDays <= 0 {
		c.ActiveWindowDays = 7
	}
	if c.ActiveMessageThreshold <= 0 {
		c.ActiveMessageThreshold = 5
	}
	if c.APIPort == "" {
		c.APIPort = "8080"
	}
}

// ActiveWindow 活跃窗口时长
func (c *Config) ActiveWindow() time.Duration {
	return time.Duration(c.ActiveWindowDays) * 24 * time.Hour
}

// UseRedis 是否使用网络后端
func (c *Config) UseRedis() bool {
	return c.RedisAddr != ""
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	backend := "memory"
	if c.UseRedis() {
		backend = "redis@" + c.RedisAddr
	}
	return fmt.Sprintf("Config{Env: %s, Backend: %s, DB: %s/%s, Window: %dd}",
		c.Env, backend, c.DatabaseDriver, maskPassword(c.DatabaseURL), c.ActiveWindowDays)
}

// maskPassword 隐藏密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}
