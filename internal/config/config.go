// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName string `toml:"appName"` // 应用名称，用于日志标识等
	Host    string `toml:"host"`    // 服务器监听地址，如 "0.0.0.0"
	Port    int    `toml:"port"`    // 服务器监听端口，如 8000
	Mode    string `toml:"mode"`    // 运行模式：dev / release
}

// MysqlConfig MySQL 数据库连接配置
type MysqlConfig struct {
	Driver       string `toml:"driver"`       // "mysql"（默认）或 "sqlite"（单机开发，无需 MySQL）
	SqlitePath   string `toml:"sqlitePath"`   // sqlite 模式的数据库文件
	Host         string `toml:"host"`         // MySQL 服务器地址
	Port         int    `toml:"port"`         // MySQL 端口，默认 3306
	User         string `toml:"user"`         // 数据库用户名
	Password     string `toml:"password"`     // 数据库密码
	DatabaseName string `toml:"databaseName"` // 数据库名称
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `toml:"host"`     // Redis 服务器地址
	Port     int    `toml:"port"`     // Redis 端口，默认 6379
	Password string `toml:"password"` // Redis 密码，无密码留空
	Db       int    `toml:"db"`       // Redis 数据库编号，默认 0
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig Kafka 连接配置（仅 fanout 模式为 kafka 时使用）
type KafkaConfig struct {
	HostPort  string        `toml:"hostPort"`  // Kafka 服务器地址，如 "localhost:9092"
	ChatTopic string        `toml:"chatTopic"` // 消息分发主题
	GroupID   string        `toml:"groupId"`   // 消费者组
	Partition int           `toml:"partition"` // 主题分区数，按会话键哈希分区
	Timeout   time.Duration `toml:"timeout"`   // 超时时间（秒）
}

// FanoutConfig 异步分发通道配置
type FanoutConfig struct {
	Mode       string `toml:"mode"`       // 分发模式："channel"（单机）或 "kafka"
	Workers    int    `toml:"workers"`    // 分发 Worker 数量（固定核心数）
	QueueSize  int    `toml:"queueSize"`  // 有界队列容量，满了即拒绝
	MaxRetries uint64 `toml:"maxRetries"` // 单条消息处理失败的最大重试次数
}

// BusConfig 投递总线配置（多实例之间广播投递事件）
type BusConfig struct {
	Mode    string `toml:"mode"`    // "local"（单实例）、"redis" 或 "nats"
	Channel string `toml:"channel"` // Redis 频道 / NATS subject
}

// NatsConfig NATS 连接配置
type NatsConfig struct {
	Servers       []string      `toml:"servers"`       // NATS 服务器列表
	Name          string        `toml:"name"`          // 连接名，便于在 NATS 监控中识别实例
	ReconnectWait time.Duration `toml:"reconnectWait"` // 重连间隔（毫秒）
	Timeout       time.Duration `toml:"timeout"`       // 连接超时（秒）
}

// DirectoryConfig 员工目录服务配置
type DirectoryConfig struct {
	BaseURL  string        `toml:"baseUrl"`  // 目录服务地址，如 "http://localhost:8080"
	Timeout  time.Duration `toml:"timeout"`  // 单次调用超时（毫秒），超时降级为空结果
	CacheTTL time.Duration `toml:"cacheTtl"` // Redis 缓存过期时间（秒）
}

// OverviewConfig 侧边栏配置
type OverviewConfig struct {
	DefaultPageSize  int `toml:"defaultPageSize"`  // 广播时推送的第一页大小
	BroadcastWorkers int `toml:"broadcastWorkers"` // 异步广播协程池大小
	BroadcastQueue   int `toml:"broadcastQueue"`   // 协程池最大排队任务数
}

// StaticSrcConfig 附件存储路径配置
type StaticSrcConfig struct {
	StaticFilePath string `toml:"staticFilePath"` // 附件文件存储目录
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret            string `toml:"secret"`            // JWT 签名密钥，建议 32 字符以上
	AccessTokenExpiry int    `toml:"accessTokenExpiry"` // Access Token 有效期（分钟）
}

// SnowflakeConfig 雪花算法配置
type SnowflakeConfig struct {
	MachineID int64 `toml:"machineId"` // 雪花算法节点 ID，范围 0-1023，多实例部署时每台机器需唯一
}

// SecurityConfig 安全响应头配置
type SecurityConfig struct {
	SSLRedirect  bool     `toml:"sslRedirect"`  // 是否将 HTTP 重定向到 HTTPS（Nginx 终止 TLS 时关闭）
	AllowedHosts []string `toml:"allowedHosts"` // 允许的 Host 列表，空表示不限制
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig      `toml:"mainConfig"`      // 主配置
	MysqlConfig     `toml:"mysqlConfig"`     // MySQL 配置
	RedisConfig     `toml:"redisConfig"`     // Redis 配置
	LogConfig       `toml:"logConfig"`       // 日志配置
	KafkaConfig     `toml:"kafkaConfig"`     // Kafka 配置
	FanoutConfig    `toml:"fanoutConfig"`    // 异步分发配置
	BusConfig       `toml:"busConfig"`       // 投递总线配置
	NatsConfig      `toml:"natsConfig"`      // NATS 配置
	DirectoryConfig `toml:"directoryConfig"` // 目录服务配置
	OverviewConfig  `toml:"overviewConfig"`  // 侧边栏配置
	StaticSrcConfig `toml:"staticSrcConfig"` // 附件配置
	JWTConfig       `toml:"jwtConfig"`       // JWT 配置
	SnowflakeConfig `toml:"snowflakeConfig"` // 雪花算法配置
	SecurityConfig  `toml:"securityConfig"`  // 安全配置
}

// config 全局配置单例，延迟加载
var config *Config

// Default 返回一份可直接运行的默认配置（单机模式）
func Default() *Config {
	return &Config{
		MainConfig:      MainConfig{AppName: "employee_chat_server", Host: "0.0.0.0", Port: 8000, Mode: "dev"},
		MysqlConfig:     MysqlConfig{Driver: "mysql", SqlitePath: "./data/chat.db", Host: "127.0.0.1", Port: 3306, User: "root", DatabaseName: "employee_chat"},
		RedisConfig:     RedisConfig{Host: "127.0.0.1", Port: 6379},
		LogConfig:       LogConfig{LogPath: "./logs", Level: "info"},
		KafkaConfig:     KafkaConfig{HostPort: "127.0.0.1:9092", ChatTopic: "chat-fanout", GroupID: "chat-fanout", Partition: 3, Timeout: 1},
		FanoutConfig:    FanoutConfig{Mode: "channel", Workers: 10, QueueSize: 35, MaxRetries: 3},
		BusConfig:       BusConfig{Mode: "local", Channel: "chat.delivery"},
		NatsConfig:      NatsConfig{Name: "employee_chat_server", ReconnectWait: 500, Timeout: 3},
		DirectoryConfig: DirectoryConfig{BaseURL: "http://127.0.0.1:8080", Timeout: 2000, CacheTTL: 600},
		OverviewConfig:  OverviewConfig{DefaultPageSize: 10, BroadcastWorkers: 20, BroadcastQueue: 1000},
		StaticSrcConfig: StaticSrcConfig{StaticFilePath: "./static/files"},
		JWTConfig:       JWTConfig{Secret: "change-me-change-me-change-me-32", AccessTokenExpiry: 60},
		SnowflakeConfig: SnowflakeConfig{MachineID: 1},
	}
}

// LoadConfig 从多个候选路径加载配置文件
// 按顺序尝试加载，找到第一个可用的配置文件即停止
func LoadConfig() error {
	// 候选配置文件路径（优先加载本地配置）
	paths := []string{
		"configs/config_local.toml",       // 本地开发配置（优先）
		"configs/config.toml",             // 默认配置
		"../../configs/config_local.toml", // 从子目录运行时的路径
		"../../configs/config.toml",       // 从子目录运行时的路径
	}

	for _, path := range paths {
		if _, err := toml.DecodeFile(path, config); err == nil {
			return nil
		}
	}

	return fmt.Errorf("could not find configuration file in any of the search paths")
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件，找不到文件时使用 Default()
func GetConfig() *Config {
	if config == nil {
		config = Default()
		_ = LoadConfig()
	}
	return config
}
