// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Chunking      ChunkingConfig      `mapstructure:"chunking"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Upload        UploadConfig        `mapstructure:"upload"`
}

// ServerConfig 存储 HTTP 服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// KafkaConfig 存储死信队列生产者的配置。
type KafkaConfig struct {
	Brokers         string `mapstructure:"brokers"`
	DeadLetterTopic string `mapstructure:"dead_letter_topic"`
}

// ChunkingConfig 存储文本分块参数。
type ChunkingConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// WorkerConfig 存储后台工作循环相关的参数（单位均为秒）。
type WorkerConfig struct {
	DequeueTimeoutSeconds int `mapstructure:"dequeue_timeout_seconds"`
	StopTimeoutSeconds    int `mapstructure:"stop_timeout_seconds"`
	ReadyPollSeconds      int `mapstructure:"ready_poll_seconds"`
	RetryDelaySeconds     int `mapstructure:"retry_delay_seconds"`
}

// UploadConfig 存储上传限制相关的配置。
type UploadConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults(&Conf)
}

// applyDefaults 为未配置的流水线参数填入默认值。
func applyDefaults(c *Config) {
	if c.Chunking.ChunkSize <= 0 {
		c.Chunking.ChunkSize = 512
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		c.Chunking.ChunkOverlap = 50
	}
	if c.Worker.DequeueTimeoutSeconds <= 0 {
		c.Worker.DequeueTimeoutSeconds = 30
	}
	if c.Worker.StopTimeoutSeconds <= 0 {
		c.Worker.StopTimeoutSeconds = 10
	}
	if c.Worker.ReadyPollSeconds <= 0 {
		c.Worker.ReadyPollSeconds = 5
	}
	if c.Worker.RetryDelaySeconds <= 0 {
		c.Worker.RetryDelaySeconds = 5
	}
	if c.Upload.MaxFileSize <= 0 {
		c.Upload.MaxFileSize = 50 * 1024 * 1024
	}
}
