package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Business  BusinessConfig  `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PaymentResult string `mapstructure:"payment_result"`
	RefundResult  string `mapstructure:"refund_result"`
}

// GatewayConfig 支付网关接入配置
type GatewayConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	APISecret      string `mapstructure:"api_secret"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SchedulerConfig 定时扫描的 cron 表达式
// 各扫描相互独立，一个失败不影响其他，失败等下一个周期重试
type SchedulerConfig struct {
	PublishCron     string `mapstructure:"publish_cron"`      // 上线扫描
	CompleteCron    string `mapstructure:"complete_cron"`     // 下线扫描
	TicketCron      string `mapstructure:"ticket_cron"`       // 入场券激活/过期扫描（分钟级）
	VbankExpiryCron string `mapstructure:"vbank_expiry_cron"` // 虚拟账户入金超时扫描（每日）
}

type BusinessConfig struct {
	VbankDeadlineDays int `mapstructure:"vbank_deadline_days"` // 虚拟账户入金期限（天）
	SweepBatchSize    int `mapstructure:"sweep_batch_size"`
	MaxRetryCount     int `mapstructure:"max_retry_count"`
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
