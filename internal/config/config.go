package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
// CertFile/KeyFile/CAFile 三者齐全时启用双向TLS（AWS IoT Core 方式）
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	CertFile       string
	KeyFile        string
	CAFile         string
	PublishTimeout int // 秒，发布等待上限（尽力而为通道的超时）
}

// Config 告警关联服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// MQTT 主题
	Topics struct {
		DrowsinessAlerts string // 车辆上报疲劳告警
		DriverProfile    string // 车辆上报驾驶员档案更新
		AmbulanceAlerts  string // 下游急救端合并告警
		AlertAck         string // 车辆侧处理确认
		ProfileUpdated   string // 档案广播（仪表盘等订阅方）
	}

	// 配额治理（对齐 AWS Free Tier 每月消息上限）
	Quota struct {
		MonthlyMessageLimit int64
		ResetIntervalDays   int
		StatsKey            string // Redis 持久化键
	}

	// 记录保留窗口
	Retention struct {
		AlertTTLDays   int
		ProfileTTLDays int
	}

	// Redis 实时缓存
	Cache struct {
		DriverKeyPrefix string
		AlertSuffix     string
		ProfileSuffix   string
		AlertTTL        int // 秒
		ProfileTTL      int // 秒
	}

	// 批量导入循环
	Ingestion struct {
		Enabled      bool
		DataDir      string
		DriversFile  string
		AlertsFile   string
		PollInterval int // 秒
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "drowsiness")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "drowsiness-backend")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.CertFile = getEnv("MQTT_CERT_FILE", "")
	cfg.MQTT.KeyFile = getEnv("MQTT_KEY_FILE", "")
	cfg.MQTT.CAFile = getEnv("MQTT_CA_FILE", "")
	cfg.MQTT.PublishTimeout = getEnvInt("MQTT_PUBLISH_TIMEOUT", 5)

	cfg.Topics.DrowsinessAlerts = getEnv("TOPIC_DROWSINESS", "vehicle/alerts/drowsiness")
	cfg.Topics.DriverProfile = getEnv("TOPIC_DRIVER_PROFILE", "vehicle/driver/profile")
	cfg.Topics.AmbulanceAlerts = getEnv("TOPIC_AMBULANCE", "ambulance/alerts/drowsiness")
	cfg.Topics.AlertAck = getEnv("TOPIC_ALERT_ACK", "vehicle/alerts/ack")
	cfg.Topics.ProfileUpdated = getEnv("TOPIC_PROFILE_UPDATED", "vehicle/driver/profile/updated")

	cfg.Quota.MonthlyMessageLimit = int64(getEnvInt("QUOTA_MONTHLY_LIMIT", 250000))
	cfg.Quota.ResetIntervalDays = getEnvInt("QUOTA_RESET_DAYS", 30)
	cfg.Quota.StatsKey = getEnv("QUOTA_STATS_KEY", "drowsiness:usage:stats")

	cfg.Retention.AlertTTLDays = getEnvInt("ALERT_TTL_DAYS", 30)
	cfg.Retention.ProfileTTLDays = getEnvInt("PROFILE_TTL_DAYS", 365)

	cfg.Cache.DriverKeyPrefix = getEnv("CACHE_DRIVER_PREFIX", "drowsiness:driver:")
	cfg.Cache.AlertSuffix = getEnv("CACHE_ALERT_SUFFIX", ":alert")
	cfg.Cache.ProfileSuffix = getEnv("CACHE_PROFILE_SUFFIX", ":profile")
	cfg.Cache.AlertTTL = getEnvInt("CACHE_ALERT_TTL", 3600)
	cfg.Cache.ProfileTTL = getEnvInt("CACHE_PROFILE_TTL", 3600)

	cfg.Ingestion.Enabled = getEnvBool("INGESTION_ENABLED", true)
	cfg.Ingestion.DataDir = getEnv("INGESTION_DATA_DIR", "data")
	cfg.Ingestion.DriversFile = getEnv("INGESTION_DRIVERS_FILE", "drivers.csv")
	cfg.Ingestion.AlertsFile = getEnv("INGESTION_ALERTS_FILE", "drowsiness_alerts.csv")
	cfg.Ingestion.PollInterval = getEnvInt("INGESTION_POLL_INTERVAL", 60)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
