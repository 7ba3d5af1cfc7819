package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	pkgconfig "github.com/weiawesome/wes-io-live/community-chat/pkg/config"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/database"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/community-chat/pkg/log"
)

const (
	StorageSQL       = "sql"
	StorageCassandra = "cassandra"

	PersistDirect = "direct"
	PersistKafka  = "kafka"

	// DefaultMaxMessageSize is the inbound websocket frame limit in bytes.
	// A larger frame closes the connection at the transport level.
	DefaultMaxMessageSize = 1_000_000
)

type Config struct {
	Server      ServerConfig
	CORS        CORSConfig
	WebSocket   WebSocketConfig
	Auth        jwt.Config
	Storage     StorageConfig
	Database    database.Config
	Cassandra   CassandraConfig
	Redis       RedisConfig
	Cache       CacheConfig
	Persistence PersistenceConfig
	Kafka       KafkaConfig
	Mail        MailConfig
	Mention     MentionConfig
	History     HistoryConfig
	Log         pkglog.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type StorageConfig struct {
	Driver string
}

type CassandraConfig struct {
	Hosts           []string
	Keyspace        string
	Consistency     string
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	Timeout         time.Duration
	NumConns        int    `mapstructure:"num_conns"`
	MaxPreparedStmt int    `mapstructure:"max_prepared_stmt"`
	Username        string
	Password        string
}

// RedisConfig is optional: an empty Address disables every Redis-backed cache.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type CacheConfig struct {
	Prefix     string
	HistoryTTL time.Duration `mapstructure:"history_ttl"`
	UserTTL    time.Duration `mapstructure:"user_ttl"`
}

type PersistenceConfig struct {
	Mode    string
	Timeout time.Duration
	// HealthPort serves /health of the persist worker.
	HealthPort int `mapstructure:"health_port"`
}

type KafkaConfig struct {
	Brokers             string
	Topic               string
	Partitions          int
	GroupID             string `mapstructure:"group_id"`
	AutoOffsetReset     string `mapstructure:"auto_offset_reset"`
	MaxPollIntervalMs   int    `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMs    int    `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMs int    `mapstructure:"heartbeat_interval_ms"`
}

type MailConfig struct {
	Provider       string
	FromEmail      string `mapstructure:"from_email"`
	FromName       string `mapstructure:"from_name"`
	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
	SMTPHost       string `mapstructure:"smtp_host"`
	SMTPPort       int    `mapstructure:"smtp_port"`
	SMTPUser       string `mapstructure:"smtp_user"`
	SMTPPass       string `mapstructure:"smtp_pass"`
	Timeout        time.Duration
}

type MentionConfig struct {
	AppURL       string `mapstructure:"app_url"`
	Brand        string
	ExcerptRunes int           `mapstructure:"excerpt_runes"`
	MaxParallel  int           `mapstructure:"max_parallel"`
	Timeout      time.Duration
}

type HistoryConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// Load reads config/config.yaml (or configPath/config.yaml) plus
// environment overrides.
func Load(configPath string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, "config")
	if err != nil {
		return nil, err
	}

	setDefaults(v)
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Server.ShutdownTimeout = parseDuration(v, "server.shutdown_timeout", 30*time.Second)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Auth.Leeway = parseDuration(v, "auth.leeway", 0)
	cfg.Cassandra.ConnectTimeout = parseDuration(v, "cassandra.connect_timeout", 10*time.Second)
	cfg.Cassandra.Timeout = parseDuration(v, "cassandra.timeout", 5*time.Second)
	cfg.Cache.HistoryTTL = parseDuration(v, "cache.history_ttl", 30*time.Second)
	cfg.Cache.UserTTL = parseDuration(v, "cache.user_ttl", 5*time.Minute)
	cfg.Persistence.Timeout = parseDuration(v, "persistence.timeout", 5*time.Second)
	cfg.Mail.Timeout = parseDuration(v, "mail.timeout", 15*time.Second)
	cfg.Mention.Timeout = parseDuration(v, "mention.timeout", 60*time.Second)

	// Comma-separated env values are split by viper's default decode hook.
	cfg.CORS.AllowedOrigins = trimAll(cfg.CORS.AllowedOrigins)
	cfg.Cassandra.Hosts = trimAll(cfg.Cassandra.Hosts)
	cfg.Mention.AppURL = strings.TrimRight(cfg.Mention.AppURL, "/")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", DefaultMaxMessageSize)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("auth.issuer", "")
	v.SetDefault("storage.driver", StorageSQL)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "community-chat.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("cassandra.hosts", []string{"localhost:9042"})
	v.SetDefault("cassandra.keyspace", "community_chat")
	v.SetDefault("cassandra.consistency", "LOCAL_QUORUM")
	v.SetDefault("cassandra.connect_timeout", "10s")
	v.SetDefault("cassandra.timeout", "5s")
	v.SetDefault("cassandra.num_conns", 2)
	v.SetDefault("cassandra.max_prepared_stmt", 1000)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.prefix", "community-chat")
	v.SetDefault("cache.history_ttl", "30s")
	v.SetDefault("cache.user_ttl", "5m")
	v.SetDefault("persistence.mode", PersistDirect)
	v.SetDefault("persistence.timeout", "5s")
	v.SetDefault("persistence.health_port", 5001)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "community-chat-messages")
	v.SetDefault("kafka.partitions", 8)
	v.SetDefault("kafka.group_id", "community-chat-persist")
	v.SetDefault("kafka.auto_offset_reset", "earliest")
	v.SetDefault("kafka.max_poll_interval_ms", 300000)
	v.SetDefault("kafka.session_timeout_ms", 45000)
	v.SetDefault("kafka.heartbeat_interval_ms", 3000)
	v.SetDefault("mail.provider", "auto")
	v.SetDefault("mail.from_name", "Bloomence")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.timeout", "15s")
	v.SetDefault("mention.app_url", "http://localhost:5173/#")
	v.SetDefault("mention.brand", "Bloomence")
	v.SetDefault("mention.excerpt_runes", 500)
	v.SetDefault("mention.max_parallel", 8)
	v.SetDefault("mention.timeout", "60s")
	v.SetDefault("history.default_limit", 100)
	v.SetDefault("history.max_limit", 500)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "community-chat")
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("cors.allowed_origins", "ALLOWED_ORIGINS")
	_ = v.BindEnv("auth.secret", "JWT_SECRET")
	_ = v.BindEnv("auth.public_key_file", "JWT_PUBLIC_KEY_FILE")
	_ = v.BindEnv("auth.private_key_file", "JWT_PRIVATE_KEY_FILE")
	_ = v.BindEnv("auth.issuer", "JWT_ISSUER")
	_ = v.BindEnv("storage.driver", "STORAGE_DRIVER")
	_ = v.BindEnv("database.driver", "DB_DRIVER")
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.dbname", "DB_NAME")
	_ = v.BindEnv("database.file_path", "DB_FILE_PATH")
	_ = v.BindEnv("cassandra.hosts", "CASSANDRA_HOSTS")
	_ = v.BindEnv("cassandra.keyspace", "CASSANDRA_KEYSPACE")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("persistence.mode", "PERSISTENCE_MODE")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	_ = v.BindEnv("mail.provider", "MAIL_PROVIDER")
	_ = v.BindEnv("mail.from_email", "FROM_EMAIL")
	_ = v.BindEnv("mail.from_name", "FROM_NAME")
	_ = v.BindEnv("mail.sendgrid_api_key", "SENDGRID_API_KEY")
	_ = v.BindEnv("mail.smtp_host", "SMTP_HOST")
	_ = v.BindEnv("mail.smtp_port", "SMTP_PORT")
	_ = v.BindEnv("mail.smtp_user", "SMTP_USER")
	_ = v.BindEnv("mail.smtp_pass", "SMTP_PASS")
	_ = v.BindEnv("mention.app_url", "APP_URL")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
