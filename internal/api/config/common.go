package config

// Config 配置主体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	DB       DBConfig       `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Logstash LogstashConfig `mapstructure:"logstash"`
	IM       IMConfig       `mapstructure:"im"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MongoConfig 消息库配置
type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	InternalEndpoint string `mapstructure:"internal_endpoint"`
	ExternalEndpoint string `mapstructure:"external_endpoint"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	AttachmentBucket string `mapstructure:"attachment_bucket"`
	InternalUseSSL   bool   `mapstructure:"internal_use_ssl"`
}

type KafkaConfig struct {
	Brokers     []string   `mapstructure:"brokers"`
	Sasl        SaslConfig `mapstructure:"sasl"`
	EventsTopic string     `mapstructure:"events_topic"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// LogstashConfig 远程日志配置
type LogstashConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
	Token   string `mapstructure:"token"`
}

// IMConfig 实时通讯参数
type IMConfig struct {
	// TypingLeaseSeconds 输入指示租约时长，到期未续自动清除
	TypingLeaseSeconds int `mapstructure:"typing_lease_seconds"`
	// RingTimeoutSeconds 呼叫振铃超时，超时未接听自动挂断
	RingTimeoutSeconds int `mapstructure:"ring_timeout_seconds"`
	// SendBuffer 每个连接的出站缓冲条数，写满判定为慢消费者并断开
	SendBuffer int `mapstructure:"send_buffer"`
	// MaxMessageBytes 单帧上行最大字节数
	MaxMessageBytes int64 `mapstructure:"max_message_bytes"`
}
