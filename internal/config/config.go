package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// MessagingConfig 定义消息子系统的核心业务配置
type MessagingConfig struct {
	MaxAttachments    int           // 单条消息附件数量上限
	MaxAttachmentSize int64         // 单个附件大小上限（字节）
	MaxRecipients     int           // 单次寻址解析的收件人数量硬上限
	AllowSelfSend     bool          // 是否允许给自己发私信（notes-to-self）
	TemplateFile      string        // 模板定义 YAML 文件路径，留空使用内置模板
	UnreadCacheTTL    time.Duration // 未读线程数缓存的生存时间
}

// ContactConfig 定义对外提交适配器（联系表单/SMTP 网关）的配置
type ContactConfig struct {
	// SecretHash 联系表单共享密钥的 bcrypt 哈希。留空表示关闭 HTTP 联系端点。
	SecretHash string
	// SenderID 对外提交以哪个系统用户身份入库
	SenderID string
	// SMTPBindAddr 入站 SMTP 网关监听地址，留空表示关闭 SMTP 网关
	SMTPBindAddr string
	// SMTPDomain SMTP 网关域名，用于 HELO/EHLO 响应与收件人校验
	SMTPDomain string
	// SMTPMaxConns 网关最大并发连接数
	SMTPMaxConns int
	// SMTPMaxPerMinute 每分钟接受的入站会话上限
	SMTPMaxPerMinute int
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到标准输出
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存与事件通知服务配置
type RedisConfig struct {
	Enabled  bool   // 是否启用 Redis（未读缓存与消息事件发布）
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret string        // JWT 签名密钥，必须至少 32 字符
	Issuer string        // JWT 签发者标识，默认 "communitymsg"
	Expiry time.Duration // 本地签发令牌的有效期，默认 24 小时
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig    // HTTP 服务器配置
	Messaging MessagingConfig // 消息子系统配置
	Contact   ContactConfig   // 对外提交适配器配置
	CORS      CORSConfig      // 跨域配置
	Log       LogConfig       // 日志配置
	Database  DatabaseConfig  // 数据库配置
	Redis     RedisConfig     // Redis 配置
	JWT       JWTConfig       // JWT 认证配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: COMMUNITYMSG_
// 例如: COMMUNITYMSG_SERVER_HOST, COMMUNITYMSG_JWT_SECRET
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("communitymsg")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("messaging.max_attachments", 10)
	viper.SetDefault("messaging.max_attachment_size", 25*1024*1024)
	viper.SetDefault("messaging.max_recipients", 10000)
	viper.SetDefault("messaging.allow_self_send", true)
	viper.SetDefault("messaging.template_file", "")
	viper.SetDefault("messaging.unread_cache_ttl", "5m")
	viper.SetDefault("contact.secret_hash", "")
	viper.SetDefault("contact.sender_id", "system")
	viper.SetDefault("contact.smtp_bind_addr", "")
	viper.SetDefault("contact.smtp_domain", "community.local")
	viper.SetDefault("contact.smtp_max_conns", 32)
	viper.SetDefault("contact.smtp_max_per_minute", 60)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "communitymsg")
	viper.SetDefault("jwt.expiry", "24h")

	maxRecipients := viper.GetInt("messaging.max_recipients")
	if maxRecipients <= 0 {
		return nil, fmt.Errorf("messaging.max_recipients must be positive")
	}

	maxAttachments := viper.GetInt("messaging.max_attachments")
	if maxAttachments < 0 {
		return nil, fmt.Errorf("messaging.max_attachments must not be negative")
	}

	unreadTTL, err := time.ParseDuration(viper.GetString("messaging.unread_cache_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid messaging.unread_cache_ttl: %w", err)
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set COMMUNITYMSG_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	jwtExpiry, err := time.ParseDuration(viper.GetString("jwt.expiry"))
	if err != nil {
		jwtExpiry = 24 * time.Hour
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Messaging: MessagingConfig{
			MaxAttachments:    maxAttachments,
			MaxAttachmentSize: viper.GetInt64("messaging.max_attachment_size"),
			MaxRecipients:     maxRecipients,
			AllowSelfSend:     viper.GetBool("messaging.allow_self_send"),
			TemplateFile:      viper.GetString("messaging.template_file"),
			UnreadCacheTTL:    unreadTTL,
		},
		Contact: ContactConfig{
			SecretHash:       viper.GetString("contact.secret_hash"),
			SenderID:         viper.GetString("contact.sender_id"),
			SMTPBindAddr:     viper.GetString("contact.smtp_bind_addr"),
			SMTPDomain:       strings.ToLower(viper.GetString("contact.smtp_domain")),
			SMTPMaxConns:     viper.GetInt("contact.smtp_max_conns"),
			SMTPMaxPerMinute: viper.GetInt("contact.smtp_max_per_minute"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
			Issuer: viper.GetString("jwt.issuer"),
			Expiry: jwtExpiry,
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（从 backend/ 子目录运行的情况）
//
// 文件不存在时静默跳过；已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
