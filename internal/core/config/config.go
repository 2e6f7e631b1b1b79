package config

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}
type AdminHTTP struct {
	Host   string
	Port   int
	APIKey string `mapstructure:"apikey"`
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type Log struct {
	Level string
	JSON  bool
	File  string // 为空只输出 stdout
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int // 0 = 不过期，会话靠 logout 撤销
}

type Auth struct {
	BcryptCost      int `mapstructure:"bcryptcost"`
	HashConcurrency int `mapstructure:"hashconcurrency"`
}

type Redis struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	AvatarTTLMin int    `mapstructure:"avatarttlmin"`
}

type Minio struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"accesskey"`
	SecretKey string `mapstructure:"secretkey"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"usessl"`
}

type RabbitMQ struct {
	URL           string `mapstructure:"url"`
	QueueDurable  bool   `mapstructure:"queuedurable"`
	PrefetchCount int    `mapstructure:"prefetchcount"`
	MailQueue     string `mapstructure:"mailqueue"`
}

type Avatar struct {
	MaxBytes int64 `mapstructure:"maxbytes"`
	Size     int   `mapstructure:"size"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Config struct {
	App      App
	Log      Log
	JWT      JWT
	Auth     Auth
	DB       DB
	Redis    Redis    `mapstructure:"redis"`
	Minio    Minio    `mapstructure:"minio"`
	RabbitMQ RabbitMQ `mapstructure:"rabbitmq"`
	Avatar   Avatar   `mapstructure:"avatar"`
}

// Load 读配置失败或校验失败直接退出（启动期错误）
func Load(path string) *Config {
	c, err := Read(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return c
}

// Read 同 Load，但把错误交给调用方（测试、CLI 用）
func Read(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("log.level", "info")
	v.SetDefault("jwt.issuer", "task-manager")
	// AutomaticEnv 只覆盖已知 key，密钥要能纯靠环境变量注入
	v.SetDefault("jwt.secret", "")
	v.SetDefault("app.admin.apikey", "")
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.maxopenconns", 20)
	v.SetDefault("db.maxidleconns", 10)
	v.SetDefault("db.connmaxlifetimemin", 30)
	v.SetDefault("auth.bcryptcost", 8)
	v.SetDefault("redis.avatarttlmin", 10)
	v.SetDefault("rabbitmq.mailqueue", "mail.outbound")
	v.SetDefault("rabbitmq.queuedurable", true)
	v.SetDefault("avatar.maxbytes", 1000000)
	v.SetDefault("avatar.size", 250)
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWT.Secret) == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.DB.Driver == "" {
		errs = append(errs, errors.New("db.driver is required"))
	}
	if c.Avatar.MaxBytes <= 0 || c.Avatar.Size <= 0 {
		errs = append(errs, errors.New("avatar.maxbytes and avatar.size must be positive"))
	}
	return errors.Join(errs...)
}
