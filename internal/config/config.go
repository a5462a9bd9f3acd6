package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverMemory   = "memory"

	GatewayDriverPicGo       = "picgo"
	GatewayDriverObjectStore = "objectstore"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// TrustedProxies lists proxies whose forwarding headers set the client IP.
	TrustedProxies []string
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
	Migrate         bool
}

type RedisConfig struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	ContentTTL time.Duration
}

type PicGoConfig struct {
	Endpoint     string
	APIKey       string
	Timeout      time.Duration
	DefaultAlbum string
}

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	PublicURL string
	Timeout   time.Duration
}

type GatewayConfig struct {
	Driver      string
	PicGo       PicGoConfig
	ObjectStore ObjectStoreConfig
}

type StorageConfig struct {
	UncheckedDir  string
	CheckedDir    string
	CacheLocal    bool
	SweepSchedule string
	SweepMinAge   time.Duration
}

type SecurityConfig struct {
	AdminPassword string
	JWTSecret     string
	JWTTTL        time.Duration
}

type LimitsConfig struct {
	MaxUploadBytes  int64
	PendingLimit    int
	CheckedPageSize int
	ListDefault     int
	ListMax         int
	BatchMax        int
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Database         DatabaseConfig
	Redis            RedisConfig
	Gateway          GatewayConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Limits           LimitsConfig
	AllowCORSOrigins []string
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("MEME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Database.Driver {
	case DatabaseDriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("config: database.dsn is required for the postgres driver")
		}
	case DatabaseDriverMemory:
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}

	switch c.Gateway.Driver {
	case GatewayDriverPicGo, GatewayDriverObjectStore:
	default:
		return fmt.Errorf("config: unknown gateway driver %q", c.Gateway.Driver)
	}

	if c.Security.JWTSecret == "" {
		return fmt.Errorf("config: security.jwtsecret is required")
	}
	if c.Limits.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: limits.maxuploadbytes must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8000)
	v.SetDefault("http.readtimeout", "15s")
	v.SetDefault("http.writetimeout", "60s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.trustedproxies", []string{})

	v.SetDefault("database.driver", DatabaseDriverPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.maxopen", 30)
	v.SetDefault("database.maxidle", 5)
	v.SetDefault("database.connmaxlifetime", "30m")
	v.SetDefault("database.connecttimeout", "10s")
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.contentttl", "1h")

	v.SetDefault("gateway.driver", GatewayDriverPicGo)
	v.SetDefault("gateway.picgo.endpoint", "https://www.picgo.net/api/1/upload")
	v.SetDefault("gateway.picgo.apikey", "")
	v.SetDefault("gateway.picgo.timeout", "30s")
	v.SetDefault("gateway.picgo.defaultalbum", "")
	v.SetDefault("gateway.objectstore.endpoint", "127.0.0.1:9000")
	v.SetDefault("gateway.objectstore.accesskey", "")
	v.SetDefault("gateway.objectstore.secretkey", "")
	v.SetDefault("gateway.objectstore.bucket", "memes")
	v.SetDefault("gateway.objectstore.usessl", false)
	v.SetDefault("gateway.objectstore.region", "us-east-1")
	v.SetDefault("gateway.objectstore.publicurl", "")
	v.SetDefault("gateway.objectstore.timeout", "30s")

	v.SetDefault("storage.uncheckeddir", "images/unchecked")
	v.SetDefault("storage.checkeddir", "images/checked")
	v.SetDefault("storage.cachelocal", true)
	v.SetDefault("storage.sweepschedule", "0 30 3 * * *")
	v.SetDefault("storage.sweepminage", "1h")

	v.SetDefault("security.adminpassword", "")
	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtttl", "30m")

	v.SetDefault("limits.maxuploadbytes", 10<<20)
	v.SetDefault("limits.pendinglimit", 50)
	v.SetDefault("limits.checkedpagesize", 5)
	v.SetDefault("limits.listdefault", 100)
	v.SetDefault("limits.listmax", 500)
	v.SetDefault("limits.batchmax", 10)

	v.SetDefault("allowcorsorigins", []string{})
}
