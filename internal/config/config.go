package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server        ServerConfig   `mapstructure:"server"`
	Database      DatabaseConfig `mapstructure:"database"`
	Redis         RedisConfig    `mapstructure:"redis"`
	S3            S3Config       `mapstructure:"s3"`
	JWT           JWTConfig      `mapstructure:"jwt"`
	Strava        ProviderConfig `mapstructure:"strava"`
	TrainingPeaks ProviderConfig `mapstructure:"trainingpeaks"`
	Sync          SyncConfig     `mapstructure:"sync"`
	Admin         AdminConfig    `mapstructure:"admin"`
	Logging       LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration. Expiration accepts
// duration strings ("1h", "30m") from both the file and env vars.
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// ProviderConfig holds the OAuth application credentials for one
// external training platform.
type ProviderConfig struct {
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	RedirectURL   string `mapstructure:"redirect_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// SyncConfig controls the background jobs that refresh provider tokens
// and re-run activity matching.
type SyncConfig struct {
	TokenRefreshSpec string `mapstructure:"token_refresh_spec"`
	RematchSpec      string `mapstructure:"rematch_spec"`
}

// AdminConfig seeds the initial administrator account at startup.
// Seeding is skipped when the email is empty or already registered.
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Nested keys map to env vars with underscores,
	// e.g. server.address -> SERVER_ADDRESS, strava.client_id -> STRAVA_CLIENT_ID.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "training_app")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("s3.use_ssl", true)
	viper.SetDefault("jwt.expiration", "24h")
	viper.SetDefault("sync.token_refresh_spec", "@hourly")
	viper.SetDefault("sync.rematch_spec", "30 2 * * *")
	viper.SetDefault("admin.name", "Administrator")
	viper.SetDefault("logging.level", "info")

	err = viper.ReadInConfig()
	// A missing config file is fine, the env vars can carry everything.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
