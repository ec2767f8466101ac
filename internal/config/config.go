package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	AI        AIConfig        `mapstructure:"ai"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type AppConfig struct {
	Mode string `mapstructure:"mode"` // debug / release
}

type StorageConfig struct {
	DataDir         string        `mapstructure:"data_dir"`
	BackupRetention int           `mapstructure:"backup_retention"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout_seconds"`

	// 备份镜像（可选）：local 不镜像，minio 上传到对象存储
	MirrorType    string `mapstructure:"mirror_type"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
}

type SchedulerConfig struct {
	WeightSystematic  float64 `mapstructure:"weight_systematic"`
	WeightIsolated    float64 `mapstructure:"weight_isolated"`
	WeightEnhancement float64 `mapstructure:"weight_enhancement"`
	WeightOther       float64 `mapstructure:"weight_other"`

	// 清理策略：删除超过 purge_after_days 天的软删除记录，
	// 但保留掌握度低于 purge_preserve_below 的（攻克失败的记录有长期价值）
	PurgeAfterDays     int     `mapstructure:"purge_after_days"`
	PurgePreserveBelow float64 `mapstructure:"purge_preserve_below"`
}

type AIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	CallTimeout   time.Duration `mapstructure:"call_timeout_seconds"`
	RatePerMinute int           `mapstructure:"rate_per_minute"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type LoggingConfig struct {
	File string `mapstructure:"file"`
}

// DefaultConfig 返回不依赖配置文件的默认配置，业务代码只读取显式传入的 Config
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{Mode: "debug"},
		Storage: StorageConfig{
			DataDir:         "data",
			BackupRetention: 5,
			LockTimeout:     5 * time.Second,
			MirrorType:      "local",
		},
		Scheduler: SchedulerConfig{
			WeightSystematic:   0.8,
			WeightIsolated:     1.0,
			WeightEnhancement:  1.5,
			WeightOther:        1.0,
			PurgeAfterDays:     30,
			PurgePreserveBelow: 0.3,
		},
		AI: AIConfig{
			CallTimeout:   30 * time.Second,
			RatePerMinute: 20,
		},
		Logging: LoggingConfig{File: "logs/app.log"},
	}
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("LINKER")
	viper.AutomaticEnv()

	// Storage
	viper.BindEnv("storage.data_dir", "LINKER_DATA_DIR")
	viper.BindEnv("storage.mirror_type", "LINKER_MIRROR_TYPE")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// AI
	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("ai.api_key", "AI_API_KEY")
	viper.BindEnv("ai.model", "AI_MODEL")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// App
	viper.BindEnv("app.mode", "APP_MODE")

	def := DefaultConfig()
	viper.SetDefault("app.mode", def.App.Mode)
	viper.SetDefault("storage.data_dir", def.Storage.DataDir)
	viper.SetDefault("storage.backup_retention", def.Storage.BackupRetention)
	viper.SetDefault("storage.lock_timeout_seconds", 5)
	viper.SetDefault("storage.mirror_type", def.Storage.MirrorType)
	viper.SetDefault("scheduler.weight_systematic", def.Scheduler.WeightSystematic)
	viper.SetDefault("scheduler.weight_isolated", def.Scheduler.WeightIsolated)
	viper.SetDefault("scheduler.weight_enhancement", def.Scheduler.WeightEnhancement)
	viper.SetDefault("scheduler.weight_other", def.Scheduler.WeightOther)
	viper.SetDefault("scheduler.purge_after_days", def.Scheduler.PurgeAfterDays)
	viper.SetDefault("scheduler.purge_preserve_below", def.Scheduler.PurgePreserveBelow)
	viper.SetDefault("ai.call_timeout_seconds", 30)
	viper.SetDefault("ai.rate_per_minute", def.AI.RatePerMinute)
	viper.SetDefault("logging.file", def.Logging.File)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// 秒为单位的配置项转成 Duration
	cfg.Storage.LockTimeout = cfg.Storage.LockTimeout * time.Second
	cfg.AI.CallTimeout = cfg.AI.CallTimeout * time.Second

	if _, err := os.Stat(cfg.Storage.DataDir); os.IsNotExist(err) {
		os.MkdirAll(cfg.Storage.DataDir, 0755)
	}

	return &cfg, nil
}
