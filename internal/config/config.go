package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type StorageConfig struct {
	// DataDir 存放数据库与图片目录
	// DataDir holds the database file and the images directory
	DataDir string `mapstructure:"data_dir"`
}

type MonitorConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// Clipboard 选择剪贴板后端：auto / native / command
	// Clipboard selects the clipboard backend: auto, native or command
	Clipboard string `mapstructure:"clipboard"`
}

type RetentionConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	OrphanGrace time.Duration `mapstructure:"orphan_grace"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Retention RetentionConfig `mapstructure:"retention"`
	Log       LogConfig       `mapstructure:"log"`
}

func Default() Config {
	return Config{
		Storage: StorageConfig{DataDir: DefaultDataDir},
		Monitor: MonitorConfig{
			Enabled:      true,
			PollInterval: DefaultPollInterval,
			Clipboard:    ClipboardAuto,
		},
		Retention: RetentionConfig{
			Interval:    DefaultRetentionInterval,
			OrphanGrace: DefaultOrphanGrace,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// DBPath 数据库文件路径 / DBPath is the SQLite file inside DataDir
func (c Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, DBFileName)
}

// ImagesDir 图片目录 / ImagesDir is the image directory inside DataDir
func (c Config) ImagesDir() string {
	return filepath.Join(c.Storage.DataDir, ImagesDirName)
}

// Load 按优先级合并：默认值 < 配置文件 < .env < 环境变量
// Load merges defaults, the config file, a .env file and CLIPKEEP_* env vars,
// later sources winning. An explicit path must exist; the search path may
// come up empty.
func Load(path string) (Config, error) {
	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}
	return decode(v)
}

// Watch 监听配置文件变化；每次变化后回调解码后的配置
// Watch reloads the config file on change and hands the result to onChange.
// It returns the config loaded at start and the file being watched, which is
// empty when no file was found.
func Watch(path string, onChange func(Config, error)) (Config, string, error) {
	v, err := newViper(path)
	if err != nil {
		return Config{}, "", err
	}
	cfg, err := decode(v)
	if err != nil {
		return Config{}, "", err
	}
	used := v.ConfigFileUsed()
	if used == "" {
		return cfg, "", nil
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(decode(v))
	})
	v.WatchConfig()
	return cfg, used, nil
}

func newViper(path string) (*viper.Viper, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolved := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG")); resolved == "" && envPath != "" {
		resolved = envPath
	}

	if resolved != "" {
		expanded, err := expandPath(resolved)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", expanded, err)
		}
		return v, nil
	}

	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, dir := range globalConfigDirs() {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("storage.data_dir", def.Storage.DataDir)
	v.SetDefault("monitor.enabled", def.Monitor.Enabled)
	v.SetDefault("monitor.poll_interval", def.Monitor.PollInterval)
	v.SetDefault("monitor.clipboard", def.Monitor.Clipboard)
	v.SetDefault("retention.interval", def.Retention.Interval)
	v.SetDefault("retention.orphan_grace", def.Retention.OrphanGrace)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadDotEnv 读取当前目录的 .env；已存在的环境变量不被覆盖
// loadDotEnv reads ./.env if present without overriding the real environment
func loadDotEnv() error {
	if _, err := os.Stat(DotEnvFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", DotEnvFile, err)
	}
	if err := godotenv.Load(DotEnvFile); err != nil {
		return fmt.Errorf("load %s: %w", DotEnvFile, err)
	}
	return nil
}

func globalConfigDirs() []string {
	var dirs []string
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, AppName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "."+AppName))
	}
	return dirs
}

func normalize(cfg *Config) error {
	dataDir := cfg.Storage.DataDir
	if strings.TrimSpace(dataDir) == "" {
		dataDir = DefaultDataDir
	}
	expanded, err := expandPath(dataDir)
	if err != nil {
		return err
	}
	cfg.Storage.DataDir = expanded

	if cfg.Monitor.PollInterval <= 0 {
		cfg.Monitor.PollInterval = DefaultPollInterval
	}
	if cfg.Monitor.PollInterval < MinPollInterval {
		return fmt.Errorf("monitor.poll_interval must be at least %s, got %s", MinPollInterval, cfg.Monitor.PollInterval)
	}
	cfg.Monitor.Clipboard = strings.ToLower(strings.TrimSpace(cfg.Monitor.Clipboard))
	switch cfg.Monitor.Clipboard {
	case "":
		cfg.Monitor.Clipboard = ClipboardAuto
	case ClipboardAuto, ClipboardNative, ClipboardCommand:
	default:
		return fmt.Errorf("monitor.clipboard must be one of %s, %s, %s; got %q",
			ClipboardAuto, ClipboardNative, ClipboardCommand, cfg.Monitor.Clipboard)
	}

	if cfg.Retention.Interval <= 0 {
		cfg.Retention.Interval = DefaultRetentionInterval
	}
	if cfg.Retention.OrphanGrace <= 0 {
		cfg.Retention.OrphanGrace = DefaultOrphanGrace
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	switch cfg.Log.Level {
	case "":
		cfg.Log.Level = "info"
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error; got %q", cfg.Log.Level)
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Log.Format != "json" {
		cfg.Log.Format = "text"
	}
	return nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}
