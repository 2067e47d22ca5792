package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath     = "config/config.yaml"
	configPathEnv         = "MODEL_EXPERIMENTS_CONFIG"
	defaultBackendBaseURL = "http://127.0.0.1:9000"
	defaultBackendTimeout = 30 * time.Minute
	defaultRegistryPath   = "experiments.db"
	defaultServerPort     = 8080
	defaultExperimentsDir = "experiments"
)

type Config struct {
	Server         ServerConfig          `yaml:"server"`
	Log            LogConfig             `yaml:"log"`
	Registry       RegistryConfig        `yaml:"registry"`
	Backend        BackendConfig         `yaml:"backend"`
	Redis          RedisConfig           `yaml:"redis"`
	StorageServers []StorageServerConfig `yaml:"storage_servers"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// ExperimentsDir 浏览模式下 /reports 静态路由指向的实验输出根目录
	ExperimentsDir string `yaml:"experiments_dir"`
}

type LogConfig struct {
	Path string `yaml:"path"`
}

// RegistryConfig 本地实验登记库（sqlite 文件）
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// BackendConfig 指向执行训练/推理的 ML runner 服务
type BackendConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	DefaultRunner  string `yaml:"default_runner"`
}

func (c BackendConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultBackendTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageServerConfig 模型上传目标机器（ssh/sftp）
type StorageServerConfig struct {
	Name           string `yaml:"name"`
	IP             string `yaml:"ip"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	PrivateKeyPath string `yaml:"private_key_path"`
	RemoteRoot     string `yaml:"remote_root"`
}

var AppConfig *Config

func defaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: defaultServerPort, ExperimentsDir: defaultExperimentsDir},
		Log:      LogConfig{Path: "logs/app.log"},
		Registry: RegistryConfig{Path: defaultRegistryPath},
		Backend:  BackendConfig{BaseURL: defaultBackendBaseURL},
	}
}

// InitConfig loads the YAML config file. A missing file is not an error: the
// CLI must work with zero setup, so defaults are used instead.
func InitConfig() error {
	path := os.Getenv(configPathEnv)
	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			AppConfig = defaultConfig()
			return nil
		}
		return fmt.Errorf("read config file failed: %v", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal config failed: %v", err)
	}

	AppConfig = cfg
	return nil
}
