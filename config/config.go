package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Search   SearchConfig   `yaml:"search"`
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Export   ExportConfig   `yaml:"export"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type LLMConfig struct {
	APIURL      string        `yaml:"api_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SearchConfig Serper 搜索服务配置
type SearchConfig struct {
	APIURL     string `yaml:"api_url"`
	APIKey     string `yaml:"api_key"`
	MaxResults int    `yaml:"max_results"`
}

// ScrapeConfig 网页抓取配置
type ScrapeConfig struct {
	MaxBytes int64         `yaml:"max_bytes"` // 读取网页的最大字节数
	MaxChars int           `yaml:"max_chars"` // 返回给模型的最大字符数
	Timeout  time.Duration `yaml:"timeout"`
}

// PipelineConfig 诊断/治疗流水线配置
type PipelineConfig struct {
	StageDir      string `yaml:"stage_dir"`      // 可选的阶段覆盖配置目录
	MaxIterations int    `yaml:"max_iterations"` // 单个阶段 Agent 的最大迭代次数
}

// ExportConfig 文档导出配置
type ExportConfig struct {
	Heading  string `yaml:"heading"`
	Filename string `yaml:"filename"`
}

type LogConfig struct {
	EinoCallbacks bool `yaml:"eino_callbacks"` // 是否注册 Eino 全局回调
}

// ConfigurationError 必需配置缺失，启动阶段致命
type ConfigurationError struct {
	Field string
	Env   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is required (set %s)", e.Field, e.Env)
}

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		LLM: LLMConfig{
			APIURL:      "https://api.openai.com/v1",
			Model:       "gpt-4o",
			MaxTokens:   8000,
			Temperature: 0.1,
			Timeout:     5 * time.Minute,
		},
		Search: SearchConfig{
			APIURL:     "https://google.serper.dev",
			MaxResults: 8,
		},
		Scrape: ScrapeConfig{
			MaxBytes: 2 << 20,
			MaxChars: 12000,
			Timeout:  30 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxIterations: 10,
		},
		Export: ExportConfig{
			Heading:  "Healthcare Diagnosis and Treatment Recommendations",
			Filename: "diagnosis_and_treatment_plan.docx",
		},
	}
}

// Load 加载配置：默认值 -> 配置文件 -> .env -> 环境变量
// path 为空时使用 CONFIG_PATH，仍为空则尝试 config.yaml
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		klog.V(6).Infof("[config.Load] 已加载配置文件: %s", path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil {
		klog.V(6).Infof("[config.Load] 未加载 .env: %v", err)
	}

	applyEnv(config)
	return config, nil
}

// applyEnv 环境变量优先级高于配置文件
func applyEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	} else if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}

	if serperKey := os.Getenv("SERPER_KEY"); serperKey != "" {
		config.Search.APIKey = serperKey
	}

	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		config.Server.Mode = mode
	}

	if stageDir := os.Getenv("STAGE_DIR"); stageDir != "" {
		config.Pipeline.StageDir = stageDir
	}
}

// Validate 校验必需的凭据
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return &ConfigurationError{Field: "llm.api_key", Env: "OPENAI_KEY"}
	}
	if strings.TrimSpace(c.Search.APIKey) == "" {
		return &ConfigurationError{Field: "search.api_key", Env: "SERPER_KEY"}
	}
	return nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
