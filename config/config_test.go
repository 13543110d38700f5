package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv 清空会影响配置的环境变量
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_PATH", "OPENAI_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL_NAME",
		"SERPER_KEY", "PORT", "GIN_MODE", "STAGE_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 8000, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, "diagnosis_and_treatment_plan.docx", cfg.Export.Filename)
	assert.Equal(t, "Healthcare Diagnosis and Treatment Recommendations", cfg.Export.Heading)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `server:
  port: "9090"
llm:
  model: gpt-4o-mini
  api_key: file-key
  timeout: 2m
search:
  api_key: file-serper
pipeline:
  max_iterations: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("OPENAI_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "env-key", cfg.LLM.APIKey, "环境变量应覆盖配置文件")
	assert.Equal(t, "file-serper", cfg.Search.APIKey)
	assert.Equal(t, 2*time.Minute, cfg.LLM.Timeout)
	assert.Equal(t, 4, cfg.Pipeline.MaxIterations)
	// 未在文件中出现的字段保留默认值
	assert.Equal(t, "https://google.serper.dev", cfg.Search.APIURL)
}

func TestLoad_OpenAIKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "fallback")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.LLM.APIKey)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_MissingCredentials(t *testing.T) {
	tests := []struct {
		name      string
		llmKey    string
		searchKey string
		wantEnv   string
	}{
		{name: "missing llm key", llmKey: "", searchKey: "s", wantEnv: "OPENAI_KEY"},
		{name: "missing search key", llmKey: "k", searchKey: "", wantEnv: "SERPER_KEY"},
		{name: "blank llm key", llmKey: "   ", searchKey: "s", wantEnv: "OPENAI_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.LLM.APIKey = tt.llmKey
			cfg.Search.APIKey = tt.searchKey

			err := cfg.Validate()
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantEnv, cfgErr.Env)
		})
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKey = "k"
	cfg.Search.APIKey = "s"
	assert.NoError(t, cfg.Validate())
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)

	cfg := Default()
	cfg.Server.Port = "7070"
	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", loaded.Server.Port)
}
