package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flaphl/injection/builder"
)

// YAMLFileSource YAML 文件配置源
type YAMLFileSource struct {
	Path     string
	Optional bool
}

func (s *YAMLFileSource) Name() string {
	return fmt.Sprintf("YAMLFile(%s)", s.Path)
}

func (s *YAMLFileSource) Load() (*builder.Config, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if s.Optional && os.IsNotExist(err) {
			return &builder.Config{}, nil
		}
		return nil, err
	}

	var cfg builder.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// JSONFileSource JSON 文件配置源
type JSONFileSource struct {
	Path     string
	Optional bool
}

func (s *JSONFileSource) Name() string {
	return fmt.Sprintf("JSONFile(%s)", s.Path)
}

func (s *JSONFileSource) Load() (*builder.Config, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if s.Optional && os.IsNotExist(err) {
			return &builder.Config{}, nil
		}
		return nil, err
	}

	var cfg builder.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &cfg, nil
}

// InMemorySource 内存配置源
type InMemorySource struct {
	Config *builder.Config
}

func (s *InMemorySource) Name() string {
	return "InMemory"
}

func (s *InMemorySource) Load() (*builder.Config, error) {
	if s.Config == nil {
		return &builder.Config{}, nil
	}
	return s.Config, nil
}

// EnvironmentSource 环境变量配置源，仅产出参数
// FLAPHL_DATABASE_DSN=... -> 参数 database.dsn
type EnvironmentSource struct {
	Prefix string
}

func (s *EnvironmentSource) Name() string {
	return fmt.Sprintf("Environment(%s)", s.Prefix)
}

func (s *EnvironmentSource) Load() (*builder.Config, error) {
	cfg := &builder.Config{Parameters: make(map[string]any)}

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]

		if s.Prefix != "" {
			if !strings.HasPrefix(key, s.Prefix) {
				continue
			}
			key = strings.TrimPrefix(key, s.Prefix)
			key = strings.TrimPrefix(key, "_")
		}
		if key == "" {
			continue
		}

		// DATABASE_DSN -> database.dsn
		key = strings.ToLower(strings.ReplaceAll(key, "_", "."))
		cfg.Parameters[key] = guessScalar(value)
	}

	return cfg, nil
}

// guessScalar 把字符串值猜测为数字 / 布尔 / 原样字符串
func guessScalar(value string) any {
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}
