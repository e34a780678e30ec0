package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaphl/injection/builder"
	"github.com/flaphl/injection/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderYAMLFile(t *testing.T) {
	path := writeFile(t, "app.yaml", `
parameters:
  app.name: demo
services:
  mailer:
    class: mailer.smtp
`)

	loader := config.NewLoader().AddYAMLFile(path)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Parameters["app.name"])
	assert.Equal(t, "mailer.smtp", cfg.Services["mailer"].Class)
}

func TestLoaderJSONFile(t *testing.T) {
	path := writeFile(t, "app.json", `{"parameters":{"k":"v"}}`)

	cfg, err := config.NewLoader().AddJSONFile(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "v", cfg.Parameters["k"])
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := config.NewLoader().AddYAMLFile("/does/not/exist.yaml").Load()
	assert.Error(t, err)

	// optional 文件缺失时跳过
	cfg, err := config.NewLoader().AddYAMLFile("/does/not/exist.yaml", true).Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Parameters)
}

func TestLoaderMergeOrder(t *testing.T) {
	base := writeFile(t, "base.yaml", `
parameters:
  app.env: dev
  app.debug: true
`)

	loader := config.NewLoader().
		AddYAMLFile(base).
		AddInMemory(&builder.Config{Parameters: map[string]any{"app.env": "prod"}})

	cfg, err := loader.Load()
	require.NoError(t, err)

	// 后添加的源覆盖先添加的
	assert.Equal(t, "prod", cfg.Parameters["app.env"])
	assert.Equal(t, true, cfg.Parameters["app.debug"])
}

func TestEnvironmentSource(t *testing.T) {
	t.Setenv("MYAPP_DATABASE_DSN", "file::memory:")
	t.Setenv("MYAPP_POOL_SIZE", "10")
	t.Setenv("OTHER_KEY", "ignored")

	cfg, err := config.NewLoader().AddEnvironment("MYAPP").Load()
	require.NoError(t, err)

	assert.Equal(t, "file::memory:", cfg.Parameters["database.dsn"])
	// 数字字符串猜测为 int
	assert.Equal(t, 10, cfg.Parameters["pool.size"])
	assert.NotContains(t, cfg.Parameters, "other.key")
}

func TestLoaderApply(t *testing.T) {
	loader := config.NewLoader().AddInMemory(&builder.Config{
		Parameters: map[string]any{"greeting": "hi"},
	})

	b := builder.NewContainerBuilder()
	require.NoError(t, loader.Apply(b))

	c, err := b.Build()
	require.NoError(t, err)

	v, err := c.GetParameter("greeting")
	require.NoError(t, err)
	assert.Equal(t, "hi", v)
}
