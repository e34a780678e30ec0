package config

import (
	"fmt"
	"sync"

	"github.com/flaphl/injection/builder"
)

// Source 配置源接口
// 每个源产出一份 {parameters, services} 形状的配置片段
type Source interface {
	Load() (*builder.Config, error)
	Name() string
}

// Loader 配置加载器
// 按添加顺序加载所有源（后面的覆盖前面的），合并后经
// RegisterFromConfig 落到 ContainerBuilder 上
type Loader struct {
	sources []Source
	mu      sync.RWMutex
}

// NewLoader 创建加载器
func NewLoader() *Loader {
	return &Loader{}
}

// Add 添加配置源
func (l *Loader) Add(source Source) *Loader {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources = append(l.sources, source)
	return l
}

// AddYAMLFile 添加 YAML 文件源
func (l *Loader) AddYAMLFile(path string, optional ...bool) *Loader {
	return l.Add(&YAMLFileSource{Path: path, Optional: len(optional) > 0 && optional[0]})
}

// AddJSONFile 添加 JSON 文件源
func (l *Loader) AddJSONFile(path string, optional ...bool) *Loader {
	return l.Add(&JSONFileSource{Path: path, Optional: len(optional) > 0 && optional[0]})
}

// AddEnvironment 添加环境变量源（仅产出参数）
func (l *Loader) AddEnvironment(prefix string) *Loader {
	return l.Add(&EnvironmentSource{Prefix: prefix})
}

// AddInMemory 添加内存源
func (l *Loader) AddInMemory(cfg *builder.Config) *Loader {
	return l.Add(&InMemorySource{Config: cfg})
}

// AddEtcd 添加 etcd 源（仅产出参数）
func (l *Loader) AddEtcd(opts EtcdOptions) *Loader {
	return l.Add(NewEtcdSource(opts))
}

// Load 依序加载并合并所有源
func (l *Loader) Load() (*builder.Config, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	merged := &builder.Config{
		Parameters: make(map[string]any),
		Services:   make(map[string]builder.ServiceSpec),
	}
	for _, source := range l.sources {
		cfg, err := source.Load()
		if err != nil {
			return nil, fmt.Errorf("config: failed to load source %s: %w", source.Name(), err)
		}
		merged.Merge(cfg)
	}
	return merged, nil
}

// Apply 加载并注册到构建器
func (l *Loader) Apply(b *builder.ContainerBuilder) error {
	cfg, err := l.Load()
	if err != nil {
		return err
	}
	return b.RegisterFromConfig(cfg)
}
