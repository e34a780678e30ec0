package builder

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config 加载器边界的配置形状
// 各文件/环境加载器产出这一结构，RegisterFromConfig 统一消费
type Config struct {
	Parameters map[string]any         `yaml:"parameters" json:"parameters"`
	Services   map[string]ServiceSpec `yaml:"services" json:"services"`
}

// ServiceSpec 单个服务的配置
// 在 YAML/JSON 里既可以是裸类名字符串，也可以是携带装配细节的映射
type ServiceSpec struct {
	Class      string           `yaml:"class" json:"class"`
	Arguments  []any            `yaml:"arguments" json:"arguments"`
	Calls      []CallSpec       `yaml:"calls" json:"calls"`
	Properties map[string]any   `yaml:"properties" json:"properties"`
	Tags       map[string]map[string]any `yaml:"tags" json:"tags"`
	Public     *bool            `yaml:"public" json:"public"`
	Shared     *bool            `yaml:"shared" json:"shared"`
	Autowire   bool             `yaml:"autowire" json:"autowire"`
}

// CallSpec 一次方法调用的配置
type CallSpec struct {
	Method    string `yaml:"method" json:"method"`
	Arguments []any  `yaml:"arguments" json:"arguments"`
}

// UnmarshalYAML 允许裸类名标量写法
func (s *ServiceSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var class string
		if err := node.Decode(&class); err != nil {
			return err
		}
		s.Class = class
		return nil
	}

	type plain ServiceSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = ServiceSpec(p)
	return nil
}

// UnmarshalJSON 允许裸类名字符串写法
func (s *ServiceSpec) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var class string
		if err := json.Unmarshal(data, &class); err != nil {
			return err
		}
		s.Class = class
		return nil
	}

	type plain ServiceSpec
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = ServiceSpec(p)
	return nil
}

// Merge 叠加另一份配置：参数逐键覆盖，服务整条覆盖
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if c.Parameters == nil {
		c.Parameters = make(map[string]any)
	}
	for k, v := range other.Parameters {
		c.Parameters[k] = v
	}
	if c.Services == nil {
		c.Services = make(map[string]ServiceSpec)
	}
	for id, spec := range other.Services {
		c.Services[id] = spec
	}
}

// RegisterFromConfig 把配置形状落到参数和服务定义上
func (b *ContainerBuilder) RegisterFromConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("builder: nil config")
	}

	for name, value := range cfg.Parameters {
		b.SetParameter(name, value)
	}

	for id, spec := range cfg.Services {
		class := spec.Class
		if class == "" {
			class = id
		}
		def := b.Register(id, class)
		if len(spec.Arguments) > 0 {
			def.SetArguments(spec.Arguments...)
		}
		for _, call := range spec.Calls {
			def.AddMethodCall(call.Method, call.Arguments...)
		}
		for name, value := range spec.Properties {
			def.SetProperty(name, value)
		}
		for tag, attrs := range spec.Tags {
			def.AddTag(tag, attrs)
		}
		if spec.Public != nil {
			def.SetPublic(*spec.Public)
		}
		if spec.Shared != nil {
			def.SetShared(*spec.Shared)
		}
		def.SetAutowired(spec.Autowire)
	}

	return nil
}
