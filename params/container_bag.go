package params

import (
	"strings"
	"sync"
)

// ServiceResolver 容器侧的最小解析接口
// 由 container.Container 实现，用于 @service 引用的取值
// 放在本包以避免 params -> container 的循环依赖
type ServiceResolver interface {
	Get(id string) (any, error)
	Has(id string) bool
}

// ContainerBag 关联容器的参数包
// 在 ParameterBag 之上增加：
//   - @service / %parameter% 单 token 替换（多 token 插值是 builder 值解析的职责）
//   - 按服务划分的参数映射
//   - 命名环境参数快照与 LoadEnvironment 合并
type ContainerBag struct {
	*ParameterBag

	container ServiceResolver

	// serviceParams 服务 id -> 该服务的专属参数
	serviceParams map[string]map[string]any

	// environments 环境名 -> 参数快照，LoadEnvironment 时合入主参数空间
	environments map[string]map[string]any

	mu sync.RWMutex
}

// NewContainerBag 创建容器参数包
func NewContainerBag(initial ...map[string]any) *ContainerBag {
	return &ContainerBag{
		ParameterBag:  NewParameterBag(initial...),
		serviceParams: make(map[string]map[string]any),
		environments:  make(map[string]map[string]any),
	}
}

// SetContainer 设置容器回引，nil 表示断开
func (b *ContainerBag) SetContainer(c ServiceResolver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.container = c
}

// Get 获取参数值并应用引用替换
// 值为 "@id" 时解析为容器内的服务，值为 "%name%" 时解析为另一参数；
// 引用无法解析时原样返回 token，而不是报错
func (b *ContainerBag) Get(name string) (any, error) {
	value, err := b.ParameterBag.Get(name)
	if err != nil {
		return nil, err
	}
	return b.substitute(value), nil
}

// GetWithDefault 同 Get，但参数不存在时返回默认值
func (b *ContainerBag) GetWithDefault(name string, defaultValue any) any {
	if !b.Has(name) {
		return defaultValue
	}
	value, err := b.Get(name)
	if err != nil {
		return defaultValue
	}
	return value
}

// substitute 单 token 的 @service / %parameter% 替换
func (b *ContainerBag) substitute(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}

	if strings.HasPrefix(s, "@") && len(s) > 1 {
		b.mu.RLock()
		c := b.container
		b.mu.RUnlock()
		if c != nil {
			if svc, err := c.Get(s[1:]); err == nil {
				return svc
			}
		}
		return s
	}

	if len(s) > 2 && strings.HasPrefix(s, "%") && strings.HasSuffix(s, "%") {
		inner := s[1 : len(s)-1]
		// 仅整串恰好是一个 token 时替换，内部再出现 % 则不是单 token
		if inner != "" && !strings.Contains(inner, "%") {
			return b.ParameterBag.GetWithDefault(inner, s)
		}
	}

	return value
}

// SetServiceParameters 设置某个服务的专属参数映射
func (b *ContainerBag) SetServiceParameters(serviceID string, values map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	b.serviceParams[serviceID] = copied
}

// ServiceParameters 返回某个服务的专属参数映射（副本）
func (b *ContainerBag) ServiceParameters(serviceID string) map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	src := b.serviceParams[serviceID]
	result := make(map[string]any, len(src))
	for k, v := range src {
		result[k] = v
	}
	return result
}

// SetEnvironmentParameters 暂存一份命名环境的参数快照
func (b *ContainerBag) SetEnvironmentParameters(env string, values map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	b.environments[env] = copied
}

// LoadEnvironment 将命名环境快照合并到主参数空间，同名覆盖
// 环境未注册时返回 ParameterNotFoundError
func (b *ContainerBag) LoadEnvironment(env string) error {
	b.mu.RLock()
	snapshot, ok := b.environments[env]
	b.mu.RUnlock()
	if !ok {
		return &ParameterNotFoundError{Name: "environment:" + env}
	}
	b.SetMany(snapshot)
	return nil
}

// Environments 返回已注册的环境名列表
func (b *ContainerBag) Environments() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.environments))
	for name := range b.environments {
		names = append(names, name)
	}
	return names
}
