package params

import (
	"fmt"
	"sort"
	"sync"
)

// ParameterBag 扁平参数存储（类似 Symfony ParameterBag）
// key 为字符串，value 为任意类型，供容器在 %name% 替换时消费
type ParameterBag struct {
	params map[string]any
	mu     sync.RWMutex
}

// NewParameterBag 创建参数包
func NewParameterBag(initial ...map[string]any) *ParameterBag {
	bag := &ParameterBag{
		params: make(map[string]any),
	}
	for _, m := range initial {
		for k, v := range m {
			bag.params[k] = v
		}
	}
	return bag
}

// Set 设置参数值
func (b *ParameterBag) Set(name string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params[name] = value
}

// SetMany 批量设置参数
func (b *ParameterBag) SetMany(values map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range values {
		b.params[k] = v
	}
}

// Get 获取参数值
// 参数不存在时返回 ParameterNotFoundError，而不是默认值
func (b *ParameterBag) Get(name string) (any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	value, ok := b.params[name]
	if !ok {
		return nil, &ParameterNotFoundError{Name: name}
	}
	return value, nil
}

// GetWithDefault 获取参数值，不存在则返回默认值，永不失败
func (b *ParameterBag) GetWithDefault(name string, defaultValue any) any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if value, ok := b.params[name]; ok {
		return value
	}
	return defaultValue
}

// Has 判断参数是否存在
func (b *ParameterBag) Has(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.params[name]
	return ok
}

// Remove 删除参数
func (b *ParameterBag) Remove(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.params, name)
}

// All 返回所有参数的副本
func (b *ParameterBag) All() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make(map[string]any, len(b.params))
	for k, v := range b.params {
		result[k] = v
	}
	return result
}

// Keys 返回排序后的参数名列表
func (b *ParameterBag) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.params))
	for k := range b.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear 清空所有参数
func (b *ParameterBag) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params = make(map[string]any)
}

// Count 返回参数数量
func (b *ParameterBag) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.params)
}

// Resolve 获取参数并强制转换为指定类型
// 支持的类型见 ParamType，转换失败返回 ParameterError
func (b *ParameterBag) Resolve(name string, typ ParamType) (any, error) {
	value, err := b.Get(name)
	if err != nil {
		return nil, err
	}
	return coerce(name, value, typ)
}

// ParameterNotFoundError 参数不存在
type ParameterNotFoundError struct {
	Name string
}

func (e *ParameterNotFoundError) Error() string {
	return fmt.Sprintf("params: parameter %q not found", e.Name)
}

// ParameterError 参数类型转换或校验失败
type ParameterError struct {
	Name  string
	Value any
	Msg   string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("params: parameter %q: %s", e.Name, e.Msg)
}
