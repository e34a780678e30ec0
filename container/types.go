package container

import (
	"fmt"
	"reflect"
	"sync"
)

// typeEntry 类型注册表中的一项
// 要么是可实例化（或不可实例化，如接口）的类型，要么是构造函数
type typeEntry struct {
	rtype reflect.Type
	ctor  reflect.Value // 有效时表示以构造函数方式实例化
}

// TypeRegistry 类名到 Go 类型/构造函数的映射
// 源模型里 "把 id 当类名反射" 的一步在 Go 侧落到这里：
// 没有运行时类查找，所有可按名实例化的类型必须先注册
type TypeRegistry struct {
	mu      sync.RWMutex
	entries map[string]*typeEntry
	byType  map[reflect.Type]string
}

// NewTypeRegistry 创建类型注册表
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		entries: make(map[string]*typeEntry),
		byType:  make(map[reflect.Type]string),
	}
}

// Register 注册一个类名
// prototype 支持三种形式：
//  1. reflect.Type            -> 直接登记该类型
//  2. 构造函数 func(...) (T, error?) -> 按构造函数实例化，服务类型取第一个返回值
//  3. 任意值（通常是 *Struct 零值）-> 登记其动态类型
func (r *TypeRegistry) Register(name string, prototype any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &typeEntry{}

	switch p := prototype.(type) {
	case reflect.Type:
		entry.rtype = p
	default:
		v := reflect.ValueOf(prototype)
		if !v.IsValid() {
			return &ContainerError{Msg: fmt.Sprintf("cannot register type %q from nil prototype", name)}
		}
		if v.Kind() == reflect.Func {
			fnType := v.Type()
			if fnType.NumOut() == 0 {
				return &ContainerError{Msg: fmt.Sprintf("constructor for %q must return at least one value", name)}
			}
			entry.ctor = v
			entry.rtype = fnType.Out(0)
		} else {
			entry.rtype = v.Type()
		}
	}

	r.entries[name] = entry
	r.byType[entry.rtype] = name
	return nil
}

// Lookup 按类名取回注册项
func (r *TypeRegistry) Lookup(name string) (*typeEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry, ok
}

// NameOf 反查某个 Go 类型注册时使用的类名
func (r *TypeRegistry) NameOf(t reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byType[t]
	return name, ok
}

// Has 判断类名是否已注册
func (r *TypeRegistry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// instantiable 判断注册项是否可实例化
// 接口类型没有构造函数时等价于源模型中的 abstract/interface
func (e *typeEntry) instantiable() bool {
	if e.ctor.IsValid() {
		return true
	}
	t := e.rtype
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() != reflect.Interface
}

// Constructor 返回注册的构造函数（若有）
func (e *typeEntry) Constructor() (reflect.Value, bool) {
	return e.ctor, e.ctor.IsValid()
}

// StructType 返回注册的类型及其是否可实例化
func (e *typeEntry) StructType() (reflect.Type, bool) {
	return e.rtype, e.instantiable()
}
