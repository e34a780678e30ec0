package container

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/flaphl/injection/params"
)

// Factory 工厂函数：由容器调用以产出服务实例
// params 是本次解析时调用方显式传入的覆盖参数
type Factory func(c *Container, params map[string]any) (any, error)

// Extender 装饰器：包装已解析出的实例
type Extender func(instance any, c *Container) any

// binding 一条注册记录：concrete + 是否共享
type binding struct {
	concrete any
	shared   bool
}

// Container 解析引擎
// 绑定表、单例缓存、别名表、类型注册表和扁平参数存储各自独立。
// 构建栈挂在容器上并与其余状态共用一把锁：工厂内部再调 Get 解析
// 其他服务时会延续同一个栈，跨工厂的循环引用因此可被发现
type Container struct {
	mu         sync.RWMutex
	bindings   map[string]*binding
	instances  map[string]any
	aliases    map[string]string
	resolved   map[string]bool
	parameters map[string]any
	extenders  map[string][]Extender
	tagged     map[string][]string
	buildStack []string
	types      *TypeRegistry
}

// New 创建空容器
func New() *Container {
	return &Container{
		bindings:   make(map[string]*binding),
		instances:  make(map[string]any),
		aliases:    make(map[string]string),
		resolved:   make(map[string]bool),
		parameters: make(map[string]any),
		extenders:  make(map[string][]Extender),
		tagged:     make(map[string][]string),
		types:      NewTypeRegistry(),
	}
}

// ── 注册 ─────────────────────────────────────────────────────────

// Bind 注册瞬态绑定（每次 Make 产出新实例）
// 会清除该 id 之前缓存的单例实例和直接注册的实例
func (c *Container) Bind(id string, concrete any) {
	c.bind(id, concrete, false)
}

// Singleton 注册共享绑定（首次构建后缓存复用）
func (c *Container) Singleton(id string, concrete any) {
	c.bind(id, concrete, true)
}

func (c *Container) bind(id string, concrete any, shared bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.canonicalLocked(id)
	delete(c.instances, key)
	delete(c.resolved, key)
	c.bindings[key] = &binding{concrete: concrete, shared: shared}
}

// Instance 直接登记现成对象
// 之后对该 id 的 Get/Make 不再经过任何工厂，直到被重新注册覆盖
func (c *Container) Instance(id string, instance any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.canonicalLocked(id)
	delete(c.bindings, key)
	c.instances[key] = instance
}

// Unbind 移除 id 的绑定、单例缓存和直接实例
func (c *Container) Unbind(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.canonicalLocked(id)
	delete(c.bindings, key)
	delete(c.instances, key)
	delete(c.resolved, key)
}

// Alias 为已有 id 注册别名
func (c *Container) Alias(id, alias string) {
	if id == alias {
		panic(fmt.Sprintf("container: [%s] is aliased to itself", id))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aliases[alias] = id
}

// RegisterType 向类型注册表登记一个类名
// 之后该名字可以作为绑定的 concrete 或直接作为服务 id 解析
func (c *Container) RegisterType(name string, prototype any) error {
	return c.types.Register(name, prototype)
}

// Types 暴露类型注册表（builder 编译期需要）
func (c *Container) Types() *TypeRegistry {
	return c.types
}

// ── 查询 ─────────────────────────────────────────────────────────

// Has 判断 id 是否已注册（绑定、实例或已注册类名均算）
func (c *Container) Has(id string) bool {
	c.mu.RLock()
	key := c.canonicalLocked(id)
	_, hasBinding := c.bindings[key]
	_, hasInstance := c.instances[key]
	c.mu.RUnlock()
	return hasBinding || hasInstance || c.types.Has(key)
}

// Resolved 判断 id 是否已被成功解析过至少一次
func (c *Container) Resolved(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolved[c.canonicalLocked(id)]
}

// ── 解析 ─────────────────────────────────────────────────────────

// Get PSR 风格入口：等价于 Make(id)
func (c *Container) Get(id string) (any, error) {
	return c.resolve(id, nil)
}

// Make 解析服务
func (c *Container) Make(id string) (any, error) {
	return c.resolve(id, nil)
}

// MakeWith 解析服务，parameters 按名覆盖构造依赖
// 结构体注入时键匹配字段名，构造函数时按可赋值类型匹配
func (c *Container) MakeWith(id string, parameters map[string]any) (any, error) {
	return c.resolve(id, parameters)
}

// MakeFor 显式的上下文解析：若存在 "consumer::abstraction" 复合键
// 下的上下文绑定则优先使用，否则回落到普通解析
func (c *Container) MakeFor(consumer, abstraction string) (any, error) {
	composite := contextualKey(consumer, abstraction)
	c.mu.RLock()
	_, ok := c.bindings[composite]
	c.mu.RUnlock()
	if ok {
		return c.resolve(composite, nil)
	}
	return c.resolve(abstraction, nil)
}

// resolve 核心解析算法
func (c *Container) resolve(id string, parameters map[string]any) (any, error) {
	c.mu.Lock()
	key := c.canonicalLocked(id)

	// 1. 循环检测：id 不允许在构建栈中出现第二次
	for _, s := range c.buildStack {
		if s == key {
			path := make([]string, 0, len(c.buildStack)+1)
			path = append(path, c.buildStack...)
			path = append(path, key)
			c.mu.Unlock()
			return nil, &CircularReferenceError{Path: path}
		}
	}

	// 2. 现成实例直接返回，无需进栈
	if instance, ok := c.instances[key]; ok {
		c.mu.Unlock()
		return instance, nil
	}
	b := c.bindings[key]

	// 3. 进栈；无论成功失败，本层返回前必然出栈
	c.buildStack = append(c.buildStack, key)
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.buildStack = c.buildStack[:len(c.buildStack)-1]
		c.mu.Unlock()
	}()

	// 4. 确定 concrete：绑定值，否则把 id 本身当类名（隐式自动绑定）
	var concrete any
	shared := false
	if b != nil {
		concrete = b.concrete
		shared = b.shared
	} else {
		concrete = key
	}

	// 5. 构建
	instance, err := c.build(key, concrete, parameters)
	if err != nil {
		return nil, err
	}

	instance = c.applyExtenders(key, instance)

	// 6. 共享绑定缓存首个实例，并记录已解析
	c.mu.Lock()
	if shared {
		c.instances[key] = instance
	}
	c.resolved[key] = true
	c.mu.Unlock()

	return instance, nil
}

// build 按 concrete 的形态分派构建方式
func (c *Container) build(id string, concrete any, parameters map[string]any) (any, error) {
	switch v := concrete.(type) {
	case Factory:
		return v(c, parameters)
	case func(*Container, map[string]any) (any, error):
		return v(c, parameters)
	case func(*Container) (any, error):
		return v(c)
	case func(*Container) any:
		return v(c), nil
	case string:
		return c.buildClass(id, v, parameters)
	case reflect.Type:
		return c.buildType(id, v, parameters)
	default:
		rv := reflect.ValueOf(concrete)
		if rv.IsValid() && rv.Kind() == reflect.Func {
			return c.invoke(rv, parameters, id)
		}
		// 已经是现成对象，原样返回
		return concrete, nil
	}
}

// buildClass 将类名经类型注册表实例化
func (c *Container) buildClass(id, className string, parameters map[string]any) (any, error) {
	entry, ok := c.types.Lookup(className)
	if !ok {
		return nil, &NotFoundError{ID: id, Reason: fmt.Sprintf("class %q is not registered", className)}
	}
	if !entry.instantiable() {
		return nil, &NotFoundError{ID: id, Reason: fmt.Sprintf("class %q is not instantiable", className)}
	}
	if entry.ctor.IsValid() {
		return c.invoke(entry.ctor, parameters, id)
	}
	return c.buildType(id, entry.rtype, parameters)
}

// buildType 以结构体反射方式实例化并注入 inject 标签字段
func (c *Container) buildType(id string, t reflect.Type, parameters map[string]any) (any, error) {
	structType := t
	wantPtr := false
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
		wantPtr = true
	}
	if structType.Kind() == reflect.Interface {
		return nil, &NotFoundError{ID: id, Reason: fmt.Sprintf("type %v is not instantiable", t)}
	}
	if structType.Kind() != reflect.Struct {
		// 非结构体类型没有可注入的依赖，直接零值
		v := reflect.New(structType)
		if wantPtr {
			return v.Interface(), nil
		}
		return v.Elem().Interface(), nil
	}

	v := reflect.New(structType)
	if err := c.injectFields(id, v.Elem(), parameters); err != nil {
		return nil, err
	}

	if wantPtr {
		return v.Interface(), nil
	}
	return v.Elem().Interface(), nil
}

// injectFields 结构体字段注入
// 解析顺序与构造参数一致：显式参数按字段名 > 递归解析 > optional 置零 > 报错
func (c *Container) injectFields(id string, structVal reflect.Value, parameters map[string]any) error {
	structType := structVal.Type()
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)

		// 显式参数按字段名覆盖，任何可导出字段都接受
		if override, ok := parameters[field.Name]; ok {
			fv := structVal.Field(i)
			if !fv.CanSet() {
				return &ContainerError{Msg: fmt.Sprintf("service %q: field %s is not settable", id, field.Name)}
			}
			ov := reflect.ValueOf(override)
			if !ov.IsValid() || !ov.Type().AssignableTo(field.Type) {
				return &NotFoundError{ID: id, Reason: fmt.Sprintf("explicit parameter %q is not assignable to field %s", field.Name, field.Name)}
			}
			fv.Set(ov)
			continue
		}

		tagValue, hasTag := field.Tag.Lookup("inject")
		if !hasTag {
			continue
		}

		depID, optional := parseInjectTag(tagValue)
		if depID == "" {
			name, ok := c.types.NameOf(field.Type)
			if !ok {
				if optional || nilable(field.Type.Kind()) {
					continue
				}
				return &NotFoundError{ID: id, Reason: fmt.Sprintf("cannot resolve field %s (%v): type is not registered", field.Name, field.Type)}
			}
			depID = name
		}

		dep, err := c.resolve(depID, nil)
		if err != nil {
			if optional {
				continue
			}
			return err
		}

		fv := structVal.Field(i)
		if !fv.CanSet() {
			return &ContainerError{Msg: fmt.Sprintf("service %q: field %s is not settable", id, field.Name)}
		}
		dv := reflect.ValueOf(dep)
		if !dv.IsValid() || !dv.Type().AssignableTo(field.Type) {
			return &NotFoundError{ID: id, Reason: fmt.Sprintf("service %q is not assignable to field %s (%v)", depID, field.Name, field.Type)}
		}
		fv.Set(dv)
	}
	return nil
}

// Autowire 对现成的结构体指针执行 inject 标签字段注入
// builder 在执行服务定义的 autowire 阶段使用，也可独立调用
func (c *Container) Autowire(id string, structPtr any, parameters map[string]any) error {
	v := reflect.ValueOf(structPtr)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return &ContainerError{Msg: fmt.Sprintf("Autowire expects a struct pointer, got %T", structPtr)}
	}
	return c.injectFields(id, v.Elem(), parameters)
}

// applyExtenders 依注册顺序应用装饰器
func (c *Container) applyExtenders(id string, instance any) any {
	c.mu.RLock()
	exts := c.extenders[id]
	c.mu.RUnlock()
	for _, ext := range exts {
		instance = ext(instance, c)
	}
	return instance
}

// Extend 为 id 注册装饰器；若单例已缓存则就地重新包装
func (c *Container) Extend(id string, fn Extender) {
	c.mu.Lock()
	key := c.canonicalLocked(id)
	c.extenders[key] = append(c.extenders[key], fn)
	if instance, ok := c.instances[key]; ok {
		c.instances[key] = fn(instance, c)
	}
	c.mu.Unlock()
}

// ── 标签 ─────────────────────────────────────────────────────────

// Tag 把一组服务 id 归入命名分组
func (c *Container) Tag(ids []string, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		key := c.canonicalLocked(id)
		exists := false
		for _, t := range c.tagged[tag] {
			if t == key {
				exists = true
				break
			}
		}
		if !exists {
			c.tagged[tag] = append(c.tagged[tag], key)
		}
	}
}

// Tagged 解析某个标签下的全部服务
func (c *Container) Tagged(tag string) ([]any, error) {
	c.mu.RLock()
	ids := make([]string, len(c.tagged[tag]))
	copy(ids, c.tagged[tag])
	c.mu.RUnlock()

	result := make([]any, 0, len(ids))
	for _, id := range ids {
		instance, err := c.Make(id)
		if err != nil {
			return nil, err
		}
		result = append(result, instance)
	}
	return result, nil
}

// TaggedIDs 返回某个标签下的服务 id 列表
func (c *Container) TaggedIDs(tag string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.tagged[tag]))
	copy(out, c.tagged[tag])
	return out
}

// ── 参数存储 ─────────────────────────────────────────────────────

// SetParameter 设置参数（独立于绑定表的扁平键值存储）
func (c *Container) SetParameter(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parameters[name] = value
}

// GetParameter 获取参数，不存在时报错
func (c *Container) GetParameter(name string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.parameters[name]
	if !ok {
		return nil, &params.ParameterNotFoundError{Name: name}
	}
	return value, nil
}

// GetParameterDefault 获取参数，不存在时返回默认值
func (c *Container) GetParameterDefault(name string, defaultValue any) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if value, ok := c.parameters[name]; ok {
		return value
	}
	return defaultValue
}

// HasParameter 判断参数是否存在
func (c *Container) HasParameter(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.parameters[name]
	return ok
}

// ── 维护 ─────────────────────────────────────────────────────────

// ForgetInstance 仅移除缓存的实例，保留绑定
func (c *Container) ForgetInstance(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.canonicalLocked(id)
	delete(c.instances, key)
	delete(c.resolved, key)
}

// Flush 重置容器（类型注册表保留）
func (c *Container) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = make(map[string]*binding)
	c.instances = make(map[string]any)
	c.aliases = make(map[string]string)
	c.resolved = make(map[string]bool)
	c.parameters = make(map[string]any)
	c.extenders = make(map[string][]Extender)
	c.tagged = make(map[string][]string)
	c.buildStack = nil
}

// canonicalLocked 追别名链到规范 id（调用方需持有锁）
func (c *Container) canonicalLocked(id string) string {
	seen := 0
	for {
		target, ok := c.aliases[id]
		if !ok {
			return id
		}
		id = target
		seen++
		if seen > len(c.aliases) {
			// 别名成环，停在当前值
			return id
		}
	}
}

func nilable(k reflect.Kind) bool {
	switch k {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return true
	}
	return false
}

// parseInjectTag 解析 `inject:"name,option"` 形式的标签
// name 为 "?" 或 "optional" 时视为匿名可选注入
func parseInjectTag(tag string) (id string, optional bool) {
	parts := strings.Split(tag, ",")
	id = strings.TrimSpace(parts[0])
	if id == "?" || id == "optional" {
		id = ""
		optional = true
	}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "optional" || p == "?" {
			optional = true
		}
	}
	return id, optional
}
