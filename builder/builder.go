package builder

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/flaphl/injection/container"
	"github.com/flaphl/injection/logging"
	"github.com/flaphl/injection/params"
)

// ContainerBuilder 编译管线
// 持有内部容器、容器感知的参数包、服务定义表、标签索引和
// 带优先级的 pass 列表；Build 把定义编译成容器上的工厂绑定
type ContainerBuilder struct {
	container *container.Container
	bag       *params.ContainerBag

	definitions map[string]*Definition
	order       []string // 定义 id 的注册顺序

	passes  []passEntry
	passSeq int

	// tagIndex 标签名 -> { 服务 id -> 属性映射 }
	tagIndex map[string]map[string]map[string]any

	// registered 已在容器上登记过工厂的 id
	registered map[string]bool

	compilation bool
	built       bool
	logger      logging.Logger

	mu sync.RWMutex
}

// NewContainerBuilder 创建构建器
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		container:   container.New(),
		bag:         params.NewContainerBag(),
		definitions: make(map[string]*Definition),
		tagIndex:    make(map[string]map[string]map[string]any),
		registered:  make(map[string]bool),
		compilation: true,
		logger:      logging.NewNop(),
	}
}

// SetLogger 设置编译期日志
func (b *ContainerBuilder) SetLogger(logger logging.Logger) *ContainerBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Register 创建并登记服务定义，class 缺省为 id 本身
// 返回定义以便流式修改；重复注册同一 id 会整体替换旧定义
func (b *ContainerBuilder) Register(id string, class ...string) *Definition {
	cls := id
	if len(class) > 0 && class[0] != "" {
		cls = class[0]
	}
	def := NewDefinition(cls)
	b.SetDefinition(id, def)
	return def
}

// SetDefinition 直接登记一个现成的定义
func (b *ContainerBuilder) SetDefinition(id string, def *Definition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.definitions[id]; !exists {
		b.order = append(b.order, id)
	}
	b.definitions[id] = def
	// 替换定义后需要重新生成工厂
	delete(b.registered, id)
}

// GetDefinition 取回服务定义
func (b *ContainerBuilder) GetDefinition(id string) (*Definition, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	def, ok := b.definitions[id]
	return def, ok
}

// HasDefinition 判断 id 是否有定义
func (b *ContainerBuilder) HasDefinition(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.definitions[id]
	return ok
}

// GetDefinitions 返回全部定义（dumper / preloader 的只读快照入口）
func (b *ContainerBuilder) GetDefinitions() map[string]*Definition {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]*Definition, len(b.definitions))
	for id, def := range b.definitions {
		out[id] = def
	}
	return out
}

// RemoveDefinition 移除定义
func (b *ContainerBuilder) RemoveDefinition(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.definitions[id]; !ok {
		return
	}
	delete(b.definitions, id)
	delete(b.registered, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// SetParameter 设置参数，写穿到参数包和内部容器
func (b *ContainerBuilder) SetParameter(name string, value any) *ContainerBuilder {
	b.bag.Set(name, value)
	b.container.SetParameter(name, value)
	return b
}

// SetParameters 批量设置参数
func (b *ContainerBuilder) SetParameters(values map[string]any) *ContainerBuilder {
	for k, v := range values {
		b.SetParameter(k, v)
	}
	return b
}

// GetParameterBag 返回容器感知的参数包
func (b *ContainerBuilder) GetParameterBag() *params.ContainerBag {
	return b.bag
}

// RegisterType 向内部容器的类型注册表登记类名
func (b *ContainerBuilder) RegisterType(name string, prototype any) error {
	return b.container.RegisterType(name, prototype)
}

// Container 返回内部容器（pass 执行前也可直接访问）
func (b *ContainerBuilder) Container() *container.Container {
	return b.container
}

// DisableCompilation 构建时跳过编译阶段（pass 不执行）
func (b *ContainerBuilder) DisableCompilation() *ContainerBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compilation = false
	return b
}

// Build 编译：定义 -> 工厂绑定，执行 pass，返回容器
func (b *ContainerBuilder) Build() (*container.Container, error) {
	c := b.container

	// 1. 参数包整体拷入容器的扁平参数存储
	for k, v := range b.bag.All() {
		c.SetParameter(k, v)
	}

	// 2. 每个定义注册恰好一个工厂绑定
	if err := b.registerPending(c); err != nil {
		return nil, err
	}

	// 3. 收集标签索引（与编译是否执行无关）
	b.refreshTags(c)

	// 4. 编译：按优先级执行 pass，pass 的错误直接中止整个构建
	b.mu.RLock()
	compile := b.compilation
	passes := make([]passEntry, len(b.passes))
	copy(passes, b.passes)
	b.mu.RUnlock()

	if compile {
		for _, entry := range passes {
			b.logger.Debug("running compiler pass", logging.Field{Key: "priority", Value: entry.priority})
			if err := entry.pass(c, b); err != nil {
				return nil, err
			}
		}
		// pass 可能注册了新定义或新标签，补注册并刷新索引
		if err := b.registerPending(c); err != nil {
			return nil, err
		}
		b.refreshTags(c)
	}

	// 5. 参数包挂上容器回引，@service / %parameter% 替换自此可用
	b.bag.SetContainer(c)

	b.mu.Lock()
	b.built = true
	b.mu.Unlock()

	return c, nil
}

// registerPending 为尚未登记工厂的定义注册绑定
func (b *ContainerBuilder) registerPending(c *container.Container) error {
	b.mu.RLock()
	pending := make([]string, 0)
	for _, id := range b.order {
		if !b.registered[id] {
			pending = append(pending, id)
		}
	}
	b.mu.RUnlock()

	for _, id := range pending {
		b.mu.RLock()
		def := b.definitions[id]
		b.mu.RUnlock()
		if def == nil {
			continue
		}

		factory := b.definitionFactory(id, def)
		if def.Shared {
			c.Singleton(id, factory)
		} else {
			c.Bind(id, factory)
		}

		b.mu.Lock()
		b.registered[id] = true
		b.mu.Unlock()
	}
	return nil
}

// refreshTags 从当前定义重建标签索引，并同步容器的标签分组
func (b *ContainerBuilder) refreshTags(c *container.Container) {
	b.mu.Lock()
	b.tagIndex = make(map[string]map[string]map[string]any)
	for id, def := range b.definitions {
		for tag, attrs := range def.Tags {
			if b.tagIndex[tag] == nil {
				b.tagIndex[tag] = make(map[string]map[string]any)
			}
			b.tagIndex[tag][id] = attrs
		}
	}
	index := b.tagIndex
	b.mu.Unlock()

	for tag, ids := range index {
		for id := range ids {
			c.Tag([]string{id}, tag)
		}
	}
}

// FindTaggedServiceIDs 返回携带某标签的服务 id 及其属性
// 读取的是构建时刷新的索引，编译期 pass 新增的标签同样可见
func (b *ContainerBuilder) FindTaggedServiceIDs(tag string) map[string]map[string]any {
	b.mu.RLock()
	built := b.built
	b.mu.RUnlock()

	// 尚未构建（或正处于编译期）时直接从定义现算，保证 pass 之间互相可见
	if !built {
		result := make(map[string]map[string]any)
		b.mu.RLock()
		for id, def := range b.definitions {
			if attrs, ok := def.Tags[tag]; ok {
				result[id] = attrs
			}
		}
		b.mu.RUnlock()
		return result
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make(map[string]map[string]any, len(b.tagIndex[tag]))
	for id, attrs := range b.tagIndex[tag] {
		result[id] = attrs
	}
	return result
}

// ── 定义工厂 ─────────────────────────────────────────────────────

// definitionFactory 把服务定义封闭成容器工厂
// 构建流程：类名值解析 -> 实例化 -> 属性赋值 -> 方法调用
func (b *ContainerBuilder) definitionFactory(id string, def *Definition) container.Factory {
	return func(c *container.Container, callParams map[string]any) (any, error) {
		classVal, err := resolveValue(c, def.Class)
		if err != nil {
			return nil, err
		}

		var instance any
		switch cv := classVal.(type) {
		case string:
			instance, err = b.instantiate(c, id, cv, def, callParams)
			if err != nil {
				return nil, err
			}
		default:
			// 类名经 @service 解析成了现成对象，直接作为实例使用
			instance = classVal
		}

		if def.Autowired {
			if v := reflect.ValueOf(instance); v.Kind() == reflect.Ptr && v.Elem().Kind() == reflect.Struct {
				if err := c.Autowire(id, instance, callParams); err != nil {
					return nil, err
				}
			}
		}

		for name, raw := range def.Properties {
			value, err := resolveValue(c, raw)
			if err != nil {
				return nil, err
			}
			if err := setProperty(id, instance, name, value); err != nil {
				return nil, err
			}
		}

		for _, call := range def.Calls {
			if err := b.applyCall(c, id, instance, call); err != nil {
				return nil, err
			}
		}

		return instance, nil
	}
}

// instantiate 按类名实例化：构造函数位置传参或结构体字段顺序赋值
func (b *ContainerBuilder) instantiate(c *container.Container, id, className string, def *Definition, callParams map[string]any) (any, error) {
	args := make([]any, len(def.Arguments))
	for i, raw := range def.Arguments {
		resolved, err := resolveValue(c, raw)
		if err != nil {
			return nil, err
		}
		args[i] = resolved
	}

	types := c.Types()
	entry, ok := types.Lookup(className)
	if !ok {
		return nil, &container.NotFoundError{ID: id, Reason: fmt.Sprintf("class %q is not registered", className)}
	}

	if ctor, haveCtor := entry.Constructor(); haveCtor {
		return invokeConstructor(c, id, ctor, args)
	}

	t, instantiable := entry.StructType()
	if !instantiable {
		return nil, &container.NotFoundError{ID: id, Reason: fmt.Sprintf("class %q is not instantiable", className)}
	}

	return newStructWithArgs(id, t, args)
}

// invokeConstructor 构造函数调用：位置参数优先，余下形参按类型注入
func invokeConstructor(c *container.Container, id string, ctor reflect.Value, args []any) (any, error) {
	fnType := ctor.Type()
	numIn := fnType.NumIn()
	if fnType.IsVariadic() {
		numIn--
	}

	in := make([]reflect.Value, numIn)
	next := 0
	for i := 0; i < numIn; i++ {
		argType := fnType.In(i)

		if argType == reflect.TypeOf((*container.Container)(nil)) {
			in[i] = reflect.ValueOf(c)
			continue
		}

		if next < len(args) {
			v, err := convertArg(id, args[next], argType, fmt.Sprintf("argument %d", next))
			if err != nil {
				return nil, err
			}
			in[i] = v
			next++
			continue
		}

		// 位置参数用尽后，余下形参走容器的类型反查
		if name, ok := c.Types().NameOf(argType); ok {
			dep, err := c.Get(name)
			if err != nil {
				return nil, err
			}
			dv := reflect.ValueOf(dep)
			if !dv.IsValid() || !dv.Type().AssignableTo(argType) {
				return nil, &container.NotFoundError{ID: id, Reason: fmt.Sprintf("service %q resolved to %T, not assignable to constructor parameter %d (%v)", name, dep, i, argType)}
			}
			in[i] = dv
			continue
		}

		if k := argType.Kind(); k == reflect.Ptr || k == reflect.Interface || k == reflect.Map || k == reflect.Slice || k == reflect.Chan || k == reflect.Func {
			in[i] = reflect.Zero(argType)
			continue
		}

		return nil, &container.NotFoundError{ID: id, Reason: fmt.Sprintf("cannot resolve constructor parameter %d (%v)", i, argType)}
	}

	// 用不完的位置参数：可变参数函数吸收，否则报错
	if next < len(args) {
		if !fnType.IsVariadic() {
			return nil, &container.ContainerError{Msg: fmt.Sprintf("service %q: %d positional argument(s) left over", id, len(args)-next)}
		}
		elemType := fnType.In(fnType.NumIn() - 1).Elem()
		for ; next < len(args); next++ {
			v, err := convertArg(id, args[next], elemType, fmt.Sprintf("argument %d", next))
			if err != nil {
				return nil, err
			}
			in = append(in, v)
		}
	}

	results := ctor.Call(in)
	if len(results) == 0 {
		return nil, &container.ContainerError{Msg: fmt.Sprintf("constructor for %q returned no values", id)}
	}
	if len(results) > 1 {
		last := results[len(results)-1]
		if last.Type().Implements(reflect.TypeOf((*error)(nil)).Elem()) && !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}
	return results[0].Interface(), nil
}

// newStructWithArgs 实例化结构体，位置参数按声明顺序写入可导出字段
func newStructWithArgs(id string, t reflect.Type, args []any) (any, error) {
	structType := t
	wantPtr := false
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
		wantPtr = true
	}
	if structType.Kind() != reflect.Struct {
		return nil, &container.NotFoundError{ID: id, Reason: fmt.Sprintf("type %v is not a struct", t)}
	}

	v := reflect.New(structType)
	elem := v.Elem()

	next := 0
	for i := 0; i < structType.NumField() && next < len(args); i++ {
		field := structType.Field(i)
		if !elem.Field(i).CanSet() {
			continue
		}
		fv, err := convertArg(id, args[next], field.Type, fmt.Sprintf("argument %d (field %s)", next, field.Name))
		if err != nil {
			return nil, err
		}
		elem.Field(i).Set(fv)
		next++
	}
	if next < len(args) {
		return nil, &container.ContainerError{Msg: fmt.Sprintf("service %q: %d positional argument(s) left over", id, len(args)-next)}
	}

	if wantPtr {
		return v.Interface(), nil
	}
	return v.Elem().Interface(), nil
}

// applyCall 执行一次方法调用，方法返回的末尾 error 冒泡
func (b *ContainerBuilder) applyCall(c *container.Container, id string, instance any, call MethodCall) error {
	m := reflect.ValueOf(instance).MethodByName(call.Method)
	if !m.IsValid() {
		return &container.ContainerError{Msg: fmt.Sprintf("service %q has no method %s", id, call.Method)}
	}

	in := make([]reflect.Value, 0, len(call.Arguments))
	mType := m.Type()
	for i, raw := range call.Arguments {
		resolved, err := resolveValue(c, raw)
		if err != nil {
			return err
		}
		if i >= mType.NumIn() && !mType.IsVariadic() {
			return &container.ContainerError{Msg: fmt.Sprintf("service %q: too many arguments for method %s", id, call.Method)}
		}
		var want reflect.Type
		if mType.IsVariadic() && i >= mType.NumIn()-1 {
			want = mType.In(mType.NumIn() - 1).Elem()
		} else {
			want = mType.In(i)
		}
		v, err := convertArg(id, resolved, want, fmt.Sprintf("argument %d of %s", i, call.Method))
		if err != nil {
			return err
		}
		in = append(in, v)
	}

	results := m.Call(in)
	if len(results) > 0 {
		last := results[len(results)-1]
		if last.Type().Implements(reflect.TypeOf((*error)(nil)).Elem()) && !last.IsNil() {
			return last.Interface().(error)
		}
	}
	return nil
}

// setProperty 反射写属性（可导出字段）
func setProperty(id string, instance any, name string, value any) error {
	v := reflect.ValueOf(instance)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return &container.ContainerError{Msg: fmt.Sprintf("service %q: cannot set property %s on %T", id, name, instance)}
	}
	field := v.FieldByName(name)
	if !field.IsValid() || !field.CanSet() {
		return &container.ContainerError{Msg: fmt.Sprintf("service %q has no settable property %s", id, name)}
	}
	fv, err := convertArg(id, value, field.Type(), "property "+name)
	if err != nil {
		return err
	}
	field.Set(fv)
	return nil
}

// convertArg 值到目标类型的赋值/可转换检查
func convertArg(id string, value any, want reflect.Type, what string) (reflect.Value, error) {
	if value == nil {
		switch want.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return reflect.Zero(want), nil
		}
		return reflect.Value{}, &container.NotFoundError{ID: id, Reason: fmt.Sprintf("%s: nil is not assignable to %v", what, want)}
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(want) {
		return v, nil
	}
	if v.Type().ConvertibleTo(want) {
		return v.Convert(want), nil
	}
	return reflect.Value{}, &container.NotFoundError{ID: id, Reason: fmt.Sprintf("%s: %T is not assignable to %v", what, value, want)}
}
