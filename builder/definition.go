package builder

// MethodCall 一次按声明顺序执行的方法调用
type MethodCall struct {
	Method    string
	Arguments []any
}

// Definition 服务定义：纯数据，描述一个服务的装配配方
// Arguments / Properties / Calls 中的值可以是字面量、"@id" 服务引用
// 或 "%name%" 参数引用，统一在构建时惰性解析，定义期从不求值
type Definition struct {
	// Class 类名；可以本身就是 "%parameter%" 或 "@service" token
	Class string

	// Arguments 位置构造参数
	Arguments []any

	// Calls 按声明顺序执行的方法调用
	Calls []MethodCall

	// Properties 属性名 -> 值
	Properties map[string]any

	// Tags 标签名 -> 属性映射
	Tags map[string]map[string]any

	// Public 服务是否对外可见
	Public bool

	// Shared 是否单例（首次构建后缓存）
	Shared bool

	// Autowired 是否在构造后对 inject 标签字段执行自动装配
	Autowired bool
}

// NewDefinition 创建服务定义，public/shared 默认开启
func NewDefinition(class string) *Definition {
	return &Definition{
		Class:      class,
		Properties: make(map[string]any),
		Tags:       make(map[string]map[string]any),
		Public:     true,
		Shared:     true,
	}
}

// SetClass 设置类名
func (d *Definition) SetClass(class string) *Definition {
	d.Class = class
	return d
}

// AddArgument 追加一个位置构造参数
func (d *Definition) AddArgument(arg any) *Definition {
	d.Arguments = append(d.Arguments, arg)
	return d
}

// SetArguments 整体替换位置构造参数
func (d *Definition) SetArguments(args ...any) *Definition {
	d.Arguments = args
	return d
}

// AddMethodCall 追加一次方法调用
func (d *Definition) AddMethodCall(method string, args ...any) *Definition {
	d.Calls = append(d.Calls, MethodCall{Method: method, Arguments: args})
	return d
}

// SetProperty 设置属性赋值
func (d *Definition) SetProperty(name string, value any) *Definition {
	d.Properties[name] = value
	return d
}

// AddTag 打标签；attributes 可为 nil
func (d *Definition) AddTag(name string, attributes map[string]any) *Definition {
	if attributes == nil {
		attributes = map[string]any{}
	}
	d.Tags[name] = attributes
	return d
}

// HasTag 判断是否带有指定标签
func (d *Definition) HasTag(name string) bool {
	_, ok := d.Tags[name]
	return ok
}

// SetPublic 设置公开标志
func (d *Definition) SetPublic(public bool) *Definition {
	d.Public = public
	return d
}

// SetShared 设置单例标志
func (d *Definition) SetShared(shared bool) *Definition {
	d.Shared = shared
	return d
}

// SetAutowired 设置自动装配标志
func (d *Definition) SetAutowired(autowired bool) *Definition {
	d.Autowired = autowired
	return d
}
