package container

import (
	"fmt"
	"reflect"
	"sort"
)

var (
	containerType = reflect.TypeOf((*Container)(nil))
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
)

// Call 以依赖注入的方式调用任意函数
// 形参先用 parameters 中类型可赋值的显式值填充（每个值最多消费一次），
// 其余依赖走与构造依赖相同的解析路径
func (c *Container) Call(fn any, parameters map[string]any) (any, error) {
	fnVal := reflect.ValueOf(fn)
	if !fnVal.IsValid() || fnVal.Kind() != reflect.Func {
		return nil, &ContainerError{Msg: fmt.Sprintf("Call expects a function, got %T", fn)}
	}
	return c.invoke(fnVal, parameters, "<callable>")
}

// invoke 反射调用函数，逐个解析形参
// 形参解析顺序（与构造参数一致）：
//  1. 形参类型为 *Container -> 注入容器自身
//  2. parameters 中存在可赋值且未被消费的显式值 -> 直接使用
//  3. 类型在注册表中反查到类名 -> 递归解析
//  4. 类型可为 nil -> 注入零值
//  5. 否则失败，指出无法解析的参数
func (c *Container) invoke(fnVal reflect.Value, parameters map[string]any, serviceID string) (any, error) {
	fnType := fnVal.Type()

	// 显式参数按 key 排序遍历，保证同类型多个候选时结果可预期
	var paramKeys []string
	consumed := make(map[string]bool, len(parameters))
	for k := range parameters {
		paramKeys = append(paramKeys, k)
	}
	sort.Strings(paramKeys)

	numIn := fnType.NumIn()
	if fnType.IsVariadic() {
		numIn--
	}

	args := make([]reflect.Value, numIn)
	for i := 0; i < numIn; i++ {
		argType := fnType.In(i)

		if argType == containerType {
			args[i] = reflect.ValueOf(c)
			continue
		}

		filled := false
		for _, k := range paramKeys {
			if consumed[k] {
				continue
			}
			pv := reflect.ValueOf(parameters[k])
			if pv.IsValid() && pv.Type().AssignableTo(argType) {
				args[i] = pv
				consumed[k] = true
				filled = true
				break
			}
		}
		if filled {
			continue
		}

		if name, ok := c.types.NameOf(argType); ok {
			dep, err := c.resolve(name, nil)
			if err != nil {
				return nil, err
			}
			dv := reflect.ValueOf(dep)
			if !dv.IsValid() || !dv.Type().AssignableTo(argType) {
				return nil, &NotFoundError{ID: serviceID, Reason: fmt.Sprintf("service %q resolved to %T, not assignable to parameter %d (%v)", name, dep, i, argType)}
			}
			args[i] = dv
			continue
		}

		if nilable(argType.Kind()) {
			args[i] = reflect.Zero(argType)
			continue
		}

		return nil, &NotFoundError{ID: serviceID, Reason: fmt.Sprintf("cannot resolve parameter %d (%v)", i, argType)}
	}

	results := fnVal.Call(args)
	return extractResult(results, serviceID)
}

// extractResult 取第一个返回值，末尾 error 不为空时原样向上传递
func extractResult(results []reflect.Value, serviceID string) (any, error) {
	if len(results) == 0 {
		return nil, nil
	}

	if len(results) > 1 {
		last := results[len(results)-1]
		if last.Type().Implements(errorType) {
			if !last.IsNil() {
				// 用户工厂/构造函数的错误不包装，直接向上冒泡
				return nil, last.Interface().(error)
			}
		}
	}

	return results[0].Interface(), nil
}
