package container

import (
	"fmt"
	"strings"
)

// NotFoundError 服务无法找到或无法实例化
// 覆盖：未注册的 id、类型注册表中不存在的类名、不可实例化的类型、
// 无法解析且没有任何回退的构造参数
type NotFoundError struct {
	ID     string
	Reason string
}

func (e *NotFoundError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("container: service %q not found", e.ID)
	}
	return fmt.Sprintf("container: service %q not found: %s", e.ID, e.Reason)
}

// CircularReferenceError 检测到循环依赖
// Path 按发现顺序携带完整路径，末尾是重复出现的 id
type CircularReferenceError struct {
	Path []string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("container: circular reference detected: %s", strings.Join(e.Path, " -> "))
}

// ContainerError 容器级的通用错误
// 例如上下文绑定在 Needs 之前调用 Give 的误用
type ContainerError struct {
	Msg string
}

func (e *ContainerError) Error() string {
	return "container: " + e.Msg
}
