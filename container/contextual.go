package container

// ContextualBindingBuilder 上下文绑定的两步流式协议
// When(consumer).Needs(abstraction).Give(impl) 把一条覆盖写入容器的
// 绑定表，键为 "consumer::abstraction" 复合键；普通解析路径不会
// 隐式查询这类键，必须经 MakeFor 显式构造复合键
type ContextualBindingBuilder struct {
	container *Container
	consumer  string
	needs     string
	hasNeeds  bool
}

// When 开始针对 consumer 的上下文覆盖
func (c *Container) When(consumer string) *ContextualBindingBuilder {
	return &ContextualBindingBuilder{container: c, consumer: consumer}
}

// Needs 记录目标抽象并返回自身
// 在 Give 之前重复调用时后写的生效（有意保留的语义）
func (b *ContextualBindingBuilder) Needs(abstraction string) *ContextualBindingBuilder {
	b.needs = abstraction
	b.hasNeeds = true
	return b
}

// Give 以非共享方式提交上下文绑定，返回容器
// 未先调用 Needs 属编程错误，立即 panic 而不是静默忽略
func (b *ContextualBindingBuilder) Give(implementation any) *Container {
	return b.commit(implementation, false)
}

// GiveTagged Give 的别名
func (b *ContextualBindingBuilder) GiveTagged(implementation any) *Container {
	return b.commit(implementation, false)
}

// GiveSingleton 以共享方式提交上下文绑定，返回容器
func (b *ContextualBindingBuilder) GiveSingleton(implementation any) *Container {
	return b.commit(implementation, true)
}

func (b *ContextualBindingBuilder) commit(implementation any, shared bool) *Container {
	if !b.hasNeeds {
		panic((&ContainerError{Msg: "contextual binding: Give called before Needs"}).Error())
	}
	b.container.bind(contextualKey(b.consumer, b.needs), implementation, shared)
	return b.container
}

// contextualKey 构造 "consumer::abstraction" 复合键
func contextualKey(consumer, abstraction string) string {
	return consumer + "::" + abstraction
}
