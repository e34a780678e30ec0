package builder

import (
	"sort"

	"github.com/flaphl/injection/container"
)

// CompilerPass 编译器回调
// 在 Build 的编译阶段执行，可以注册新服务、设置参数、检查或改写
// 标签索引；对后续 pass 和最终返回的容器均可见
type CompilerPass func(c *container.Container, b *ContainerBuilder) error

// passEntry 带优先级的 pass 记录，seq 保证同优先级维持插入顺序
type passEntry struct {
	pass     CompilerPass
	priority int
	seq      int
}

// AddCompilerPass 注册编译器 pass
// 优先级高的先执行；同优先级按注册顺序执行（稳定排序）
func (b *ContainerBuilder) AddCompilerPass(pass CompilerPass, priority int) *ContainerBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.passes = append(b.passes, passEntry{pass: pass, priority: priority, seq: b.passSeq})
	b.passSeq++
	sort.SliceStable(b.passes, func(i, j int) bool {
		return b.passes[i].priority > b.passes[j].priority
	})
	return b
}

// Configurator 构建前的配置回调，configure 子包的模块以此形式挂接
type Configurator func(b *ContainerBuilder) error

// Configure 依次应用配置器，任何一个失败即中止
func (b *ContainerBuilder) Configure(configurators ...Configurator) error {
	for _, cfg := range configurators {
		if cfg == nil {
			continue
		}
		if err := cfg(b); err != nil {
			return err
		}
	}
	return nil
}
