// Package injection 提供依赖注入运行时
// 包含服务容器、参数包与可编译的容器构建器
package injection

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flaphl/injection/builder"
	"github.com/flaphl/injection/container"
	"github.com/flaphl/injection/hosting"
	"github.com/flaphl/injection/logging"
)

// New 创建服务容器
// 这是直接使用容器的入口点
func New() *container.Container {
	return container.New()
}

// NewBuilder 创建容器构建器
// 这是基于定义与编译器阶段装配容器的入口点
func NewBuilder() *builder.ContainerBuilder {
	return builder.NewContainerBuilder()
}

// Setup 创建构建器并依次应用配置器，任何一个失败即返回错误
//
//	b, err := injection.Setup(
//	    redis.Configure(func(rb *redis.Builder) { rb.AddClient("default", nil) }),
//	    web.Configure(),
//	)
func Setup(configurators ...builder.Configurator) (*builder.ContainerBuilder, error) {
	b := builder.NewContainerBuilder()
	if err := b.Configure(configurators...); err != nil {
		return nil, err
	}
	return b, nil
}

// Run 构建容器并托管所有标记为 hosted.service 的服务
// 阻塞直到收到退出信号，然后优雅关闭
func Run(b *builder.ContainerBuilder) error {
	c, err := b.Build()
	if err != nil {
		return err
	}

	logger, err := resolveLogger(c)
	if err != nil {
		return err
	}

	manager := hosting.NewManager(logger)
	for _, id := range c.TaggedIDs(hosting.TagService) {
		service, err := c.Get(id)
		if err != nil {
			return err
		}
		if hosted, ok := service.(hosting.Service); ok {
			manager.Add(hosted)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := manager.StartAll(ctx)

	// 阻塞并监听退出信号 (Ctrl+C, kill) 或服务失败
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-errCh:
	}

	// 给定 5 秒超时时间用于清理
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := manager.StopAll(shutdownCtx); err != nil {
		return err
	}
	return runErr
}

// resolveLogger 从容器解析日志记录器，缺省时退回无操作实现
func resolveLogger(c *container.Container) (logging.Logger, error) {
	if !c.Has("logger") {
		return logging.NewNop(), nil
	}
	service, err := c.Get("logger")
	if err != nil {
		return nil, err
	}
	if logger, ok := service.(logging.Logger); ok {
		return logger, nil
	}
	return logging.NewNop(), nil
}
