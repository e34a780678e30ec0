package web

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flaphl/injection/builder"
	"github.com/flaphl/injection/container"
	"github.com/flaphl/injection/hosting"
	"github.com/flaphl/injection/logging"
)

// TagController 标记控制器服务的标签名
// 被标记的服务须实现 Controller 接口
const TagController = "web.controller"

// ServiceID Web 主机在容器中的服务标识
const ServiceID = "web.host"

// EngineID Gin 引擎在容器中的服务标识
const EngineID = "web.engine"

// Controller 控制器接口
type Controller interface {
	// MountRoutes 注册路由
	MountRoutes(router gin.IRouter)
}

// Configure 返回 Web 配置器
// 注册 Gin 引擎与 Web 主机，并追加一个编译器阶段：
// 收集所有标记为 web.controller 的服务并挂载其路由
func Configure(options ...func(*Builder)) builder.Configurator {
	return func(b *builder.ContainerBuilder) error {
		wb := NewBuilder()
		for _, fn := range options {
			if fn != nil {
				fn(wb)
			}
		}

		host := wb.buildHost()
		b.Container().Instance(EngineID, wb.engine)
		b.Container().Instance(ServiceID, host)
		b.Container().Tag([]string{ServiceID}, hosting.TagService)

		b.AddCompilerPass(mountControllers(wb.engine), 0)
		return nil
	}
}

// mountControllers 构造挂载控制器的编译器阶段
func mountControllers(engine *gin.Engine) builder.CompilerPass {
	return func(c *container.Container, b *builder.ContainerBuilder) error {
		tagged := b.FindTaggedServiceIDs(TagController)
		for id, attrs := range tagged {
			service, err := c.Get(id)
			if err != nil {
				return fmt.Errorf("web: failed to resolve controller %q: %w", id, err)
			}
			ctrl, ok := service.(Controller)
			if !ok {
				return fmt.Errorf("web: service %q does not implement web.Controller", id)
			}

			var router gin.IRouter = engine
			if prefix, ok := attrs["prefix"].(string); ok && prefix != "" {
				router = engine.Group(prefix)
			}
			ctrl.MountRoutes(router)
		}
		return nil
	}
}

// Builder Web 主机构建器（基于 Gin）
type Builder struct {
	logger logging.Logger
	port   int
	engine *gin.Engine
}

// NewBuilder 创建 Web 构建器
func NewBuilder() *Builder {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Builder{
		port:   8080,
		engine: engine,
	}
}

// UseLogger 设置日志记录器
func (b *Builder) UseLogger(logger logging.Logger) *Builder {
	b.logger = logger
	return b
}

// UsePort 设置端口
func (b *Builder) UsePort(port int) *Builder {
	b.port = port
	return b
}

// Use 使用全局中间件
func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.engine.Use(middleware...)
	return b
}

// SetMode 设置 Gin 模式
func (b *Builder) SetMode(mode string) *Builder {
	gin.SetMode(mode)
	return b
}

// NoRoute 处理 404
func (b *Builder) NoRoute(handlers ...gin.HandlerFunc) *Builder {
	b.engine.NoRoute(handlers...)
	return b
}

// Static 服务静态文件
func (b *Builder) Static(relativePath, root string) *Builder {
	b.engine.Static(relativePath, root)
	return b
}

// Engine 获取 Gin 引擎（用于高级定制）
func (b *Builder) Engine() *gin.Engine {
	return b.engine
}

// buildHost 构建 Web 主机
func (b *Builder) buildHost() *Host {
	logger := b.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Host{
		port:   b.port,
		engine: b.engine,
		logger: logger,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", b.port),
			Handler: b.engine,
		},
	}
}

// Host Web 主机
// 实现 hosting.Service 接口
type Host struct {
	port   int
	engine *gin.Engine
	server *http.Server
	logger logging.Logger
}

// Address 获取监听地址 (e.g., "[::]:50234")
// 仅在 Start 后有效
func (h *Host) Address() string {
	return h.server.Addr
}

// Start 实现 hosting.Service
// 注意：此方法会阻塞，直到服务退出
func (h *Host) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", h.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", addr, err)
	}

	h.server.Addr = ln.Addr().String()
	h.logger.Info("Web host started",
		logging.Field{Key: "address", Value: h.server.Addr})

	if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		h.logger.Error("Web host error", logging.Field{Key: "error", Value: err.Error()})
		return err
	}
	return nil
}

// Stop 实现 hosting.Service
func (h *Host) Stop(ctx context.Context) error {
	h.logger.Info("Stopping web host")

	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("Failed to shutdown web host gracefully",
			logging.Field{Key: "error", Value: err.Error()})
		return err
	}

	h.logger.Info("Web host stopped")
	return nil
}
