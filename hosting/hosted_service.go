package hosting

import (
	"context"
	"fmt"
	"sync"

	"github.com/flaphl/injection/logging"
)

// TagService 标记托管服务的标签名
const TagService = "hosting.service"

// Service 可托管服务接口
// configure 子包里的长生命周期组件（cron 调度器、web 宿主）实现它，
// 由使用方在容器构建完成后统一启停
type Service interface {
	// Start 启动服务，应阻塞到 context 取消或出错
	Start(ctx context.Context) error

	// Stop 执行优雅关闭；Start 的 context 取消时服务也应自行停止
	Stop(ctx context.Context) error
}

// Manager 托管服务管理器
// 从容器的 "hosting.service" 标签分组收集服务并并发启动
type Manager struct {
	services []Service
	logger   logging.Logger
	wg       sync.WaitGroup
	mu       sync.RWMutex
}

// NewManager 创建管理器
func NewManager(logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{logger: logger}
}

// Add 登记一个托管服务
func (m *Manager) Add(service Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, service)
}

// StartAll 并发启动全部服务，返回错误通道
func (m *Manager) StartAll(ctx context.Context) <-chan error {
	m.mu.RLock()
	services := make([]Service, len(m.services))
	copy(services, m.services)
	m.mu.RUnlock()

	errCh := make(chan error, len(services))
	m.logger.Info(fmt.Sprintf("starting %d hosted services", len(services)))

	for i, service := range services {
		m.wg.Add(1)
		go func(index int, svc Service) {
			defer m.wg.Done()
			if err := svc.Start(ctx); err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					return
				}
				m.logger.Error("hosted service failed",
					logging.Field{Key: "index", Value: index},
					logging.Field{Key: "error", Value: err.Error()})
				select {
				case errCh <- err:
				default:
				}
			}
		}(i, service)
	}

	return errCh
}

// StopAll 按注册顺序的逆序逐个停止全部服务
// 后注册的服务可能依赖先注册的服务，逆序停止保证依赖方先退出
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	services := make([]Service, len(m.services))
	copy(services, m.services)
	m.mu.RUnlock()

	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(ctx); err != nil {
			m.logger.Error("failed to stop hosted service",
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	return nil
}

// Wait 等待所有服务的 Start 返回
func (m *Manager) Wait() {
	m.wg.Wait()
}
