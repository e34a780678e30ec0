package cron

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/flaphl/injection/builder"
	"github.com/flaphl/injection/container"
	"github.com/flaphl/injection/hosting"
	"github.com/flaphl/injection/logging"
)

// TagJob 标记定时任务服务的标签名
// 被标记的服务须实现 cron.Job，标签属性 spec 给出 cron 表达式
const TagJob = "cron.job"

// ServiceID 调度器在容器中的服务标识
const ServiceID = "cron.scheduler"

// Configure 返回 Cron 配置器
// 注册调度器服务，并追加一个编译器阶段：收集所有
// 标记为 cron.job 的服务定义，解析后挂载到调度器
func Configure(options ...func(*Builder)) builder.Configurator {
	return func(b *builder.ContainerBuilder) error {
		cb := NewBuilder()
		for _, fn := range options {
			if fn != nil {
				fn(cb)
			}
		}

		scheduler := newScheduler(cb, logging.NewNop())
		b.Container().Instance(ServiceID, scheduler)
		b.Container().Tag([]string{ServiceID}, hosting.TagService)

		b.AddCompilerPass(attachJobs(scheduler), 0)
		return nil
	}
}

// attachJobs 构造挂载任务的编译器阶段
func attachJobs(scheduler *Scheduler) builder.CompilerPass {
	return func(c *container.Container, b *builder.ContainerBuilder) error {
		tagged := b.FindTaggedServiceIDs(TagJob)
		for id, attrs := range tagged {
			spec, ok := attrs["spec"].(string)
			if !ok || spec == "" {
				return fmt.Errorf("cron: service %q tagged %q without a spec attribute", id, TagJob)
			}

			name := id
			if n, ok := attrs["name"].(string); ok && n != "" {
				name = n
			}

			service, err := c.Get(id)
			if err != nil {
				return fmt.Errorf("cron: failed to resolve job %q: %w", id, err)
			}
			job, ok := service.(cron.Job)
			if !ok {
				return fmt.Errorf("cron: service %q does not implement cron.Job", id)
			}

			if err := scheduler.AddJob(spec, name, job); err != nil {
				return err
			}
		}
		return nil
	}
}

// Builder Cron 配置构建器
type Builder struct {
	enableSeconds    bool
	enableCronLogger bool
	logger           logging.Logger
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{}
}

// WithSeconds 启用秒级精度
func (b *Builder) WithSeconds() *Builder {
	b.enableSeconds = true
	return b
}

// EnableCronLogger 启用 cron 库的内部调度日志
func (b *Builder) EnableCronLogger() *Builder {
	b.enableCronLogger = true
	return b
}

// WithLogger 设置日志记录器
func (b *Builder) WithLogger(logger logging.Logger) *Builder {
	b.logger = logger
	return b
}

// Scheduler Cron 定时任务托管服务
// 实现 hosting.Service 接口
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger
	mu     sync.RWMutex
	jobs   map[string]cron.EntryID
}

// newScheduler 创建调度器
func newScheduler(b *Builder, fallback logging.Logger) *Scheduler {
	logger := b.logger
	if logger == nil {
		logger = fallback
	}

	cronOpts := []cron.Option{
		cron.WithChain(cron.Recover(newCronLogger(logger))),
	}
	if b.enableCronLogger {
		cronOpts = append(cronOpts, cron.WithLogger(newCronLogger(logger)))
	}
	if b.enableSeconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	return &Scheduler{
		cron:   cron.New(cronOpts...),
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}
}

// AddJob 添加定时任务
// spec: cron 表达式，如 "0 */5 * * * *" (每5分钟)
// name: 任务名称（用于管理和日志）
func (s *Scheduler) AddJob(spec, name string, job cron.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddJob(spec, wrappedJob{name: name, inner: job, logger: s.logger})
	if err != nil {
		return fmt.Errorf("failed to add cron job '%s': %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.Info(fmt.Sprintf("Cron job '%s' registered with spec '%s'", name, spec))
	return nil
}

// AddFunc 添加函数任务
func (s *Scheduler) AddFunc(spec, name string, fn func()) error {
	return s.AddJob(spec, name, cron.FuncJob(fn))
}

// RemoveJob 移除定时任务
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.jobs[name]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.logger.Info(fmt.Sprintf("Cron job '%s' removed", name))
	}
}

// Jobs 返回已注册的任务名称
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Start 实现 hosting.Service
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.RLock()
	count := len(s.jobs)
	s.mu.RUnlock()

	s.logger.Info(fmt.Sprintf("Cron scheduler starting with %d jobs", count))
	s.cron.Start()
	return nil
}

// Stop 实现 hosting.Service
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Cron scheduler stopping")

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wrappedJob 包装任务以记录执行日志
type wrappedJob struct {
	name   string
	inner  cron.Job
	logger logging.Logger
}

func (j wrappedJob) Run() {
	j.logger.Info(fmt.Sprintf("Cron job '%s' started", j.name))
	defer j.logger.Info(fmt.Sprintf("Cron job '%s' completed", j.name))
	j.inner.Run()
}

// cronLogger 适配器：将框架日志接口适配到 cron 的日志接口
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.Field{Key: "error", Value: err.Error()})
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{
			Key:   fmt.Sprintf("%v", keysAndValues[i]),
			Value: keysAndValues[i+1],
		})
	}
	return fields
}
