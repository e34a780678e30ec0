package redis

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flaphl/injection/builder"
)

// TagClient 标记 Redis 客户端服务的标签名
const TagClient = "redis.client"

// Configure 返回 Redis 配置器
// 每个客户端落成三样东西：一组 %redis.<name>.*% 参数、一条
// class 为 "redis.client" 的服务定义、一个 redis.client 标签
//
//	b.Configure(redis.Configure(func(rb *redis.Builder) {
//	    rb.AddClient("default", func(o *ClientOptions) { o.Addr = "localhost:6379" })
//	}))
func Configure(options func(*Builder)) builder.Configurator {
	return func(b *builder.ContainerBuilder) error {
		rb := NewBuilder()
		if options != nil {
			options(rb)
		}
		if err := rb.validate(); err != nil {
			return err
		}

		if len(rb.order) == 0 {
			return nil
		}

		if err := b.RegisterType("redis.client", newClient); err != nil {
			return err
		}

		for _, name := range rb.order {
			opts := rb.clients[name]
			prefix := "redis." + name

			b.SetParameter(prefix+".addr", opts.Addr)
			b.SetParameter(prefix+".password", opts.Password)
			b.SetParameter(prefix+".db", opts.DB)

			id := "redis.client." + name
			b.Register(id, "redis.client").
				SetArguments("%"+prefix+".addr%", "%"+prefix+".password%", "%"+prefix+".db%").
				AddTag(TagClient, map[string]any{"name": name})

			// 默认客户端在 "redis" 短名下也可解析
			if name == "default" {
				b.Container().Alias(id, "redis")
			}
		}
		return nil
	}
}

// newClient Redis 客户端构造函数，定义的位置参数按序填入
func newClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// ClientOptions 单个客户端的连接配置
type ClientOptions struct {
	Name     string
	Addr     string
	Password string
	DB       int
}

// Validate 校验配置
func (o *ClientOptions) Validate() error {
	if o.Addr == "" {
		return fmt.Errorf("redis client %q: addr is required", o.Name)
	}
	if o.DB < 0 {
		return fmt.Errorf("redis client %q: db must not be negative", o.Name)
	}
	return nil
}

// Builder Redis 客户端配置构建器
type Builder struct {
	clients map[string]ClientOptions
	order   []string
	errs    []error
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{clients: make(map[string]ClientOptions)}
}

// AddClient 添加一个客户端配置
func (b *Builder) AddClient(name string, configure func(*ClientOptions)) *Builder {
	if _, exists := b.clients[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("redis client %q already configured", name))
		return b
	}

	opts := ClientOptions{Name: name, Addr: "localhost:6379"}
	if configure != nil {
		configure(&opts)
	}
	if err := opts.Validate(); err != nil {
		b.errs = append(b.errs, err)
		return b
	}

	b.clients[name] = opts
	b.order = append(b.order, name)
	return b
}

func (b *Builder) validate() error {
	if len(b.errs) > 0 {
		return fmt.Errorf("redis configuration errors: %v", b.errs)
	}
	return nil
}
