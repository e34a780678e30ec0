package mongodb

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/flaphl/injection/builder"
)

// TagClient 标记 MongoDB 客户端服务的标签名
const TagClient = "mongo.client"

// Configure 返回 MongoDB 配置器
// 客户端经 %mongo.<name>.uri% 参数装配，连接是惰性的：
// 服务首次被解析时才真正建立
func Configure(options func(*Builder)) builder.Configurator {
	return func(b *builder.ContainerBuilder) error {
		mb := NewBuilder()
		if options != nil {
			options(mb)
		}
		if err := mb.validate(); err != nil {
			return err
		}

		if len(mb.order) == 0 {
			return nil
		}

		if err := b.RegisterType("mongo.client", connect); err != nil {
			return err
		}

		for _, name := range mb.order {
			opts := mb.clients[name]
			param := "mongo." + name + ".uri"
			b.SetParameter(param, opts.URI)

			id := "mongo.client." + name
			b.Register(id, "mongo.client").
				SetArguments("%" + param + "%").
				AddTag(TagClient, map[string]any{"name": name})

			if name == "default" {
				b.Container().Alias(id, "mongo")
			}
		}
		return nil
	}
}

// connect 建立 MongoDB 客户端
func connect(uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(mongooptions.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: failed to connect %q: %w", uri, err)
	}
	return client, nil
}

// ClientOptions 单个客户端配置
type ClientOptions struct {
	Name string
	URI  string
}

// Validate 校验配置
func (o *ClientOptions) Validate() error {
	if o.URI == "" {
		return fmt.Errorf("mongo client %q: uri is required", o.Name)
	}
	return nil
}

// Builder MongoDB 配置构建器
type Builder struct {
	clients map[string]ClientOptions
	order   []string
	errs    []error
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{clients: make(map[string]ClientOptions)}
}

// Add 添加一个客户端配置
func (b *Builder) Add(name, uri string, configure ...func(*ClientOptions)) *Builder {
	if _, exists := b.clients[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("mongo client %q already configured", name))
		return b
	}

	opts := ClientOptions{Name: name, URI: uri}
	for _, fn := range configure {
		if fn != nil {
			fn(&opts)
		}
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
		return fmt.Errorf("mongo configuration errors: %v", b.errs)
	}
	return nil
}
