package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/flaphl/injection/builder"
)

// TagConnection 标记数据库连接服务的标签名
const TagConnection = "database.connection"

// Configure 返回数据库配置器
// 连接经 %database.<name>.dsn% 参数装配，服务 id 为
// "database.connection.<name>"，默认连接附带 "db" 别名
func Configure(options func(*Builder)) builder.Configurator {
	return func(b *builder.ContainerBuilder) error {
		db := NewBuilder()
		if options != nil {
			options(db)
		}
		if err := db.validate(); err != nil {
			return err
		}

		if len(db.order) == 0 {
			return nil
		}

		if err := b.RegisterType("database.connection", openConnection); err != nil {
			return err
		}

		for _, name := range db.order {
			opts := db.connections[name]
			param := "database." + name + ".dsn"
			b.SetParameter(param, opts.DSN)

			id := "database.connection." + name
			b.Register(id, "database.connection").
				SetArguments("%" + param + "%").
				AddTag(TagConnection, map[string]any{"name": name})

			if name == "default" {
				b.Container().Alias(id, "db")
			}
		}
		return nil
	}
}

// openConnection 打开一条 gorm 连接
func openConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("database: failed to open %q: %w", dsn, err)
	}
	return db, nil
}

// ConnectionOptions 单条连接配置
type ConnectionOptions struct {
	Name string
	DSN  string
}

// Validate 校验配置
func (o *ConnectionOptions) Validate() error {
	if o.DSN == "" {
		return fmt.Errorf("database connection %q: dsn is required", o.Name)
	}
	return nil
}

// Builder 数据库配置构建器
type Builder struct {
	connections map[string]ConnectionOptions
	order       []string
	errs        []error
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{connections: make(map[string]ConnectionOptions)}
}

// AddConnection 添加一条连接配置
func (b *Builder) AddConnection(name, dsn string, configure ...func(*ConnectionOptions)) *Builder {
	if _, exists := b.connections[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("database connection %q already configured", name))
		return b
	}

	opts := ConnectionOptions{Name: name, DSN: dsn}
	for _, fn := range configure {
		if fn != nil {
			fn(&opts)
		}
	}
	if err := opts.Validate(); err != nil {
		b.errs = append(b.errs, err)
		return b
	}

	b.connections[name] = opts
	b.order = append(b.order, name)
	return b
}

func (b *Builder) validate() error {
	if len(b.errs) > 0 {
		return fmt.Errorf("database configuration errors: %v", b.errs)
	}
	return nil
}
