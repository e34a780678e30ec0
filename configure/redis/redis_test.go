package redis_test

import (
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaphl/injection/builder"
	"github.com/flaphl/injection/configure/redis"
)

func TestRedisConfiguration(t *testing.T) {
	b := builder.NewContainerBuilder()

	err := b.Configure(redis.Configure(func(rb *redis.Builder) {
		rb.AddClient("default", func(o *redis.ClientOptions) {
			o.Addr = "localhost:6379"
			o.DB = 1
		})
		rb.AddClient("cache", func(o *redis.ClientOptions) {
			o.Addr = "cache-host:6380"
		})
	}))
	require.NoError(t, err)

	c, err := b.Build()
	require.NoError(t, err)

	// 客户端按连接选项装配（不实际建连）
	svc, err := c.Get("redis.client.default")
	require.NoError(t, err)
	client, ok := svc.(*goredis.Client)
	require.True(t, ok)
	assert.Equal(t, "localhost:6379", client.Options().Addr)
	assert.Equal(t, 1, client.Options().DB)

	svc, err = c.Get("redis.client.cache")
	require.NoError(t, err)
	assert.Equal(t, "cache-host:6380", svc.(*goredis.Client).Options().Addr)

	// 默认客户端的 "redis" 短名
	aliased, err := c.Get("redis")
	require.NoError(t, err)
	assert.Same(t, client, aliased)

	// 标签与属性
	tagged := b.FindTaggedServiceIDs(redis.TagClient)
	assert.Len(t, tagged, 2)
	assert.Equal(t, "cache", tagged["redis.client.cache"]["name"])
}

func TestRedisDuplicateClient(t *testing.T) {
	b := builder.NewContainerBuilder()

	err := b.Configure(redis.Configure(func(rb *redis.Builder) {
		rb.AddClient("cache", nil)
		rb.AddClient("cache", nil)
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already configured")
}

func TestRedisOptionValidation(t *testing.T) {
	b := builder.NewContainerBuilder()

	err := b.Configure(redis.Configure(func(rb *redis.Builder) {
		rb.AddClient("bad", func(o *redis.ClientOptions) {
			o.Addr = ""
		})
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "addr is required")

	err = builder.NewContainerBuilder().Configure(redis.Configure(func(rb *redis.Builder) {
		rb.AddClient("bad", func(o *redis.ClientOptions) {
			o.DB = -1
		})
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db must not be negative")
}

func TestRedisNoClients(t *testing.T) {
	b := builder.NewContainerBuilder()
	require.NoError(t, b.Configure(redis.Configure(nil)))

	_, err := b.Build()
	require.NoError(t, err)
	assert.False(t, b.HasDefinition("redis.client.default"))
}
