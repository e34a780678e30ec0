package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"

	"github.com/flaphl/injection/builder"
)

// EtcdOptions etcd 配置源选项
type EtcdOptions struct {
	Endpoints   []string      // etcd 服务器地址列表
	Username    string        // 用户名（可选）
	Password    string        // 密码（可选）
	Prefix      string        // 键前缀（可选）
	Timeout     time.Duration // 读取超时（默认 5 秒）
	DialTimeout time.Duration // 拨号超时（默认 5 秒）
}

// EtcdSource etcd 配置源，仅产出参数
// 键 <prefix>/database/dsn -> 参数 database.dsn，
// 值依次尝试 JSON、YAML 解码，失败时按原始字符串处理
type EtcdSource struct {
	Options EtcdOptions
}

// NewEtcdSource 创建 etcd 源并补全默认超时
func NewEtcdSource(opts EtcdOptions) *EtcdSource {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return &EtcdSource{Options: opts}
}

func (s *EtcdSource) Name() string {
	return fmt.Sprintf("Etcd(%v)", s.Options.Endpoints)
}

func (s *EtcdSource) Load() (*builder.Config, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   s.Options.Endpoints,
		Username:    s.Options.Username,
		Password:    s.Options.Password,
		DialTimeout: s.Options.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.Options.Timeout)
	defer cancel()

	prefix := s.Options.Prefix
	if prefix == "" {
		prefix = "/"
	}

	resp, err := cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters from etcd: %w", err)
	}

	cfg := &builder.Config{Parameters: make(map[string]any)}
	for _, kv := range resp.Kvs {
		key := string(kv.Key)
		if s.Options.Prefix != "" {
			key = strings.TrimPrefix(key, s.Options.Prefix)
		}
		key = strings.Trim(key, "/")
		if key == "" {
			continue
		}
		key = strings.ReplaceAll(key, "/", ".")
		cfg.Parameters[key] = decodeValue(kv.Value)
	}
	return cfg, nil
}

// decodeValue 尝试把字节值解码成结构化数据
func decodeValue(raw []byte) any {
	var jsonValue any
	if err := json.Unmarshal(raw, &jsonValue); err == nil {
		return jsonValue
	}
	var yamlValue any
	if err := yaml.Unmarshal(raw, &yamlValue); err == nil {
		return yamlValue
	}
	return string(raw)
}
