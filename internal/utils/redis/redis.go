package redis

import (
	"context"
	"fmt"
	"time"

	re "github.com/redis/go-redis/v9"
)

// Redis is the time-bounded key/value store used for extracted resume text.
// Get returns nil without error when the key is absent or expired.
type Redis interface {
	Set(ctx context.Context, key string, value string, expireTime time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
}

type redis struct {
	redis     *re.Client
	namespace string
}

type Config struct {
	Address   string
	Username  string
	Password  string
	DB        int
	Namespace string
}

func New(enable bool, cfg *Config) Redis {
	if !enable {
		return Dummy()
	}

	return &redis{
		redis: re.NewClient(&re.Options{
			Addr:     cfg.Address,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		namespace: cfg.Namespace,
	}
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(client *re.Client, namespace string) Redis {
	return &redis{redis: client, namespace: namespace}
}

func (r *redis) withNamespace(key string) string {
	return fmt.Sprintf("%s:%s", r.namespace, key)
}

func (r *redis) Set(ctx context.Context, key string, value string, expireTime time.Duration) error {
	return r.redis.Set(ctx, r.withNamespace(key), value, expireTime).Err()
}

func (r *redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.redis.Get(ctx, r.withNamespace(key)).Result()
	if err == re.Nil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return []byte(val), nil
}

func (r *redis) Delete(ctx context.Context, key string) (bool, error) {
	result, err := r.redis.Del(ctx, r.withNamespace(key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}
