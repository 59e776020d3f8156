package redis

import (
	"context"
	"time"
)

type dummy struct {
	Redis
}

func Dummy() Redis {
	return &dummy{}
}

func (d *dummy) Set(ctx context.Context, key string, value string, expireTime time.Duration) error {
	return nil
}

func (d *dummy) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, nil
}

func (d *dummy) Delete(ctx context.Context, key string) (bool, error) {
	return false, nil
}
