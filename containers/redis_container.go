package containers

import (
	"context"
	"log"
	"net"

	"github.com/testcontainers/testcontainers-go/modules/redis"
)

const redisImage = "redis:7.2-alpine"

type RedisContainer struct {
	redis *redis.RedisContainer
}

func NewRedisContainer() *RedisContainer {
	started, err := redis.Run(context.Background(), redisImage)
	if err != nil {
		log.Fatalf("error starting redis container: %v", err)
	}
	return &RedisContainer{redis: started}
}

func (c *RedisContainer) Shutdown() {
	terminate("redis", c.redis)
}

// Addr returns host:port, ready for redis.Options.
func (c *RedisContainer) Addr() string {
	ctx := context.Background()

	host, err := c.redis.Host(ctx)
	if err != nil {
		log.Fatalf("error getting redis host: %v", err)
	}
	port, err := c.redis.MappedPort(ctx, "6379/tcp")
	if err != nil {
		log.Fatalf("error getting redis port: %v", err)
	}
	return net.JoinHostPort(host, port.Port())
}
