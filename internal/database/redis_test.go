package database

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantora/mlserve/internal/config"
)

func TestNewRedisConnection(t *testing.T) {
	mr := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client, err := NewRedisConnection(config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestNewRedisConnectionUnreachable(t *testing.T) {
	_, err := NewRedisConnection(config.RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}
