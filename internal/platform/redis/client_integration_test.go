//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"composite/internal/platform/config"
	"composite/pkg/testutil/containers"
)

func TestNewConnectsAndReportsHealthy(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	client, err := New(ctx, config.RedisConfig{
		URL:         rc.Addr,
		PoolSize:    4,
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Health(ctx))
}
