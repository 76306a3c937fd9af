//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"device-geocoder/internal/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *Redis {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		redisC.Terminate(ctx)
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := OpenRedis(host+":"+port.Port(), "", 0)
	t.Cleanup(func() {
		client.Close()
	})
	return NewRedis(client, time.Minute)
}

func TestRedis_GetSet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	c := setupRedis(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "riyadh|riyadh|al olaya|0.60")
	assert.False(t, ok)

	res := geo.Resolution{
		Province: "riyadh", City: "riyadh", District: "al olaya",
		ProvinceScore: 1, CityScore: 1, DistrictScore: 0.9,
		Level: geo.LevelDistrict, Confidence: 0.9666,
	}
	c.Set(ctx, "riyadh|riyadh|al olaya|0.60", res)

	got, ok := c.Get(ctx, "riyadh|riyadh|al olaya|0.60")
	require.True(t, ok)
	assert.Equal(t, res, got)

	miss := geo.Resolution{Failure: &geo.Failure{Stage: geo.StageProvince, Input: "mars", Candidate: "makkah", Score: 0.4}}
	c.Set(ctx, "mars|||0.60", miss)
	got, ok = c.Get(ctx, "mars|||0.60")
	require.True(t, ok)
	assert.Equal(t, miss, got)
}

func TestOpenRedis_EmptyAddr(t *testing.T) {
	assert.Nil(t, OpenRedis("", "", 0))
}
