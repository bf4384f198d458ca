package redis

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence/persistenceTest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// requireRedis skips unless REDIS_TEST_ADDRESS points at a reachable server.
func requireRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}
	addr := os.Getenv("REDIS_TEST_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDRESS not set")
	}
	return addr
}

func TestRedisPersistence(t *testing.T) {
	addr := requireRedis(t)

	persistenceTest.RunSuite(t, func(t *testing.T) persistence.ITreasuryPersistence {
		// a unique prefix per subtest keeps runs isolated without FLUSHDB
		rp, err := NewRedisPersistence(&RedisConfig{
			Address:   addr,
			DB:        15,
			KeyPrefix: fmt.Sprintf("test-%d:", time.Now().UnixNano()),
		}, zaptest.NewLogger(t))
		require.NoError(t, err)
		return rp
	})
}

func TestNewRedisPersistence_InvalidConfig(t *testing.T) {
	_, err := NewRedisPersistence(nil, zaptest.NewLogger(t))
	require.Error(t, err)

	_, err = NewRedisPersistence(&RedisConfig{}, zaptest.NewLogger(t))
	require.Error(t, err)
}
