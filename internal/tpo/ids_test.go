package tpo

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpaqueStoreID_Deterministic(t *testing.T) {
	first := OpaqueStoreID("1234")
	second := OpaqueStoreID("1234")
	assert.Equal(t, first, second)

	_, err := uuid.Parse(first)
	assert.NoError(t, err, "opaque store id should be a valid UUID")
}

func TestOpaqueStoreID_DistinctInputsDistinctOutputs(t *testing.T) {
	seen := make(map[string]string)
	for i := 0; i < 1000; i++ {
		id := strconv.Itoa(i)
		opaque := OpaqueStoreID(id)
		if prev, ok := seen[opaque]; ok {
			t.Fatalf("store ids %s and %s collided on %s", prev, id, opaque)
		}
		seen[opaque] = id
	}
}

func TestRandomStoreID_WithinMarketBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for market, max := range marketMaxStoreID {
		for i := 0; i < 1000; i++ {
			id, err := strconv.Atoi(randomStoreID(rng, market))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, id, storeIDFloor)
			assert.LessOrEqual(t, id, max)
		}
	}
}

func TestRandomOrderID_IsUUID(t *testing.T) {
	first := randomOrderID()
	second := randomOrderID()

	_, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
