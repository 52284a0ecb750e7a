package tpo

import (
	"math/rand"
	"strconv"

	"github.com/google/uuid"
)

// storeIDFloor is the lowest store id the generator hands out. Stores below
// it are reserved for other test fixtures.
const storeIDFloor = 15

// marketMaxStoreID is the upper store-id bound per market.
var marketMaxStoreID = map[Market]int{
	MarketUS: 40000,
	MarketCA: 15000,
}

// opaqueStoreNamespace is the fixed UUIDv5 namespace used to derive opaque
// store identifiers. It must never change: vendors that use opaque ids rely
// on the same numeric store always mapping to the same UUID.
var opaqueStoreNamespace = uuid.MustParse("3f2c9a61-7b84-4e05-9d12-c6a0e8b54f17")

// randomStoreID returns a random numeric store id within the market's range.
func randomStoreID(rng *rand.Rand, market Market) string {
	max := marketMaxStoreID[market]
	return strconv.Itoa(storeIDFloor + rng.Intn(max-storeIDFloor+1))
}

// OpaqueStoreID deterministically converts a numeric store id to the UUID
// form some vendors require. The same id always yields the same UUID.
func OpaqueStoreID(storeID string) string {
	return uuid.NewSHA1(opaqueStoreNamespace, []byte(storeID)).String()
}

// randomOrderID returns a fresh random order id in UUIDv4 form.
func randomOrderID() string {
	return uuid.NewString()
}
