package tpo

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// BearerPlaceholder is the Authorization value every freshly built request
// starts with. It is a distinguishable sentinel, not a real credential: on
// environments that don't validate tokens it is sent as-is, on environments
// that do it marks the request as needing a token refresh.
const BearerPlaceholder = "Bearer placeholder"

// VendorConfig holds the static identity of one vendor integration plus the
// shared mutable bearer token for that vendor.
//
// All fields except the token are immutable after catalog construction. The
// token is read by every request built for this vendor and written by the
// token-refresh step when the global-token policy is enabled; access goes
// through BearerToken/SetBearerToken.
type VendorConfig struct {
	Vendor          Vendor
	Market          Market
	Weight          int
	ClientID        string
	InstanceID      string
	Implementation  Implementation
	UsesStoreUUID   bool
	Version         Version
	BasicCredential string

	tokenMu sync.Mutex
	token   string
}

// BearerToken returns the shared bearer token for this vendor, or the
// placeholder sentinel if no token has been set yet.
func (v *VendorConfig) BearerToken() string {
	v.tokenMu.Lock()
	defer v.tokenMu.Unlock()
	if v.token == "" {
		return BearerPlaceholder
	}
	return v.token
}

// SetBearerToken replaces the shared bearer token. Last writer wins; a stale
// read simply triggers another expiry-retry cycle downstream.
func (v *VendorConfig) SetBearerToken(token string) {
	v.tokenMu.Lock()
	v.token = token
	v.tokenMu.Unlock()
}

// Catalog is an immutable weighted list of vendor configurations.
type Catalog struct {
	entries []*VendorConfig

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewCatalog creates a catalog over the given entries.
func NewCatalog(entries []*VendorConfig) *Catalog {
	return &Catalog{
		entries: entries,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Entries returns the catalog's entries. Callers must not modify the slice.
func (c *Catalog) Entries() []*VendorConfig {
	return c.entries
}

// Select picks one vendor configuration at weighted random among the entries
// whose vendor is in the capability set. Zero-weight entries are never
// selected. It fails when the capability set matches no entries or when the
// matching entries carry no weight at all.
func (c *Catalog) Select(capable []Vendor) (*VendorConfig, error) {
	capSet := make(map[Vendor]struct{}, len(capable))
	for _, v := range capable {
		capSet[v] = struct{}{}
	}

	total := 0
	var eligible []*VendorConfig
	for _, e := range c.entries {
		if _, ok := capSet[e.Vendor]; !ok {
			continue
		}
		if e.Weight < 0 {
			return nil, fmt.Errorf("vendor %q has negative weight %d", e.Vendor, e.Weight)
		}
		eligible = append(eligible, e)
		total += e.Weight
	}

	if len(eligible) == 0 {
		return nil, fmt.Errorf("no vendor in catalog matches capability set %v", capable)
	}
	if total == 0 {
		return nil, fmt.Errorf("all vendors matching capability set %v have zero weight", capable)
	}

	c.rngMu.Lock()
	n := c.rng.Intn(total)
	c.rngMu.Unlock()

	for _, e := range eligible {
		n -= e.Weight
		if n < 0 {
			return e, nil
		}
	}
	// Unreachable: n < total by construction.
	return eligible[len(eligible)-1], nil
}

// DefaultCatalog returns the built-in vendor table used when the plan file
// does not override it. Credentials are synthetic perf-environment values.
func DefaultCatalog() *Catalog {
	return NewCatalog([]*VendorConfig{
		{
			Vendor:          VendorDoorDash,
			Market:          MarketUS,
			Weight:          1,
			ClientID:        "doordash-us-perf-client",
			InstanceID:      "2f1e6a0c-9d41-4a7b-8a15-0d6c3b9e7f21",
			Implementation:  ImplementationStandard,
			UsesStoreUUID:   false,
			Version:         VersionV1,
			BasicCredential: "Basic ZG9vcmRhc2gtdXM6cGVyZg==",
		},
		{
			Vendor:         VendorUberEats,
			Market:         MarketUS,
			Weight:         1,
			ClientID:       "ubereats-us-perf-client",
			InstanceID:     "7c8d21b4-3e5f-49a0-b6d2-91e4f7a30c58",
			Implementation: ImplementationUber,
			UsesStoreUUID:  true,
			Version:        VersionV2,
		},
		{
			Vendor:          VendorGrubHub,
			Market:          MarketUS,
			Weight:          1,
			ClientID:        "grubhub-us-perf-client",
			InstanceID:      "b03a57e9-6c12-48df-9b84-2a7f0e61d4c3",
			Implementation:  ImplementationStandard,
			UsesStoreUUID:   false,
			Version:         VersionV1,
			BasicCredential: "Basic Z3J1Ymh1Yi11czpwZXJm",
		},
		{
			Vendor:          VendorPostmates,
			Market:          MarketUS,
			Weight:          1,
			ClientID:        "postmates-us-perf-client",
			InstanceID:      "51d9c2f7-84ab-4e06-a3d1-6b20e8f47c95",
			Implementation:  ImplementationStandard,
			UsesStoreUUID:   true,
			Version:         VersionV1,
			BasicCredential: "Basic cG9zdG1hdGVzLXVzOnBlcmY=",
		},
		{
			Vendor:          VendorDoorDash,
			Market:          MarketCA,
			Weight:          1,
			ClientID:        "doordash-ca-perf-client",
			InstanceID:      "e6b4903d-17fa-4c58-8d26-c5a1f92e70b4",
			Implementation:  ImplementationStandard,
			UsesStoreUUID:   false,
			Version:         VersionV1,
			BasicCredential: "Basic ZG9vcmRhc2gtY2E6cGVyZg==",
		},
		{
			Vendor:         VendorUberEats,
			Market:         MarketCA,
			Weight:         1,
			ClientID:       "ubereats-ca-perf-client",
			InstanceID:     "9a2e64c0-5bd8-4f13-b7a9-84d0c3e16f72",
			Implementation: ImplementationUber,
			UsesStoreUUID:  true,
			Version:        VersionV2,
		},
		{
			Vendor:          VendorSkipTheDishes,
			Market:          MarketCA,
			Weight:          1,
			ClientID:        "skipthedishes-ca-perf-client",
			InstanceID:      "c47f1a85-20e6-4db9-a01c-7e93b5d248f6",
			Implementation:  ImplementationStandard,
			UsesStoreUUID:   false,
			Version:         VersionV1,
			BasicCredential: "Basic c2tpcHRoZWRpc2hlcy1jYTpwZXJm",
		},
	})
}
