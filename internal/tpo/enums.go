// Package tpo models the vendor-specific order-management APIs that the
// load generator drives: the vendor catalog, request kinds, and the
// per-environment request construction rules.
package tpo

// Environment identifies which deployment of the order platform the
// generated traffic is aimed at.
type Environment string

const (
	// EnvironmentPerf is the dedicated performance environment. It is the
	// only environment that requires live bearer tokens.
	EnvironmentPerf Environment = "perf"
	// EnvironmentALB routes through the application load balancer using
	// per-vendor ports.
	EnvironmentALB Environment = "alb"
	// EnvironmentNLB routes through the network load balancer on a fixed port.
	EnvironmentNLB Environment = "nlb"
)

// RequiresLiveTokens reports whether requests in this environment must carry
// a real bearer token instead of the placeholder.
func (e Environment) RequiresLiveTokens() bool {
	return e == EnvironmentPerf
}

// Valid reports whether e is a known environment.
func (e Environment) Valid() bool {
	switch e {
	case EnvironmentPerf, EnvironmentALB, EnvironmentNLB:
		return true
	}
	return false
}

// Version is the API version a vendor integration speaks.
type Version string

const (
	VersionV1 Version = "v1"
	VersionV2 Version = "v2"
)

// Implementation groups vendors that share request/response schema and auth
// behavior. The token-expiry signal and the token-generation call shape are
// keyed off this.
type Implementation string

const (
	ImplementationStandard     Implementation = "standard"
	ImplementationUber         Implementation = "uber"
	ImplementationDeliveryHero Implementation = "deliveryhero"
)

// Market is the country a vendor integration serves.
type Market string

const (
	MarketUS Market = "us"
	MarketCA Market = "ca"
)

// Vendor identifies one of the external order-management API targets.
type Vendor string

const (
	VendorDoorDash      Vendor = "doordash"
	VendorUberEats      Vendor = "ubereats"
	VendorGrubHub       Vendor = "grubhub"
	VendorPostmates     Vendor = "postmates"
	VendorSkipTheDishes Vendor = "skipthedishes"
)

// AllVendors lists every vendor the catalog can carry. Token generation is
// implemented by all of them.
var AllVendors = []Vendor{
	VendorDoorDash,
	VendorUberEats,
	VendorGrubHub,
	VendorPostmates,
	VendorSkipTheDishes,
}
