package tpo

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Kind is the closed set of request variants the generator can issue. New
// kinds require extending the exhaustive switches in the builder, which the
// compiler and tests keep honest.
type Kind int

const (
	KindTokenGeneration Kind = iota
	KindGetMenu
	KindOrder
	KindRelease
)

func (k Kind) String() string {
	switch k {
	case KindTokenGeneration:
		return "token_generation"
	case KindGetMenu:
		return "get_menu"
	case KindOrder:
		return "order"
	case KindRelease:
		return "release"
	default:
		return "unknown"
	}
}

// vendorPorts maps each vendor that implements the kind to its ALB routing
// port. A nil map means every vendor implements the kind (token generation).
func (k Kind) vendorPorts() map[Vendor]int {
	switch k {
	case KindGetMenu:
		return map[Vendor]int{
			VendorDoorDash:  9019,
			VendorGrubHub:   9025,
			VendorPostmates: 9033,
		}
	case KindOrder, KindRelease:
		return map[Vendor]int{
			VendorDoorDash:      9020,
			VendorUberEats:      9002,
			VendorGrubHub:       9026,
			VendorPostmates:     9034,
			VendorSkipTheDishes: 9012,
		}
	default:
		return nil
	}
}

// implementedVendors returns the vendors the kind can be issued against.
func (k Kind) implementedVendors() []Vendor {
	ports := k.vendorPorts()
	if ports == nil {
		return AllVendors
	}
	vendors := make([]Vendor, 0, len(ports))
	for v := range ports {
		vendors = append(vendors, v)
	}
	return vendors
}

// defaultBaseURLs are the environment-specific URL prefixes. The ALB prefix
// keeps {market} and {port} placeholders for the route resolver. A plan file
// can override any of these.
var defaultBaseURLs = map[Environment]string{
	EnvironmentPerf: "https://order-perf.example.com/default",
	EnvironmentALB:  "http://{market}-gateway.example.com:{port}",
	EnvironmentNLB:  "http://{market}-gateway.example.com:9000",
}

// routeTemplates are the per-kind, per-environment route templates. Token
// generation is absent on purpose: its URL is keyed off the implementation,
// not the environment.
var routeTemplates = map[Kind]map[Environment]string{
	KindGetMenu: {
		EnvironmentPerf: "/{version}/vendors/{vendor}/menu/{store_id}",
		EnvironmentALB:  "/{version}/stores/menu/{vendor}/{market}/{store_id}",
		EnvironmentNLB:  "/{version}/stores/menu/{vendor}/{market}/{store_id}",
	},
	KindOrder: {
		EnvironmentPerf: "/{version}/vendors/{vendor}/order",
		EnvironmentALB:  "/{version}/orders/{vendor}/{market}/{store_id}",
		EnvironmentNLB:  "/{version}/orders/{vendor}/{market}/{store_id}",
	},
	KindRelease: {
		EnvironmentPerf: "/{version}/vendors/{vendor}/order/release",
		EnvironmentALB:  "/{version}/orders/release/{vendor}/{market}/{store_id}",
		EnvironmentNLB:  "/{version}/orders/release/{vendor}/{market}/{store_id}",
	},
}

// defaultSuccessCodes classify a response as successful unless a request
// overrides them. 4xx/5xx codes are legal overrides when failures are the
// thing under test.
var defaultSuccessCodes = []int{200, 201}

// RequestSpec is a fully built request ready for the transport: method, URL,
// headers and body, plus the success-code set used only for local
// classification. It references exactly one vendor configuration.
type RequestSpec struct {
	Kind    Kind
	Name    string
	Method  string
	URL     string
	Headers map[string]string
	Body    string

	SuccessCodes []int
	Vendor       *VendorConfig
	StoreID      string
	OrderID      string
}

// BearerToken returns the Authorization header value currently attached.
func (r *RequestSpec) BearerToken() string {
	return r.Headers["Authorization"]
}

// SetBearerToken replaces the Authorization header value.
func (r *RequestSpec) SetBearerToken(token string) {
	r.Headers["Authorization"] = token
}

// IsSuccess reports whether the status code is in the configured
// success-code set.
func (r *RequestSpec) IsSuccess(status int) bool {
	for _, c := range r.SuccessCodes {
		if c == status {
			return true
		}
	}
	return false
}

// Builder constructs RequestSpecs for a fixed environment and catalog. Any
// field not overridden is derived: vendor via weighted catalog selection,
// store and order ids at random, url from the environment route tables,
// headers from the vendor identity, body from the (implementation, version)
// schema tables.
//
// Builder is safe for concurrent use by many virtual users.
type Builder struct {
	env      Environment
	catalog  *Catalog
	baseURLs map[Environment]string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// BuilderOption customizes a Builder at construction.
type BuilderOption func(*Builder)

// WithBaseURLs overrides the base URL for the given environments, leaving
// the defaults in place for any environment not in the map.
func WithBaseURLs(overrides map[Environment]string) BuilderOption {
	return func(b *Builder) {
		for env, base := range overrides {
			b.baseURLs[env] = base
		}
	}
}

// NewBuilder creates a request builder for the given environment.
func NewBuilder(env Environment, catalog *Catalog, opts ...BuilderOption) *Builder {
	b := &Builder{
		env:      env,
		catalog:  catalog,
		baseURLs: make(map[Environment]string, len(defaultBaseURLs)),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for e, base := range defaultBaseURLs {
		b.baseURLs[e] = base
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type buildOverrides struct {
	vendor       *VendorConfig
	storeID      string
	orderID      string
	url          string
	headers      map[string]string
	body         string
	hasBody      bool
	successCodes []int
}

// BuildOption overrides one derived field of a request under construction.
type BuildOption func(*buildOverrides)

// WithVendor pins the request to a specific vendor instead of selecting one
// at weighted random.
func WithVendor(v *VendorConfig) BuildOption {
	return func(o *buildOverrides) { o.vendor = v }
}

// WithStoreID pins the store id instead of generating a random one.
func WithStoreID(id string) BuildOption {
	return func(o *buildOverrides) { o.storeID = id }
}

// WithOrderID pins the order id instead of generating a random one.
func WithOrderID(id string) BuildOption {
	return func(o *buildOverrides) { o.orderID = id }
}

// WithURL bypasses route resolution entirely.
func WithURL(url string) BuildOption {
	return func(o *buildOverrides) { o.url = url }
}

// WithHeaders replaces the derived header set.
func WithHeaders(h map[string]string) BuildOption {
	return func(o *buildOverrides) { o.headers = h }
}

// WithBody replaces the derived body.
func WithBody(b string) BuildOption {
	return func(o *buildOverrides) { o.body = b; o.hasBody = true }
}

// WithSuccessCodes replaces the default success-code set.
func WithSuccessCodes(codes ...int) BuildOption {
	return func(o *buildOverrides) { o.successCodes = codes }
}

// Build constructs a request of the given kind, deriving every field that
// was not explicitly overridden.
func (b *Builder) Build(kind Kind, opts ...BuildOption) (*RequestSpec, error) {
	var o buildOverrides
	for _, opt := range opts {
		opt(&o)
	}

	vendor, err := b.resolveVendor(kind, o.vendor)
	if err != nil {
		return nil, err
	}

	spec := &RequestSpec{
		Kind:         kind,
		Method:       "POST",
		Vendor:       vendor,
		SuccessCodes: o.successCodes,
	}
	if spec.SuccessCodes == nil {
		spec.SuccessCodes = defaultSuccessCodes
	}
	if kind == KindGetMenu {
		spec.Method = "GET"
	}

	// Store and order ids come before the URL: ALB/NLB routes embed the
	// store id.
	switch kind {
	case KindGetMenu:
		spec.StoreID = b.resolveStoreID(vendor, o.storeID)
	case KindOrder, KindRelease:
		spec.StoreID = b.resolveStoreID(vendor, o.storeID)
		spec.OrderID = o.orderID
		if spec.OrderID == "" {
			spec.OrderID = randomOrderID()
		}
	}

	if o.url != "" {
		spec.URL = o.url
	} else if kind == KindTokenGeneration {
		spec.URL = b.tokenURL(vendor.Implementation)
	} else {
		spec.URL, err = b.resolveRoute(kind, vendor, spec.StoreID)
		if err != nil {
			return nil, err
		}
	}

	if o.headers != nil {
		spec.Headers = o.headers
	} else {
		spec.Headers = b.buildHeaders(kind, vendor)
	}

	if o.hasBody {
		spec.Body = o.body
	} else {
		spec.Body, err = b.buildBody(kind, vendor, spec.StoreID, spec.OrderID)
		if err != nil {
			return nil, err
		}
	}

	spec.Name = displayName(b.env, kind, vendor)
	return spec, nil
}

// resolveVendor picks or validates the vendor for a kind. Token generation
// bypasses capability filtering since every vendor implements it.
func (b *Builder) resolveVendor(kind Kind, explicit *VendorConfig) (*VendorConfig, error) {
	implemented := kind.implementedVendors()
	if explicit != nil {
		if kind == KindTokenGeneration {
			return explicit, nil
		}
		for _, v := range implemented {
			if v == explicit.Vendor {
				return explicit, nil
			}
		}
		return nil, &UnsupportedVendorCapabilityError{Kind: kind, Vendor: explicit.Vendor}
	}
	return b.catalog.Select(implemented)
}

func (b *Builder) resolveStoreID(vendor *VendorConfig, explicit string) string {
	id := explicit
	if id == "" {
		b.rngMu.Lock()
		id = randomStoreID(b.rng, vendor.Market)
		b.rngMu.Unlock()
		if vendor.UsesStoreUUID {
			id = OpaqueStoreID(id)
		}
	}
	return id
}

// resolveRoute joins the environment base URL with the kind's route template
// and substitutes every placeholder. Anything left unresolved is a
// configuration error.
func (b *Builder) resolveRoute(kind Kind, vendor *VendorConfig, storeID string) (string, error) {
	env := b.env
	base, ok := b.baseURLs[env]
	if !ok {
		return "", &RouteNotConfiguredError{Kind: kind, Environment: env}
	}
	route, ok := routeTemplates[kind][env]
	if !ok {
		return "", &RouteNotConfiguredError{Kind: kind, Environment: env}
	}

	port, havePort := kind.vendorPorts()[vendor.Vendor]
	replacements := []string{
		"{version}", string(vendor.Version),
		"{vendor}", string(vendor.Vendor),
		"{market}", string(vendor.Market),
		"{store_id}", storeID,
	}
	if havePort {
		replacements = append(replacements, "{port}", strconv.Itoa(port))
	}

	url := strings.NewReplacer(replacements...).Replace(base + route)
	if strings.ContainsAny(url, "{}") {
		return "", &RouteNotConfiguredError{Kind: kind, Environment: env}
	}
	return url, nil
}

// tokenURL is keyed off the implementation, not the environment: token
// generation always goes through the perf gateway.
func (b *Builder) tokenURL(impl Implementation) string {
	base := b.baseURLs[EnvironmentPerf]
	if impl == ImplementationUber {
		return base + "/v1/vendor/authentication"
	}
	return base + "/security/auth/token"
}

func (b *Builder) buildHeaders(kind Kind, vendor *VendorConfig) map[string]string {
	if kind == KindTokenGeneration {
		contentType := "application/x-www-form-urlencoded"
		if vendor.Implementation == ImplementationUber {
			contentType = "application/json"
		}
		return map[string]string{
			"Content-Type":  contentType,
			"X-Client-Id":   vendor.ClientID,
			"X-Market-Id":   string(vendor.Market),
			"Authorization": vendor.BasicCredential,
		}
	}
	return map[string]string{
		"Content-Type":  "application/json",
		"X-Client-Id":   vendor.ClientID,
		"X-Market-Id":   string(vendor.Market),
		"X-Instance-Id": vendor.InstanceID,
		"Authorization": vendor.BearerToken(),
	}
}

func (b *Builder) buildBody(kind Kind, vendor *VendorConfig, storeID, orderID string) (string, error) {
	switch kind {
	case KindTokenGeneration:
		return tokenBody(vendor.Implementation), nil
	case KindGetMenu:
		return "", nil
	case KindOrder:
		return orderBody(vendor.Implementation, vendor.Version, storeID, orderID)
	case KindRelease:
		return releaseBody(vendor.Implementation, vendor.Version, storeID, orderID)
	default:
		return "", nil
	}
}

// displayName is the metrics key for a request:
// ENV_MARKET_KIND_VENDOR_VERSION, uppercased.
func displayName(env Environment, kind Kind, vendor *VendorConfig) string {
	parts := []string{string(env), string(vendor.Market), kind.String(), string(vendor.Vendor), string(vendor.Version)}
	return strings.ToUpper(strings.Join(parts, "_"))
}
