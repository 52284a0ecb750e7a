package tpo

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func standardVendor() *VendorConfig {
	return &VendorConfig{
		Vendor:          VendorDoorDash,
		Market:          MarketUS,
		Weight:          1,
		ClientID:        "client-1",
		InstanceID:      "instance-1",
		Implementation:  ImplementationStandard,
		Version:         VersionV1,
		BasicCredential: "Basic dGVzdA==",
	}
}

func uberVendor() *VendorConfig {
	return &VendorConfig{
		Vendor:         VendorUberEats,
		Market:         MarketUS,
		Weight:         1,
		ClientID:       "client-2",
		InstanceID:     "instance-2",
		Implementation: ImplementationUber,
		UsesStoreUUID:  true,
		Version:        VersionV2,
	}
}

func TestBuild_OrderStandardV1(t *testing.T) {
	builder := NewBuilder(EnvironmentPerf, DefaultCatalog())

	spec, err := builder.Build(KindOrder, WithVendor(standardVendor()))
	require.NoError(t, err)

	assert.Equal(t, "POST", spec.Method)
	assert.Equal(t, "https://order-perf.example.com/default/v1/vendors/doordash/order", spec.URL)
	assert.Equal(t, BearerPlaceholder, spec.Headers["Authorization"])
	assert.Equal(t, "application/json", spec.Headers["Content-Type"])
	assert.Equal(t, "client-1", spec.Headers["X-Client-Id"])
	assert.Equal(t, []int{200, 201}, spec.SuccessCodes)
	assert.Equal(t, "PERF_US_ORDER_DOORDASH_V1", spec.Name)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(spec.Body), &body))
	assert.Equal(t, spec.StoreID, body["store_id"])
	assert.Equal(t, spec.OrderID, body["order_id"])
	assert.Equal(t, "USD", body["currency"])
	require.Len(t, body["order_items"], 1)
}

func TestBuild_OrderUberV2UsesOpaqueStoreID(t *testing.T) {
	builder := NewBuilder(EnvironmentPerf, DefaultCatalog())

	spec, err := builder.Build(KindOrder, WithVendor(uberVendor()))
	require.NoError(t, err)

	_, err = uuid.Parse(spec.StoreID)
	assert.NoError(t, err, "uber store ids must be opaque UUIDs")

	_, err = uuid.Parse(spec.OrderID)
	assert.NoError(t, err)

	assert.Equal(t, spec.StoreID, gjson.Get(spec.Body, "store_id").String())
	assert.True(t, gjson.Get(spec.Body, "order_number").Exists())
}

func TestBuild_ReleaseUberV2UsesPascalCaseKeys(t *testing.T) {
	builder := NewBuilder(EnvironmentPerf, DefaultCatalog())

	spec, err := builder.Build(KindRelease,
		WithVendor(uberVendor()), WithStoreID("store-a"), WithOrderID("order-b"))
	require.NoError(t, err)

	assert.Equal(t, "store-a", gjson.Get(spec.Body, "StoreId").String())
	assert.Equal(t, "order-b", gjson.Get(spec.Body, "OrderId").String())
}

func TestBuild_GetMenuIsGETWithEmptyBody(t *testing.T) {
	builder := NewBuilder(EnvironmentPerf, DefaultCatalog())

	spec, err := builder.Build(KindGetMenu, WithVendor(standardVendor()), WithStoreID("42"))
	require.NoError(t, err)

	assert.Equal(t, "GET", spec.Method)
	assert.Empty(t, spec.Body)
	assert.Equal(t, "https://order-perf.example.com/default/v1/vendors/doordash/menu/42", spec.URL)
}

func TestBuild_GetMenuUnsupportedVendor(t *testing.T) {
	builder := NewBuilder(EnvironmentPerf, DefaultCatalog())

	_, err := builder.Build(KindGetMenu, WithVendor(uberVendor()))

	var capErr *UnsupportedVendorCapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, KindGetMenu, capErr.Kind)
	assert.Equal(t, VendorUberEats, capErr.Vendor)
}

func TestBuild_ALBRouteResolvesVendorPort(t *testing.T) {
	builder := NewBuilder(EnvironmentALB, DefaultCatalog())

	spec, err := builder.Build(KindOrder, WithVendor(standardVendor()), WithStoreID("77"))
	require.NoError(t, err)

	assert.Equal(t, "http://us-gateway.example.com:9020/v1/orders/doordash/us/77", spec.URL)
}

func TestBuild_UnknownEnvironmentRouteNotConfigured(t *testing.T) {
	builder := NewBuilder(Environment("staging"), DefaultCatalog())

	_, err := builder.Build(KindOrder, WithVendor(standardVendor()))

	var routeErr *RouteNotConfiguredError
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, Environment("staging"), routeErr.Environment)
}

func TestBuild_UnsupportedBodySchema(t *testing.T) {
	builder := NewBuilder(EnvironmentPerf, DefaultCatalog())
	vendor := standardVendor()
	vendor.Implementation = ImplementationDeliveryHero

	_, err := builder.Build(KindOrder, WithVendor(vendor))

	var bodyErr *UnsupportedRequestBodyError
	require.ErrorAs(t, err, &bodyErr)
	assert.Equal(t, ImplementationDeliveryHero, bodyErr.Implementation)
}

func TestBuild_TokenGenerationShapes(t *testing.T) {
	builder := NewBuilder(EnvironmentPerf, DefaultCatalog())

	t.Run("standard", func(t *testing.T) {
		spec, err := builder.Build(KindTokenGeneration, WithVendor(standardVendor()))
		require.NoError(t, err)

		assert.Equal(t, "https://order-perf.example.com/default/security/auth/token", spec.URL)
		assert.Equal(t, "application/x-www-form-urlencoded", spec.Headers["Content-Type"])
		assert.Equal(t, "Basic dGVzdA==", spec.Headers["Authorization"])
		assert.Equal(t, "grantType=client_credentials", spec.Body)
	})

	t.Run("uber", func(t *testing.T) {
		spec, err := builder.Build(KindTokenGeneration, WithVendor(uberVendor()))
		require.NoError(t, err)

		assert.Equal(t, "https://order-perf.example.com/default/v1/vendor/authentication", spec.URL)
		assert.Equal(t, "application/json", spec.Headers["Content-Type"])
		assert.True(t, gjson.Get(spec.Body, "username").Exists())
	})
}

func TestBuild_TokenGenerationAnyVendor(t *testing.T) {
	// Token generation bypasses capability filtering, so even a vendor with
	// no other implemented kinds is accepted.
	builder := NewBuilder(EnvironmentPerf, DefaultCatalog())
	vendor := standardVendor()
	vendor.Vendor = VendorSkipTheDishes

	_, err := builder.Build(KindTokenGeneration, WithVendor(vendor))
	assert.NoError(t, err)
}

func TestBuild_ExplicitOverridesWinOverDerivation(t *testing.T) {
	builder := NewBuilder(EnvironmentPerf, DefaultCatalog())

	spec, err := builder.Build(KindOrder,
		WithVendor(standardVendor()),
		WithURL("http://localhost:1234/order"),
		WithBody(`{"custom":true}`),
		WithHeaders(map[string]string{"Authorization": "Bearer pinned"}),
		WithSuccessCodes(202, 418),
	)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:1234/order", spec.URL)
	assert.Equal(t, `{"custom":true}`, spec.Body)
	assert.Equal(t, "Bearer pinned", spec.BearerToken())
	assert.True(t, spec.IsSuccess(418))
	assert.False(t, spec.IsSuccess(200))
}
