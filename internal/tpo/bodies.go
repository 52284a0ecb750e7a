package tpo

import (
	"encoding/json"
	"time"
)

// Body schemas are keyed by (implementation, version). An order or release
// built for a pair with no schema fails with UnsupportedRequestBodyError.

type standardV1OrderItem struct {
	ExternalData string  `json:"external_data"`
	ItemID       string  `json:"item_id"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
}

type standardV1OrderBody struct {
	StoreID        string                `json:"store_id"`
	OrderID        string                `json:"order_id"`
	OrderShortCode string                `json:"order_short_code"`
	RiderName      string                `json:"rider_name"`
	OrderTime      string                `json:"order_time"`
	Currency       string                `json:"currency"`
	TotalAmount    float64               `json:"total_amount"`
	OrderItems     []standardV1OrderItem `json:"order_items"`
}

type standardV1ReleaseBody struct {
	StoreID string `json:"store_id"`
	OrderID string `json:"order_id"`
}

type uberV2OrderItem struct {
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	Tax        float64 `json:"tax"`
	ExternalID string  `json:"external_id"`
}

type uberV2OrderBody struct {
	StoreID     string            `json:"store_id"`
	OrderID     string            `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	OrderTime   string            `json:"order_time"`
	TotalAmount float64           `json:"total_amount"`
	TotalTax    float64           `json:"total_tax"`
	OrderItems  []uberV2OrderItem `json:"order_items"`
}

// The uber release payload uses PascalCase keys, unlike every other body.
type uberV2ReleaseBody struct {
	StoreID string `json:"StoreId"`
	OrderID string `json:"OrderId"`
}

// orderTimestamp stamps order bodies with today's date at a fixed time of
// day, mirroring what the upstream fixtures expect.
func orderTimestamp() string {
	return time.Now().Format("2006-01-02") + " 16:23:48"
}

func orderBody(impl Implementation, version Version, storeID, orderID string) (string, error) {
	switch impl {
	case ImplementationStandard:
		if version == VersionV1 {
			return marshalBody(standardV1OrderBody{
				StoreID:        storeID,
				OrderID:        orderID,
				OrderShortCode: "13b4c",
				RiderName:      "Gordon Ramsay",
				OrderTime:      orderTimestamp(),
				Currency:       "USD",
				TotalAmount:    3.19,
				OrderItems: []standardV1OrderItem{
					{ExternalData: "5", ItemID: "1006182", Quantity: 1, Price: 3.19},
				},
			})
		}
	case ImplementationUber:
		if version == VersionV2 {
			return marshalBody(uberV2OrderBody{
				StoreID:     storeID,
				OrderID:     orderID,
				OrderNumber: "12345",
				OrderTime:   orderTimestamp(),
				OrderItems:  []uberV2OrderItem{{Quantity: 1, ExternalID: "PLU|7346"}},
			})
		}
	}
	return "", &UnsupportedRequestBodyError{Kind: KindOrder, Implementation: impl, Version: version}
}

func releaseBody(impl Implementation, version Version, storeID, orderID string) (string, error) {
	switch impl {
	case ImplementationStandard:
		if version == VersionV1 {
			return marshalBody(standardV1ReleaseBody{StoreID: storeID, OrderID: orderID})
		}
	case ImplementationUber:
		if version == VersionV2 {
			return marshalBody(uberV2ReleaseBody{StoreID: storeID, OrderID: orderID})
		}
	}
	return "", &UnsupportedRequestBodyError{Kind: KindRelease, Implementation: impl, Version: version}
}

// tokenBody returns the fixed token-generation payload per implementation:
// a form-encoded client-credentials grant for the standard path, a JSON
// username/password document for the uber path.
func tokenBody(impl Implementation) string {
	if impl == ImplementationUber {
		return `{"username":"perf-loadtest","password":"perf-loadtest-secret"}`
	}
	return "grantType=client_credentials"
}

func marshalBody(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
