// Package intelipost is the outbound client for the logistics platform
// API. Every call is synchronous with a fixed timeout; callers treat any
// failure as transient and retry on the next scheduled run.
package intelipost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const requestTimeout = 30 * time.Second

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type Volume struct {
	State string `json:"shipment_order_volume_state"`
}

type OrderDetail struct {
	CreatedISO               string      `json:"created_iso"`
	EstimatedDeliveryDateISO string      `json:"estimated_delivery_date_iso"`
	DeliveryMethodID         json.Number `json:"delivery_method_id"`
	Volumes                  []Volume    `json:"shipment_order_volume_array"`
}

type detailEnvelope struct {
	Content OrderDetail `json:"content"`
}

// GetShipmentOrder fetches the remote detail snapshot of one order. The
// raw body is returned alongside the parsed content so the caller can
// persist it verbatim.
func (c *Client) GetShipmentOrder(ctx context.Context, orderNumber string) (*OrderDetail, []byte, error) {
	url := fmt.Sprintf("%s/shipment_order/%s", c.baseURL, orderNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	c.setHeaders(req, c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return nil, nil, err
	}

	var envelope detailEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, fmt.Errorf("malformed shipment order response: %w", err)
	}
	return &envelope.Content, body, nil
}

type TrackingEvent struct {
	EventDate    string `json:"event_date"`
	OriginalCode string `json:"original_code"`
}

type trackingRequest struct {
	OrderNumber string          `json:"order_number"`
	Events      []TrackingEvent `json:"events"`
}

// AddTrackingEvent submits one carrier-coded tracking event,
// authenticated with the carrier's own credential.
func (c *Client) AddTrackingEvent(ctx context.Context, carrierAPIKey, orderNumber string, event TrackingEvent) error {
	payload, err := json.Marshal(trackingRequest{OrderNumber: orderNumber, Events: []TrackingEvent{event}})
	if err != nil {
		return err
	}

	url := c.baseURL + "/tracking/add/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("logistic-provider-api-key", carrierAPIKey)
	req.Header.Set("platform", "automacao")

	_, err = c.do(req)
	return err
}

type QuoteProduct struct {
	Weight       float64 `json:"weight"`
	CostOfGoods  float64 `json:"cost_of_goods"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Length       int     `json:"length"`
	Quantity     int     `json:"quantity"`
}

type QuoteRequest struct {
	DestinationZipCode string         `json:"destination_zip_code"`
	OriginZipCode      string         `json:"origin_zip_code"`
	Products           []QuoteProduct `json:"products"`
}

type DeliveryOption struct {
	DeliveryMethodID             json.Number `json:"delivery_method_id"`
	DeliveryEstimateBusinessDays int         `json:"delivery_estimate_business_days"`
	ProviderShippingCost         float64     `json:"provider_shipping_cost"`
}

type QuoteContent struct {
	ID              json.Number      `json:"id"`
	DeliveryOptions []DeliveryOption `json:"delivery_options"`
}

type quoteEnvelope struct {
	Content QuoteContent `json:"content"`
}

func (c *Client) QuoteByProduct(ctx context.Context, quote QuoteRequest) (*QuoteContent, error) {
	payload, err := json.Marshal(quote)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/quote_by_product", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var envelope quoteEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("malformed quote response: %w", err)
	}
	return &envelope.Content, nil
}

// CreateShipmentOrder submits a new order. The payload is built by the
// creation flow; the platform owns the resulting record.
func (c *Client) CreateShipmentOrder(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/shipment_order", bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req, c.apiKey)

	_, err = c.do(req)
	return err
}

func (c *Client) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", apiKey)
	req.Header.Set("platform", "automacao")
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s returned status %d: %s", req.Method, req.URL.Path, resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
