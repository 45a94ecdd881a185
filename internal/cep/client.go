// Package cep looks destination addresses up by postal code against the
// public BrasilAPI endpoint.
package cep

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const lookupTimeout = 10 * time.Second

type Address struct {
	CEP          string `json:"cep"`
	State        string `json:"state"`
	City         string `json:"city"`
	Neighborhood string `json:"neighborhood"`
	Street       string `json:"street"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: lookupTimeout},
	}
}

func (c *Client) Lookup(ctx context.Context, cep string) (*Address, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, strings.ReplaceAll(cep, "-", ""))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cep lookup for %s returned status %d", cep, resp.StatusCode)
	}

	var addr Address
	if err := json.Unmarshal(body, &addr); err != nil {
		return nil, fmt.Errorf("malformed cep lookup response: %w", err)
	}
	return &addr, nil
}
