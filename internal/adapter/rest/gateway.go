package rest

import (
	"context"

	"kaiheila/internal/adapter/gateway"
	"kaiheila/internal/domain"
)

// GatewayURL calls /gateway/index and returns data.url verbatim.
func (c *Client) GatewayURL(ctx context.Context) (string, error) {
	idx, err := Execute[domain.GatewayIndex](ctx, c, Request{Path: "/gateway/index"})
	if err != nil {
		return "", err
	}
	return idx.URL, nil
}

// Gateway resolves the gateway URL and parses it into an Address.
func (c *Client) Gateway(ctx context.Context) (gateway.Address, error) {
	raw, err := c.GatewayURL(ctx)
	if err != nil {
		return gateway.Address{}, err
	}
	return gateway.Parse(raw)
}
