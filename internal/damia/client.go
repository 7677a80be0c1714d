// Package damia is the client for the Damia supplier-registry APIs (RNP, SRO,
// EGRUL). Responses are opaque JSON passed through unmodified; the bot layer
// renders them. Every call is recorded by the audit logger.
package damia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tenderbot/internal/audit"
	"tenderbot/internal/config"
	"tenderbot/internal/metrics"
)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	audit   *audit.Logger
}

func NewClient(cfg config.UpstreamConfig, auditLog *audit.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		audit:   auditLog,
	}
}

// call performs one audited GET against a Damia method endpoint.
func (c *Client) call(ctx context.Context, method string, params audit.Params) (json.RawMessage, error) {
	endpoint := c.baseURL + "/" + method
	metrics.APIRequests.WithLabelValues("damia").Inc()
	c.audit.LogRequest(audit.Damia, endpoint, params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.audit.LogTransportError(audit.Damia, endpoint, params, err)
		metrics.APIErrors.WithLabelValues("damia").Inc()
		return nil, fmt.Errorf("damia request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.audit.LogTransportError(audit.Damia, endpoint, params, err)
		metrics.APIErrors.WithLabelValues("damia").Inc()
		return nil, fmt.Errorf("failed to read damia response: %w", err)
	}

	c.audit.LogResponse(audit.Damia, endpoint, params, resp.StatusCode, body)
	if resp.StatusCode != http.StatusOK {
		metrics.APIErrors.WithLabelValues("damia").Inc()
		return nil, fmt.Errorf("damia returned status %d", resp.StatusCode)
	}
	return json.RawMessage(body), nil
}

// RNP checks the register of unreliable suppliers for an INN.
func (c *Client) RNP(ctx context.Context, inn string) (json.RawMessage, error) {
	return c.call(ctx, "rnp", audit.Params{
		audit.P("inn", inn),
		audit.P("key", c.apiKey),
	})
}

// SRO returns self-regulatory-organization memberships for an INN.
func (c *Client) SRO(ctx context.Context, inn string) (json.RawMessage, error) {
	return c.call(ctx, "sros", audit.Params{
		audit.P("inn", inn),
		audit.P("key", c.apiKey),
	})
}

// Egrul returns the EGRUL company card for an INN.
func (c *Client) Egrul(ctx context.Context, inn string) (json.RawMessage, error) {
	return c.call(ctx, "egrul", audit.Params{
		audit.P("inn", inn),
		audit.P("key", c.apiKey),
	})
}
