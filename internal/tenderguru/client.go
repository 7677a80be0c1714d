// Package tenderguru is the client for the TenderGuru export API. Every call
// is recorded by the audit logger before dispatch and after receipt.
package tenderguru

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"tenderbot/internal/audit"
	"tenderbot/internal/config"
	"tenderbot/internal/metrics"
	"tenderbot/internal/types"
)

// ErrNotFound is returned when the API responds without any matching items.
var ErrNotFound = errors.New("tender not found")

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	audit   *audit.Logger
}

func NewClient(cfg config.UpstreamConfig, auditLog *audit.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		audit:   auditLog,
	}
}

// call performs one audited GET against the export endpoint.
func (c *Client) call(ctx context.Context, params audit.Params) ([]byte, error) {
	metrics.APIRequests.WithLabelValues("tenderguru").Inc()
	c.audit.LogRequest(audit.TenderGuru, c.baseURL, params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.audit.LogTransportError(audit.TenderGuru, c.baseURL, params, err)
		metrics.APIErrors.WithLabelValues("tenderguru").Inc()
		return nil, fmt.Errorf("tenderguru request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.audit.LogTransportError(audit.TenderGuru, c.baseURL, params, err)
		metrics.APIErrors.WithLabelValues("tenderguru").Inc()
		return nil, fmt.Errorf("failed to read tenderguru response: %w", err)
	}

	c.audit.LogResponse(audit.TenderGuru, c.baseURL, params, resp.StatusCode, body)
	if resp.StatusCode != http.StatusOK {
		metrics.APIErrors.WithLabelValues("tenderguru").Inc()
		return nil, fmt.Errorf("tenderguru returned status %d", resp.StatusCode)
	}
	return body, nil
}

// TenderByNumber fetches the tender card for a registry number.
func (c *Client) TenderByNumber(ctx context.Context, regNumber string) (*types.TenderInfo, error) {
	if regNumber == "" {
		return nil, fmt.Errorf("no reg number provided")
	}
	params := audit.Params{
		audit.P("regNumber", regNumber),
		audit.P("dtype", "json"),
		audit.P("api_code", c.apiKey),
	}
	body, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	items, err := extractItems(body)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}

	item := items[0]
	return &types.TenderInfo{
		RegNumber: regNumber,
		Customer:  stringField(item, "Customer"),
		Subject:   stringField(item, "Name"),
		Price:     stringField(item, "Price"),
		Deadline:  stringField(item, "DateEnd"),
		Region:    stringField(item, "RegionName"),
	}, nil
}

// Platforms fetches the trading-platform directory. Both directory modes are
// queried; a failure of one mode does not discard the other's results.
func (c *Client) Platforms(ctx context.Context) ([]types.Platform, error) {
	var platforms []types.Platform
	var lastErr error
	for _, mode := range []string{"eauc", "eauc_rgi"} {
		params := audit.Params{
			audit.P("mode", mode),
			audit.P("dtype", "json"),
			audit.P("api_code", c.apiKey),
		}
		body, err := c.call(ctx, params)
		if err != nil {
			logrus.Errorf("failed to get platforms for mode %s: %v", mode, err)
			lastErr = err
			continue
		}
		items, err := extractItems(body)
		if err != nil {
			logrus.Errorf("failed to parse platforms for mode %s: %v", mode, err)
			lastErr = err
			continue
		}
		for _, item := range items {
			platforms = append(platforms, types.Platform{
				ID:   stringField(item, "ID"),
				Name: stringField(item, "Name"),
				URL:  stringField(item, "Url"),
			})
		}
	}
	if len(platforms) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return platforms, nil
}

// Documents fetches the attachment list of a tender. The export endpoint
// nests attachments under docsXML.document; older responses carry them in
// Files/Documents/Attachments lists.
func (c *Client) Documents(ctx context.Context, regNumber string) ([]types.Document, error) {
	params := audit.Params{
		audit.P("regNumber", regNumber),
		audit.P("dtype", "json"),
		audit.P("api_code", c.apiKey),
	}
	body, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	items, err := extractItems(body)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return extractDocuments(items[0]), nil
}

// extractItems tolerates both response shapes the export API produces: an
// object with an Items list, or a bare top-level list.
func extractItems(body []byte) ([]map[string]interface{}, error) {
	var wrapped struct {
		Items []map[string]interface{} `json:"Items"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		return wrapped.Items, nil
	}
	var list []map[string]interface{}
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	return nil, fmt.Errorf("unexpected tenderguru response shape")
}

func extractDocuments(item map[string]interface{}) []types.Document {
	var docs []types.Document

	if docsXML, ok := item["docsXML"].(map[string]interface{}); ok {
		if list, ok := docsXML["document"].([]interface{}); ok {
			for _, raw := range list {
				doc, ok := raw.(map[string]interface{})
				if !ok {
					continue
				}
				link := stringField(doc, "link")
				if link == "-" {
					continue
				}
				docs = append(docs, types.Document{
					Name: stringField(doc, "name"),
					URL:  link,
					Size: stringField(doc, "size"),
				})
			}
		}
	}
	if len(docs) > 0 {
		return docs
	}

	for _, key := range []string{"Files", "Documents", "Attachments"} {
		list, ok := item[key].([]interface{})
		if !ok {
			continue
		}
		for _, raw := range list {
			doc, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			link := stringField(doc, "Url")
			if link == "-" {
				link = stringField(doc, "url")
			}
			if link == "-" {
				continue
			}
			name := stringField(doc, "Name")
			if name == "-" {
				name = stringField(doc, "name")
			}
			docs = append(docs, types.Document{Name: name, URL: link})
		}
		if len(docs) > 0 {
			break
		}
	}
	return docs
}

// stringField renders a response field as text, "-" when absent. The API
// mixes strings and numbers freely.
func stringField(item map[string]interface{}, key string) string {
	v, ok := item[key]
	if !ok || v == nil {
		return "-"
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
