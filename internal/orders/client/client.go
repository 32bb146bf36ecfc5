// Package client calls the external sales order service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/internal/leads/ports"
	"sales_pipeline_backend/platform/apperr"
	"sales_pipeline_backend/platform/config"
	"sales_pipeline_backend/platform/metrics"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerAPIKey         = "X-API-Key"
	maxErrorBody         = 4 << 10
)

// Client creates sales orders over HTTP. It never retries: a failed call
// returns to the saga, which leaves the lead open.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ ports.OrderService = (*Client)(nil)

func New(cfg config.OrderServiceConfig) *Client {
	return NewWithHTTPClient(cfg.GetOrderServiceURL(), cfg.GetOrderServiceAPIKey(), &http.Client{Timeout: cfg.GetOrderServiceTimeout()})
}

func NewWithHTTPClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
	}
}

// ErrMissingOrderID means the order service answered 2xx without an order
// id. An order may exist, so callers must not treat it as a clean failure.
var ErrMissingOrderID = errors.New("order service accepted the request without an order id")

type createOrderResponse struct {
	ID      string `json:"id"`
	OrderID string `json:"orderId"`
}

func (r createOrderResponse) orderID() string {
	if r.OrderID != "" {
		return r.OrderID
	}
	return r.ID
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateOrder posts the snapshot to /orders with the snapshot's idempotency
// key. A 409 carrying an order id is a replay of an earlier submission and
// counts as success.
func (c *Client) CreateOrder(ctx context.Context, snapshot domain.OrderSnapshot) (string, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", apperr.Internal("encode order snapshot")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", apperr.Internal("build order request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerIdempotencyKey, snapshot.IdempotencyKey())
	if c.apiKey != "" {
		req.Header.Set(headerAPIKey, c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.ObserveOrderService(time.Since(start))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", apperr.Unavailable("order service did not answer in time", ctxErr)
		}
		return "", apperr.Unavailable("order service unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperr.Unavailable("read order service response", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300, resp.StatusCode == http.StatusConflict:
		var out createOrderResponse
		if err := json.Unmarshal(data, &out); err == nil && out.orderID() != "" {
			return out.orderID(), nil
		}
		if resp.StatusCode == http.StatusConflict {
			return "", apperr.Validation("order service rejected the order: " + describeError(data, resp.StatusCode))
		}
		return "", apperr.Wrap(apperr.KindInternal, "order service outcome unknown",
			fmt.Errorf("%w: status %d", ErrMissingOrderID, resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", apperr.Unavailable("order service unavailable", fmt.Errorf("status %d: %s", resp.StatusCode, describeError(data, resp.StatusCode)))
	default:
		return "", apperr.Validation("order service rejected the order: " + describeError(data, resp.StatusCode))
	}
}

func describeError(data []byte, status int) string {
	var e errorResponse
	if err := json.Unmarshal(data, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	text := strings.TrimSpace(string(data))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	if text == "" {
		return http.StatusText(status)
	}
	return text
}
