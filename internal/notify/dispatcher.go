// Package notify asks the email function to tell a customer their order is ready.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Dispatcher sends the order-completed notification for an order.
type Dispatcher interface {
	Dispatch(ctx context.Context, orderID string) error
}

type request struct {
	OrderID string `json:"orderId"`
}

// HTTPDispatcher posts {"orderId": ...} to the email function endpoint.
type HTTPDispatcher struct {
	url    string
	client *http.Client
}

func NewHTTPDispatcher(url string, client *http.Client) *HTTPDispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPDispatcher{url: url, client: client}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, orderID string) error {
	body, err := json.Marshal(request{OrderID: orderID})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call email function: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("email function returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// Nop drops every notification. It is used when no email function is configured.
type Nop struct{}

func (Nop) Dispatch(context.Context, string) error { return nil }
