package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/feescan/internal/scanning/metrics"
)

// Client is a JSON-RPC 2.0 client over HTTP for one upstream provider.
// All failures are returned as opaque errors; classification happens in
// the retry layer.
type Client struct {
	name     string
	endpoint string
	timeout  time.Duration

	mu         sync.RWMutex
	httpClient *http.Client
}

// NewClient creates a new JSON-RPC client.
func NewClient(name, endpoint string, timeout time.Duration) *Client {
	return &Client{
		name:       name,
		endpoint:   endpoint,
		timeout:    timeout,
		httpClient: newHTTPClient(timeout),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Name returns the provider's name.
func (c *Client) Name() string {
	return c.name
}

// Reconnect discards the current transport and builds a fresh one.
// Used as the one-shot recovery action when the connection is
// unusable; it is never called in a loop.
func (c *Client) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.httpClient.CloseIdleConnections()
	c.httpClient = newHTTPClient(c.timeout)
	return nil
}

// Call makes a single JSON-RPC call.
func (c *Client) Call(ctx context.Context, method string, params []any) (any, error) {
	start := time.Now()

	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.RLock()
	httpClient := c.httpClient
	c.mu.RUnlock()

	metrics.RPCCallsTotal.WithLabelValues(c.name, method).Inc()

	resp, err := httpClient.Do(req)
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(c.name, "transport").Inc()
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.RPCErrorsTotal.WithLabelValues(c.name, "rate_limit").Inc()
		retryAfter := resp.Header.Get("Retry-After")
		if retryAfter != "" {
			return nil, fmt.Errorf("rate limited (429), retry-after: %s", retryAfter)
		}
		return nil, fmt.Errorf("rate limited (429)")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(c.name, "transport").Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.RPCErrorsTotal.WithLabelValues(c.name, "http").Inc()
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(c.name, "decode").Inc()
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if rpcResp.Error != nil {
		metrics.RPCErrorsTotal.WithLabelValues(c.name, "rpc").Inc()
		return nil, fmt.Errorf("rpc error: %d %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	metrics.RPCLatency.WithLabelValues(c.name, method).Observe(time.Since(start).Seconds())

	var result any
	if len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
			return nil, fmt.Errorf("parse result: %w", err)
		}
	}
	return result, nil
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Close cleans up idle connections.
func (c *Client) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.httpClient.CloseIdleConnections()
	return nil
}
