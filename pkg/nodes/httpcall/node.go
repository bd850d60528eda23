// Package httpcall provides the outbound HTTP call node.
package httpcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nodeloom/loom/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

type Node struct {
	method  string
	url     string
	headers map[string]string
	body    string
	client  *http.Client
}

func New(config map[string]any) (*Node, error) {
	url, _ := config["url"].(string)
	if url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	body, _ := config["body"].(string)

	headers := make(map[string]string)
	if headersConfig, ok := config["headers"].(map[string]any); ok {
		for k, v := range headersConfig {
			if strVal, ok := v.(string); ok {
				headers[k] = strVal
			}
		}
	}

	timeout := defaultTimeout
	if v, ok := config["timeout_seconds"].(float64); ok && v > 0 {
		timeout = time.Duration(v) * time.Second
	}

	return &Node{
		method:  strings.ToUpper(method),
		url:     url,
		headers: headers,
		body:    body,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Execute performs the HTTP request. Responses decode as JSON when possible
// and fall back to the raw body string.
func (n *Node) Execute(ctx context.Context, in protocol.NodeInputs, logger *slog.Logger) (any, error) {
	logger.Info("Executing httpcall node", "method", n.method, "url", n.url)

	var bodyReader io.Reader
	if n.body != "" {
		bodyReader = strings.NewReader(n.body)
	}

	req, err := http.NewRequestWithContext(ctx, n.method, n.url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for k, v := range n.headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("Failed to close response body", "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = string(raw)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        decoded,
	}, nil
}

// Schema returns the JSON schema for httpcall node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Target URL",
				"format":      "uri",
			},
			"method": map[string]any{
				"type":    "string",
				"enum":    []any{"GET", "POST", "PUT", "PATCH", "DELETE"},
				"default": "GET",
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Request headers",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Raw request body",
			},
			"timeout_seconds": map[string]any{
				"type":    "integer",
				"default": 30,
			},
		},
		"required": []any{"url"},
	}
}
