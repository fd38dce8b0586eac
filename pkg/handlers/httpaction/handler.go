// Package httpaction provides the built-in handler for action steps that call
// HTTP endpoints. URL, headers and body are rendered as templates before the
// request is made. Retries are not handled here; failed requests surface as
// errors so the recovery layer can apply the configured strategy.
package httpaction

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

	"github.com/stepmill/stepmill/pkg/protocol"
	"github.com/stepmill/stepmill/pkg/template"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration
}

type Handler struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

func NewHandler(config map[string]any, logger *slog.Logger) (*Handler, error) {
	cfg := Config{
		Method:  http.MethodGet,
		Headers: make(map[string]string),
		Timeout: defaultTimeout,
	}

	url, ok := config["url"].(string)
	if !ok {
		return nil, errors.New("missing required field 'url'")
	}

	cfg.URL = url

	if method, ok := config["method"].(string); ok {
		cfg.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if str, ok := value.(string); ok {
				cfg.Headers[key] = str
			}
		}
	}

	if body, ok := config["body"].(string); ok {
		cfg.Body = body
	}

	if timeout, ok := config["timeout"].(float64); ok {
		cfg.Timeout = time.Duration(timeout) * time.Second
	}

	return &Handler{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("handler", "httpaction"),
	}, nil
}

func (h *Handler) Execute(ctx context.Context, req protocol.StepRequest) (*protocol.StepOutcome, error) {
	data := req.TemplateData()

	url, err := template.RenderString(h.config.URL, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render url template: %w", err)
	}

	var body string
	if h.config.Body != "" {
		body, err = template.RenderString(h.config.Body, data)
		if err != nil {
			return nil, fmt.Errorf("failed to render body template: %w", err)
		}
	}

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, h.config.Method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range h.config.Headers {
		rendered, err := template.RenderString(value, data)
		if err != nil {
			rendered = value
		}

		httpReq.Header.Set(key, rendered)
	}

	if body != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	h.logger.DebugContext(ctx, "Performing HTTP request", "method", h.config.Method, "url", url)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http %d from %s %s: %s", resp.StatusCode, h.config.Method, url, truncate(string(respBody), 512))
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		result["json"] = jsonBody
	}

	return &protocol.StepOutcome{Data: result}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max]
}
