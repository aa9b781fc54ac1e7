package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vogaflex/crm-insights/internal/analytics"
	"github.com/vogaflex/crm-insights/internal/models"
	"github.com/vogaflex/crm-insights/internal/normalize"
)

// APIError is a non-2xx answer from the boundary API. Message is the server's
// own error text so it can be shown to users unchanged.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client reads conversations, messages and dashboards from the CRM boundary API.
type Client struct {
	BaseURL string
	Client  *http.Client
}

type conversationsResponse struct {
	Conversations []models.RawEvent `json:"conversations"`
}

type messagesResponse struct {
	Messages []models.RawEvent `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) Events(ctx context.Context, q models.EventQuery) ([]models.RawEvent, error) {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	setFilter(params, "status", q.Status)
	setFilter(params, "etapa", q.Etapa)
	setFilter(params, "date_from", q.DateFrom)
	setFilter(params, "date_to", q.DateTo)
	setFilter(params, "vendedor", q.Vendedor)

	var out conversationsResponse
	if err := c.get(ctx, "/api/conversations/", params, &out); err != nil {
		return nil, fmt.Errorf("fetch conversations: %w", err)
	}
	return out.Conversations, nil
}

func (c *Client) Messages(ctx context.Context, chatID string, limit int) ([]models.RawEvent, error) {
	params := url.Values{}
	params.Set("chat_id", chatID)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var out messagesResponse
	if err := c.get(ctx, "/api/messages/", params, &out); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return out.Messages, nil
}

func (c *Client) Dashboard(ctx context.Context, q models.DashboardQuery) (analytics.Payload, error) {
	params := url.Values{}
	setFilter(params, "date_from", q.DateFrom)
	setFilter(params, "date_to", q.DateTo)
	setFilter(params, "vendedor", q.Vendedor)

	var out analytics.Payload
	if err := c.get(ctx, "/api/dashboard/", params, &out); err != nil {
		return analytics.Payload{}, fmt.Errorf("fetch dashboard: %w", err)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dst any) error {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 30 * time.Second}
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, body)
	}
	return json.Unmarshal(body, dst)
}

func decodeError(status int, body []byte) error {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return &APIError{Status: status, Message: e.Error}
	}
	return &APIError{Status: status, Message: http.StatusText(status)}
}

// AsAPIError unwraps err to the boundary API's error, if it is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func setFilter(params url.Values, key, value string) {
	if normalize.IsWildcard(value) {
		return
	}
	params.Set(key, value)
}
