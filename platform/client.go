// Package platform is the typed HTTP client for the Confera event platform
// API: events, attendees, invoices, tickets, and stats.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/confera/confera/domain"
	"github.com/confera/confera/shared/httpclient"
)

// Attendee is the registration payload for ticket creation.
type Attendee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Client talks to the platform REST API. All methods return the decoded JSON
// body; failures carry the platform's own error message when it supplies one.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient builds a platform client. Requests authenticate with a bearer
// token and time out after httpclient.TimeoutMedium.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpclient.New(httpclient.WithTimeout(httpclient.TimeoutMedium)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListEvents returns events, optionally filtered by status. A status of
// "all" or "" applies no filter. Limit falls back to 10 when non-positive.
func (c *Client) ListEvents(ctx context.Context, status string, limit int) (any, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if status != "" && status != "all" {
		q.Set("status", status)
	}
	return c.getJSON(ctx, "/events", q)
}

// GetEventDetails returns the full record for one event.
func (c *Client) GetEventDetails(ctx context.Context, eventID string) (any, error) {
	return c.getJSON(ctx, "/events/"+url.PathEscape(eventID), nil)
}

// ListAttendees returns an event's attendees, optionally filtered by
// registration status.
func (c *Client) ListAttendees(ctx context.Context, eventID, status string) (any, error) {
	q := url.Values{}
	if status != "" && status != "all" {
		q.Set("status", status)
	}
	return c.getJSON(ctx, "/events/"+url.PathEscape(eventID)+"/attendees", q)
}

// GetInvoice returns one invoice.
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (any, error) {
	return c.getJSON(ctx, "/invoices/"+url.PathEscape(invoiceID), nil)
}

// ResendInvoice asks the platform to re-send an invoice email. A non-empty
// email overrides the recipient on record.
func (c *Client) ResendInvoice(ctx context.Context, invoiceID, email string) (any, error) {
	body := map[string]any{}
	if email != "" {
		body["email"] = email
	}
	return c.postJSON(ctx, "/invoices/"+url.PathEscape(invoiceID)+"/resend", body)
}

// DownloadInvoice returns a download URL for the invoice in the given format.
func (c *Client) DownloadInvoice(ctx context.Context, invoiceID, format string) (string, error) {
	if format == "" {
		format = "pdf"
	}
	q := url.Values{"format": {format}}
	raw, err := c.getJSON(ctx, "/invoices/"+url.PathEscape(invoiceID)+"/download", q)
	if err != nil {
		return "", err
	}
	if m, ok := raw.(map[string]any); ok {
		if u, ok := m["downloadUrl"].(string); ok && u != "" {
			return u, nil
		}
		if u, ok := m["url"].(string); ok && u != "" {
			return u, nil
		}
	}
	return "", fmt.Errorf("platform: invoice download response carried no URL")
}

// SearchAttendees searches attendees across events, or within one event when
// eventID is non-empty.
func (c *Client) SearchAttendees(ctx context.Context, query, eventID string) (any, error) {
	q := url.Values{"query": {query}}
	if eventID != "" {
		q.Set("eventId", eventID)
	}
	return c.getJSON(ctx, "/attendees/search", q)
}

// GetEventStats returns sales and attendance analytics for an event.
func (c *Client) GetEventStats(ctx context.Context, eventID string) (any, error) {
	return c.getJSON(ctx, "/events/"+url.PathEscape(eventID)+"/stats", nil)
}

// CreateTicket registers an attendee for an event. An empty ticketType
// defaults to "general".
func (c *Client) CreateTicket(ctx context.Context, eventID string, attendee Attendee, ticketType string) (any, error) {
	if ticketType == "" {
		ticketType = "general"
	}
	return c.postJSON(ctx, "/events/"+url.PathEscape(eventID)+"/tickets", map[string]any{
		"attendee":   attendee,
		"ticketType": ticketType,
	})
}

// CancelTicket cancels a ticket, optionally triggering a refund.
func (c *Client) CancelTicket(ctx context.Context, ticketID, reason string, processRefund bool) (any, error) {
	return c.postJSON(ctx, "/tickets/"+url.PathEscape(ticketID)+"/cancel", map[string]any{
		"reason":        reason,
		"processRefund": processRefund,
	})
}

// HealthCheck reports whether the platform API answers its health endpoint
// with a 2xx status.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values) (any, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("platform: build request: %w", err)
	}
	c.setHeaders(req)
	return c.do(req, path)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("platform: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("platform: build request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path)
}

// do runs the request and normalizes every failure under
// domain.ErrToolExecution so tool-level callers can classify it.
func (c *Client) do(req *http.Request, path string) (any, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrToolExecution, req.Method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrToolExecution, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s: %s", domain.ErrToolExecution, req.Method, path, errorMessage(raw, resp.StatusCode))
	}

	var decoded any
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrToolExecution, err)
	}
	return decoded, nil
}

// errorMessage prefers the platform's own message field over the raw status.
func errorMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fmt.Sprintf("unexpected status %d", status)
}
