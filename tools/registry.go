// Package tools holds the fixed catalog of event-platform tools the model
// may call, and the registry that validates arguments and executes them
// against the platform API.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/confera/confera/domain"
	"github.com/confera/confera/metrics"
	"github.com/confera/confera/platform"
)

// PlatformAPI is the slice of the platform client the registry needs.
type PlatformAPI interface {
	ListEvents(ctx context.Context, status string, limit int) (any, error)
	GetEventDetails(ctx context.Context, eventID string) (any, error)
	ListAttendees(ctx context.Context, eventID, status string) (any, error)
	GetInvoice(ctx context.Context, invoiceID string) (any, error)
	ResendInvoice(ctx context.Context, invoiceID, email string) (any, error)
	DownloadInvoice(ctx context.Context, invoiceID, format string) (string, error)
	SearchAttendees(ctx context.Context, query, eventID string) (any, error)
	GetEventStats(ctx context.Context, eventID string) (any, error)
	CreateTicket(ctx context.Context, eventID string, attendee platform.Attendee, ticketType string) (any, error)
	CancelTicket(ctx context.Context, ticketID, reason string, processRefund bool) (any, error)
	HealthCheck(ctx context.Context) bool
}

// Result is the outcome of a single tool execution. Failures are carried in
// the result rather than surfaced as errors so one bad call never aborts a
// batch.
type Result struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Result    any            `json:"result,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
}

// Registry executes catalog tools against the platform API.
type Registry struct {
	api PlatformAPI
}

// NewRegistry builds a Registry over the given platform client.
func NewRegistry(api PlatformAPI) *Registry {
	return &Registry{api: api}
}

// List returns the catalog in its stable advertisement order. The returned
// slice is a copy; callers may not mutate the catalog.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

// Invoke validates the arguments for the named tool, applies schema
// defaults, and executes it. Unknown tools and validation failures produce a
// failed Result, never a panic or error return.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) Result {
	if args == nil {
		args = map[string]any{}
	}
	res := Result{Tool: name, Arguments: args}

	start := time.Now()
	value, err := r.dispatch(ctx, name, args)
	metrics.ObserveToolInvocation(name, err == nil, time.Since(start))

	if err != nil {
		slog.Warn("tools: invocation failed", "tool", name, "error", err)
		res.Error = err.Error()
		return res
	}
	res.Result = value
	res.Success = true
	return res
}

func (r *Registry) dispatch(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolListEvents:
		status := stringArg(args, "status", "all")
		if err := oneOf(status, "upcoming", "past", "active", "all"); err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		return r.api.ListEvents(ctx, status, intArg(args, "limit", 10))

	case ToolGetEventDetails:
		eventID, err := requiredString(args, "eventId")
		if err != nil {
			return nil, err
		}
		return r.api.GetEventDetails(ctx, eventID)

	case ToolListAttendees:
		eventID, err := requiredString(args, "eventId")
		if err != nil {
			return nil, err
		}
		status := stringArg(args, "status", "all")
		if err := oneOf(status, "confirmed", "pending", "cancelled", "all"); err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		return r.api.ListAttendees(ctx, eventID, status)

	case ToolGetInvoice:
		invoiceID, err := requiredString(args, "invoiceId")
		if err != nil {
			return nil, err
		}
		return r.api.GetInvoice(ctx, invoiceID)

	case ToolResendInvoice:
		invoiceID, err := requiredString(args, "invoiceId")
		if err != nil {
			return nil, err
		}
		return r.api.ResendInvoice(ctx, invoiceID, stringArg(args, "email", ""))

	case ToolDownloadInvoice:
		invoiceID, err := requiredString(args, "invoiceId")
		if err != nil {
			return nil, err
		}
		format := stringArg(args, "format", "pdf")
		if err := oneOf(format, "pdf", "excel"); err != nil {
			return nil, fmt.Errorf("format: %w", err)
		}
		url, err := r.api.DownloadInvoice(ctx, invoiceID, format)
		if err != nil {
			return nil, err
		}
		return map[string]any{"downloadUrl": url}, nil

	case ToolSearchAttendees:
		query, err := requiredString(args, "query")
		if err != nil {
			return nil, err
		}
		return r.api.SearchAttendees(ctx, query, stringArg(args, "eventId", ""))

	case ToolGetEventStats:
		eventID, err := requiredString(args, "eventId")
		if err != nil {
			return nil, err
		}
		return r.api.GetEventStats(ctx, eventID)

	case ToolCreateTicket:
		eventID, err := requiredString(args, "eventId")
		if err != nil {
			return nil, err
		}
		attendee, err := attendeeArg(args)
		if err != nil {
			return nil, err
		}
		return r.api.CreateTicket(ctx, eventID, attendee, stringArg(args, "ticketType", "general"))

	case ToolCancelTicket:
		ticketID, err := requiredString(args, "ticketId")
		if err != nil {
			return nil, err
		}
		return r.api.CancelTicket(ctx, ticketID, stringArg(args, "reason", ""), boolArg(args, "processRefund", true))

	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTool, name)
	}
}

// HealthCheck reports whether the backing platform API is reachable.
func (r *Registry) HealthCheck(ctx context.Context) bool {
	return r.api.HealthCheck(ctx)
}

func requiredString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

func stringArg(args map[string]any, key, fallback string) string {
	if s, ok := args[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// intArg accepts both int and float64 since JSON-decoded numbers arrive as
// float64.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func boolArg(args map[string]any, key string, fallback bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return fallback
}

func oneOf(value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%q is not one of %v", value, allowed)
}

func attendeeArg(args map[string]any) (platform.Attendee, error) {
	raw, ok := args["attendee"].(map[string]any)
	if !ok {
		return platform.Attendee{}, fmt.Errorf("missing required argument %q", "attendee")
	}
	a := platform.Attendee{
		Name:  stringArg(raw, "name", ""),
		Email: stringArg(raw, "email", ""),
		Phone: stringArg(raw, "phone", ""),
	}
	if a.Name == "" || a.Email == "" {
		return platform.Attendee{}, fmt.Errorf("attendee requires name and email")
	}
	return a, nil
}
