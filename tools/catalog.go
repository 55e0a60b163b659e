package tools

// Descriptor describes one tool in the form advertised to the model: a name,
// a human description, and a JSON Schema for its arguments.
type Descriptor struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Tool names. The catalog is fixed; tools are not registered at runtime.
const (
	ToolListEvents      = "list_events"
	ToolGetEventDetails = "get_event_details"
	ToolListAttendees   = "list_attendees"
	ToolGetInvoice      = "get_invoice"
	ToolResendInvoice   = "resend_invoice"
	ToolDownloadInvoice = "download_invoice"
	ToolSearchAttendees = "search_attendees"
	ToolGetEventStats   = "get_event_stats"
	ToolCreateTicket    = "create_ticket"
	ToolCancelTicket    = "cancel_ticket"
)

// catalog lists every tool in its stable advertisement order.
var catalog = []Descriptor{
	{
		Name:        ToolListEvents,
		Description: "List all events on the Confera platform. Optionally filter by status (upcoming, past, active).",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"upcoming", "past", "active", "all"},
					"description": "Filter events by status",
					"default":     "all",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of events to return",
					"default":     10,
				},
			},
		},
	},
	{
		Name:        ToolGetEventDetails,
		Description: "Get detailed information about a specific event including attendees, tickets, and revenue.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"eventId": map[string]any{
					"type":        "string",
					"description": "The unique identifier of the event",
				},
			},
			"required": []string{"eventId"},
		},
	},
	{
		Name:        ToolListAttendees,
		Description: "List all attendees for a specific event with their ticket and payment status.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"eventId": map[string]any{
					"type":        "string",
					"description": "The unique identifier of the event",
				},
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"confirmed", "pending", "cancelled", "all"},
					"description": "Filter attendees by registration status",
					"default":     "all",
				},
			},
			"required": []string{"eventId"},
		},
	},
	{
		Name:        ToolGetInvoice,
		Description: "Get invoice details for a specific transaction or attendee.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"invoiceId": map[string]any{
					"type":        "string",
					"description": "The unique identifier of the invoice",
				},
			},
			"required": []string{"invoiceId"},
		},
	},
	{
		Name:        ToolResendInvoice,
		Description: "Resend an invoice email to an attendee. Returns confirmation of email sent.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"invoiceId": map[string]any{
					"type":        "string",
					"description": "The unique identifier of the invoice to resend",
				},
				"email": map[string]any{
					"type":        "string",
					"description": "Optional: Override email address to send to",
				},
			},
			"required": []string{"invoiceId"},
		},
	},
	{
		Name:        ToolDownloadInvoice,
		Description: "Generate and return a download URL for an invoice PDF.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"invoiceId": map[string]any{
					"type":        "string",
					"description": "The unique identifier of the invoice",
				},
				"format": map[string]any{
					"type":        "string",
					"enum":        []string{"pdf", "excel"},
					"description": "Format of the invoice file",
					"default":     "pdf",
				},
			},
			"required": []string{"invoiceId"},
		},
	},
	{
		Name:        ToolSearchAttendees,
		Description: "Search for attendees across all events by name, email, or other criteria.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query (name, email, phone, etc.)",
				},
				"eventId": map[string]any{
					"type":        "string",
					"description": "Optional: Limit search to specific event",
				},
			},
			"required": []string{"query"},
		},
	},
	{
		Name:        ToolGetEventStats,
		Description: "Get statistics and analytics for an event (sales, attendance, revenue, etc.).",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"eventId": map[string]any{
					"type":        "string",
					"description": "The unique identifier of the event",
				},
			},
			"required": []string{"eventId"},
		},
	},
	{
		Name:        ToolCreateTicket,
		Description: "Create a new ticket/registration for an attendee.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"eventId": map[string]any{
					"type":        "string",
					"description": "The event to register for",
				},
				"attendee": map[string]any{
					"type":        "object",
					"description": "Attendee information",
					"properties": map[string]any{
						"name":  map[string]any{"type": "string"},
						"email": map[string]any{"type": "string"},
						"phone": map[string]any{"type": "string"},
					},
					"required": []string{"name", "email"},
				},
				"ticketType": map[string]any{
					"type":        "string",
					"description": "Type of ticket (general, vip, early-bird, etc.)",
					"default":     "general",
				},
			},
			"required": []string{"eventId", "attendee"},
		},
	},
	{
		Name:        ToolCancelTicket,
		Description: "Cancel a ticket and process refund if applicable.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ticketId": map[string]any{
					"type":        "string",
					"description": "The unique identifier of the ticket to cancel",
				},
				"reason": map[string]any{
					"type":        "string",
					"description": "Reason for cancellation",
				},
				"processRefund": map[string]any{
					"type":        "boolean",
					"description": "Whether to process a refund",
					"default":     true,
				},
			},
			"required": []string{"ticketId"},
		},
	},
}
