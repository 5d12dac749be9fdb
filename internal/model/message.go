package model

import "encoding/json"

type Status string

const (
	Pending Status = "pending"
	Sent    Status = "sent"
	Failed  Status = "failed"
)

// OutboundMessage is a reply accepted on the send API. Metadata selects
// the rendering mode; a nil Metadata renders a plain text payload.
type OutboundMessage struct {
	MessageID string             `json:"messageId"`
	From      string             `json:"from"`
	To        string             `json:"to"`
	Content   string             `json:"content"`
	Metadata  *MessengerMetadata `json:"messenger,omitempty"`
}

// MessengerMetadata carries the platform-specific rendering hints for one
// outbound message. Template fields for the four template kinds live side
// by side; the builder validates the combination it is asked to render.
type MessengerMetadata struct {
	SenderAction string `json:"sender_action,omitempty"`
	TemplateType string `json:"template_type,omitempty"`

	// Button template.
	Sharable *bool    `json:"sharable,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`

	// Generic and list templates.
	Elements        []Element `json:"elements,omitempty"`
	TopElementStyle string    `json:"top_element_style,omitempty"`

	// Receipt template.
	RecipientName string          `json:"recipient_name,omitempty"`
	MerchantName  string          `json:"merchant_name,omitempty"`
	OrderNumber   string          `json:"order_number,omitempty"`
	OrderURL      string          `json:"order_url,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Timestamp     string          `json:"timestamp,omitempty"`
	Summary       *ReceiptSummary `json:"summary,omitempty"`
	Address       *ReceiptAddress `json:"address,omitempty"`
	Adjustments   []Adjustment    `json:"adjustments,omitempty"`

	Media        *Media       `json:"media,omitempty"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
}

type Button struct {
	Type    string          `json:"type"`
	Title   string          `json:"title,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	URL     string          `json:"url,omitempty"`

	// web_url extras, emitted only when present.
	WebviewHeightRatio  string `json:"webview_height_ratio,omitempty"`
	MessengerExtensions *bool  `json:"messenger_extensions,omitempty"`
	FallbackURL         string `json:"fallback_url,omitempty"`

	// element_share: the nested share contents must themselves render
	// as a generic template.
	ShareContents *MessengerMetadata `json:"share_contents,omitempty"`
}

type Element struct {
	Title         string         `json:"title"`
	Subtitle      string         `json:"subtitle,omitempty"`
	ImageURL      string         `json:"image_url,omitempty"`
	ItemURL       string         `json:"item_url,omitempty"`
	DefaultAction *DefaultAction `json:"default_action,omitempty"`
	Buttons       []Button       `json:"buttons,omitempty"`

	// Receipt element fields.
	Quantity *int     `json:"quantity,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

type DefaultAction struct {
	URL                 string `json:"url"`
	WebviewHeightRatio  string `json:"webview_height_ratio,omitempty"`
	MessengerExtensions *bool  `json:"messenger_extensions,omitempty"`
	FallbackURL         string `json:"fallback_url,omitempty"`
}

type ReceiptSummary struct {
	TotalCost    float64  `json:"total_cost"`
	Subtotal     *float64 `json:"subtotal,omitempty"`
	TotalTax     *float64 `json:"total_tax,omitempty"`
	ShippingCost *float64 `json:"shipping_cost,omitempty"`
}

type ReceiptAddress struct {
	Street1    string `json:"street_1"`
	Street2    string `json:"street_2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	State      string `json:"state"`
	Country    string `json:"country"`
}

type Adjustment struct {
	Name   string  `json:"name,omitempty"`
	Amount float64 `json:"amount,omitempty"`
}

type Media struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type QuickReply struct {
	ContentType string          `json:"content_type"`
	Title       string          `json:"title,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
}
