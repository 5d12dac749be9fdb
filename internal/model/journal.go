package model

import "time"

// DeliveryRecord tracks the delivery state of one outbound message:
// queued, sent (with the platform-assigned id), or failed. No message
// content is stored.
type DeliveryRecord struct {
	MessageID         string     `json:"messageId"`
	Recipient         string     `json:"recipient"`
	Status            Status     `json:"status"`
	PlatformMessageID *string    `json:"platformMessageId,omitempty"`
	LastError         *string    `json:"lastError,omitempty"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}
