package model

import "time"

// InboundEvent is one normalized interaction lifted out of a webhook
// messaging entry. Exactly one event per recognized entry, except
// postbacks carrying an embedded referral, which yield a second
// synthetic referral event.
type InboundEvent struct {
	ToAddr    string         `json:"toAddr"`
	FromAddr  string         `json:"fromAddr"`
	MID       *string        `json:"mid,omitempty"`
	Content   string         `json:"content"`
	InReplyTo *string        `json:"inReplyTo,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}
